package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsRecordingAndHandler(t *testing.T) {
	m := NewMetrics("test")

	m.RecordRequestLatency("/health", "GET", "200", 0.01)
	m.RecordHTTPRequest("/health", "GET", "200")
	m.IncHTTPRequestsInFlight()
	m.DecHTTPRequestsInFlight()
	m.RecordError("timeout", "/health", "GET")
	m.RecordSyncRun("ok", 12.5)
	m.RecordSyncRun("partial", 20.0)
	m.RecordUpsert("quota")
	m.RecordUpsert("quota_data")
	m.RecordUpsert("service_instance")
	m.SyncOrgs.Inc()
	m.SyncOrgErrors.Inc()
	m.TokenRefreshes.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "test_request_latency_seconds") {
		t.Fatalf("expected metrics output to contain request latency metric")
	}
	if !strings.Contains(body, "test_sync_runs_total") {
		t.Fatalf("expected metrics output to contain sync run counter")
	}
	if !strings.Contains(body, "test_sync_upserts_total") {
		t.Fatalf("expected metrics output to contain upsert counter")
	}

	if _, err := m.registry.Gather(); err != nil {
		t.Fatalf("expected gather to succeed: %v", err)
	}
}

func TestMetricsSeparateRegistries(t *testing.T) {
	// Two instances must not collide: each carries its own registry.
	a := NewMetrics("first")
	b := NewMetrics("second")

	a.RecordSyncRun("ok", 1)
	b.RecordSyncRun("failed", 2)

	families, err := a.registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, family := range families {
		if strings.HasPrefix(family.GetName(), "second_") {
			t.Fatalf("first registry leaked metric %s", family.GetName())
		}
	}
}

package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quotadb/quotadb/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestNewSQLiteStore tests creating a new SQLite store and running migrations
func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("Database file should exist")
	}

	stats := store.Stats()
	if stats.Quotas != 0 || stats.QuotaData != 0 || stats.ServiceInstances != 0 {
		t.Errorf("Expected empty store, got %+v", stats)
	}
}

// TestUpsertQuota tests quota insertion and field refresh on conflict
func TestUpsertQuota(t *testing.T) {
	store := newTestStore(t)

	created := time.Date(2015, 1, 1, 1, 1, 1, 0, time.UTC)
	quota := &models.Quota{GUID: "test_guid", Name: "test_name", URL: "test_url", CreatedAt: created}
	if err := store.UpsertQuota(quota); err != nil {
		t.Fatalf("Failed to upsert quota: %v", err)
	}

	retrieved, ok := store.GetQuota("test_guid")
	if !ok {
		t.Fatal("Failed to retrieve quota")
	}
	if retrieved.Name != "test_name" {
		t.Errorf("Expected name test_name, got %s", retrieved.Name)
	}
	if retrieved.CreatedDate() != "2015-01-01" {
		t.Errorf("Expected created date 2015-01-01, got %s", retrieved.CreatedDate())
	}

	// Upserting the same guid updates in place, it never duplicates.
	quota.Name = "new_name"
	if err := store.UpsertQuota(quota); err != nil {
		t.Fatalf("Failed to re-upsert quota: %v", err)
	}

	quotas, err := store.ListQuotas()
	if err != nil {
		t.Fatalf("Failed to list quotas: %v", err)
	}
	if len(quotas) != 1 {
		t.Fatalf("Expected 1 quota after re-upsert, got %d", len(quotas))
	}
	if quotas[0].Name != "new_name" {
		t.Errorf("Expected refreshed name new_name, got %s", quotas[0].Name)
	}
}

// TestUpsertQuotaKeepsUpdatedAt tests that a nil incoming update
// timestamp leaves the stored one untouched
func TestUpsertQuotaKeepsUpdatedAt(t *testing.T) {
	store := newTestStore(t)

	updated := time.Date(2014, 6, 1, 0, 0, 0, 0, time.UTC)
	quota := &models.Quota{GUID: "test_guid", Name: "test_name", UpdatedAt: &updated}
	if err := store.UpsertQuota(quota); err != nil {
		t.Fatalf("Failed to upsert quota: %v", err)
	}

	if err := store.UpsertQuota(&models.Quota{GUID: "test_guid", Name: "test_name"}); err != nil {
		t.Fatalf("Failed to re-upsert quota: %v", err)
	}

	retrieved, ok := store.GetQuota("test_guid")
	if !ok {
		t.Fatal("Failed to retrieve quota")
	}
	if retrieved.UpdatedDate() != "2014-06-01" {
		t.Errorf("Expected preserved update date 2014-06-01, got %s", retrieved.UpdatedDate())
	}
}

// TestUpsertQuotaData tests same-day idempotence and cross-day additivity
func TestUpsertQuotaData(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertQuota(&models.Quota{GUID: "test_guid", Name: "test_name"}); err != nil {
		t.Fatalf("Failed to upsert quota: %v", err)
	}

	data := &models.QuotaData{QuotaGUID: "test_guid", DateCollected: "2014-01-01", MemoryLimit: 1000}
	if err := store.UpsertQuotaData(data); err != nil {
		t.Fatalf("Failed to upsert quota data: %v", err)
	}

	// Same key again: the limits update, the row count does not.
	data.MemoryLimit = 1500
	if err := store.UpsertQuotaData(data); err != nil {
		t.Fatalf("Failed to re-upsert quota data: %v", err)
	}
	if got := store.Stats().QuotaData; got != 1 {
		t.Errorf("Expected 1 snapshot row after same-day re-run, got %d", got)
	}

	details, err := store.QuotaDataDetails("test_guid", Window{})
	if err != nil {
		t.Fatalf("Failed to read details: %v", err)
	}
	if len(details) != 1 || details[0].MemoryLimit != 1500 {
		t.Fatalf("Expected single updated row with limit 1500, got %+v", details)
	}

	// A different date is a new row.
	if err := store.UpsertQuotaData(&models.QuotaData{QuotaGUID: "test_guid", DateCollected: "2014-01-02", MemoryLimit: 1500}); err != nil {
		t.Fatalf("Failed to upsert second-day snapshot: %v", err)
	}
	if got := store.Stats().QuotaData; got != 2 {
		t.Errorf("Expected 2 snapshot rows across two days, got %d", got)
	}
}

// TestUpsertServiceInstance tests the composite service key
func TestUpsertServiceInstance(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertQuota(&models.Quota{GUID: "test_guid", Name: "test_name"}); err != nil {
		t.Fatalf("Failed to upsert quota: %v", err)
	}

	instance := &models.ServiceInstance{
		QuotaGUID:     "test_guid",
		GUID:          "guid_1",
		DateCollected: "2014-01-01",
		InstanceName:  "instance_1",
		Label:         "plan_label_1",
		Provider:      "core",
	}
	if err := store.UpsertServiceInstance(instance); err != nil {
		t.Fatalf("Failed to upsert service instance: %v", err)
	}
	if err := store.UpsertServiceInstance(instance); err != nil {
		t.Fatalf("Failed to re-upsert service instance: %v", err)
	}
	if got := store.Stats().ServiceInstances; got != 1 {
		t.Errorf("Expected 1 service row after same-day re-run, got %d", got)
	}

	// A second service guid on the same day is a distinct row.
	instance.GUID = "guid_2"
	instance.Label = "plan_label_2"
	if err := store.UpsertServiceInstance(instance); err != nil {
		t.Fatalf("Failed to upsert second service: %v", err)
	}
	if got := store.Stats().ServiceInstances; got != 2 {
		t.Errorf("Expected 2 service rows, got %d", got)
	}
}

// TestAggregateMemory tests grouping snapshots by memory limit
func TestAggregateMemory(t *testing.T) {
	store := newTestStore(t)
	seedQuotaSeries(t, store)

	aggregates, err := store.AggregateMemory("test_guid", Window{})
	if err != nil {
		t.Fatalf("Failed to aggregate memory: %v", err)
	}
	if len(aggregates) != 2 {
		t.Fatalf("Expected 2 memory groups, got %d", len(aggregates))
	}

	days := map[int64]int64{}
	for _, a := range aggregates {
		days[a.MemoryLimit] = a.Days
	}
	if days[2000] != 1 {
		t.Errorf("Expected 1 day at limit 2000, got %d", days[2000])
	}
	if days[1000] != 2 {
		t.Errorf("Expected 2 days at limit 1000, got %d", days[1000])
	}
}

// TestAggregateMemoryWindow tests the inclusive date window filter
func TestAggregateMemoryWindow(t *testing.T) {
	store := newTestStore(t)
	seedQuotaSeries(t, store)

	aggregates, err := store.AggregateMemory("test_guid", Window{Since: "2013-12-31", Until: "2014-07-02"})
	if err != nil {
		t.Fatalf("Failed to aggregate memory: %v", err)
	}
	if len(aggregates) != 1 {
		t.Fatalf("Expected 1 group inside window, got %d", len(aggregates))
	}
	if aggregates[0].MemoryLimit != 1000 || aggregates[0].Days != 1 {
		t.Errorf("Expected limit 1000 over 1 day, got %+v", aggregates[0])
	}

	// Boundary dates are included.
	aggregates, err = store.AggregateMemory("test_guid", Window{Since: "2013-01-01", Until: "2014-01-01"})
	if err != nil {
		t.Fatalf("Failed to aggregate memory: %v", err)
	}
	var total int64
	for _, a := range aggregates {
		total += a.Days
	}
	if total != 2 {
		t.Errorf("Expected 2 days inside inclusive window, got %d", total)
	}
}

// TestWindowRequiresBothBounds tests that a half-open window does not filter
func TestWindowRequiresBothBounds(t *testing.T) {
	store := newTestStore(t)
	seedQuotaSeries(t, store)

	for _, w := range []Window{{Since: "2014-01-01"}, {Until: "2014-01-01"}} {
		if w.Bounded() {
			t.Errorf("Window %+v should not be bounded", w)
		}
		aggregates, err := store.AggregateMemory("test_guid", w)
		if err != nil {
			t.Fatalf("Failed to aggregate memory: %v", err)
		}
		var total int64
		for _, a := range aggregates {
			total += a.Days
		}
		if total != 3 {
			t.Errorf("Half-open window %+v should return all 3 days, got %d", w, total)
		}
	}
}

// TestAggregateServices tests grouping service observations
func TestAggregateServices(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertQuota(&models.Quota{GUID: "test_guid", Name: "test_name"}); err != nil {
		t.Fatalf("Failed to upsert quota: %v", err)
	}
	for _, date := range []string{"2014-01-01", "2014-01-02"} {
		err := store.UpsertServiceInstance(&models.ServiceInstance{
			QuotaGUID: "test_guid", GUID: "guid_1", DateCollected: date,
			InstanceName: "instance_1", Label: "plan_label_1", Provider: "core",
		})
		if err != nil {
			t.Fatalf("Failed to upsert service instance: %v", err)
		}
	}

	aggregates, err := store.AggregateServices("test_guid", Window{})
	if err != nil {
		t.Fatalf("Failed to aggregate services: %v", err)
	}
	if len(aggregates) != 1 {
		t.Fatalf("Expected 1 service group, got %d", len(aggregates))
	}
	if aggregates[0].GUID != "guid_1" || aggregates[0].Label != "plan_label_1" || aggregates[0].Days != 2 {
		t.Errorf("Unexpected service aggregate %+v", aggregates[0])
	}
}

// TestListQuotasOrder tests that quotas come back ordered by guid
func TestListQuotasOrder(t *testing.T) {
	store := newTestStore(t)

	for _, guid := range []string{"test_guid_2", "test_guid"} {
		if err := store.UpsertQuota(&models.Quota{GUID: guid, Name: "name_" + guid}); err != nil {
			t.Fatalf("Failed to upsert quota: %v", err)
		}
	}

	quotas, err := store.ListQuotas()
	if err != nil {
		t.Fatalf("Failed to list quotas: %v", err)
	}
	if len(quotas) != 2 {
		t.Fatalf("Expected 2 quotas, got %d", len(quotas))
	}
	if quotas[0].GUID != "test_guid" || quotas[1].GUID != "test_guid_2" {
		t.Errorf("Expected guid order [test_guid test_guid_2], got [%s %s]", quotas[0].GUID, quotas[1].GUID)
	}
}

// TestServiceDetails tests the per-day service drill-down ordering
func TestServiceDetails(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertQuota(&models.Quota{GUID: "test_guid", Name: "test_name"}); err != nil {
		t.Fatalf("Failed to upsert quota: %v", err)
	}
	rows := []models.ServiceInstance{
		{QuotaGUID: "test_guid", GUID: "guid_2", DateCollected: "2014-01-02", Label: "plan_label_2"},
		{QuotaGUID: "test_guid", GUID: "guid_1", DateCollected: "2014-01-01", Label: "plan_label_1"},
	}
	for i := range rows {
		if err := store.UpsertServiceInstance(&rows[i]); err != nil {
			t.Fatalf("Failed to upsert service instance: %v", err)
		}
	}

	details, err := store.ServiceDetails("test_guid", Window{})
	if err != nil {
		t.Fatalf("Failed to read service details: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("Expected 2 detail rows, got %d", len(details))
	}
	if details[0].GUID != "guid_1" || details[1].GUID != "guid_2" {
		t.Errorf("Expected date order guid_1 then guid_2, got %s then %s", details[0].GUID, details[1].GUID)
	}
}

// seedQuotaSeries writes the three-day snapshot series used by the
// aggregation tests: 2000 MB once, then 1000 MB on two later dates.
func seedQuotaSeries(t *testing.T, store *SQLiteStore) {
	t.Helper()
	if err := store.UpsertQuota(&models.Quota{GUID: "test_guid", Name: "test_name", URL: "test_url"}); err != nil {
		t.Fatalf("Failed to upsert quota: %v", err)
	}
	series := []models.QuotaData{
		{QuotaGUID: "test_guid", DateCollected: "2013-01-01", MemoryLimit: 2000},
		{QuotaGUID: "test_guid", DateCollected: "2014-01-01", MemoryLimit: 1000},
		{QuotaGUID: "test_guid", DateCollected: "2015-01-01", MemoryLimit: 1000},
	}
	for i := range series {
		if err := store.UpsertQuotaData(&series[i]); err != nil {
			t.Fatalf("Failed to upsert quota data: %v", err)
		}
	}
}

// Package syncer reconciles the remote platform API into the local
// time-series store. Each organization is an independent unit of work:
// one org failing never aborts the run, and a same-day re-run updates
// rows in place instead of duplicating them.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/quotadb/quotadb/internal/alerts"
	"github.com/quotadb/quotadb/internal/cloudfoundry"
	"github.com/quotadb/quotadb/internal/logging"
	"github.com/quotadb/quotadb/internal/metrics"
	"github.com/quotadb/quotadb/internal/models"
	"github.com/quotadb/quotadb/internal/store"
	"golang.org/x/sync/errgroup"
)

// RunResult summarizes one synchronization run.
type RunResult struct {
	Started  time.Time
	Duration time.Duration
	Orgs     int
	Quotas   int
	Services int
	Errors   []error
}

// Failed reports whether any organization failed during the run.
func (r *RunResult) Failed() bool {
	return len(r.Errors) > 0
}

// Engine walks the remote organizations and upserts quota, snapshot,
// and service rows for today.
type Engine struct {
	client      *cloudfoundry.Client
	store       store.Store
	logger      *logging.Logger
	metrics     *metrics.Metrics
	notifier    alerts.Notifier
	concurrency int

	// today is swapped in tests to exercise cross-day additivity.
	today func() string
}

// NewEngine creates a synchronization engine. Metrics and notifier are
// optional.
func NewEngine(client *cloudfoundry.Client, s store.Store, logger *logging.Logger, m *metrics.Metrics, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Engine{
		client:      client,
		store:       s,
		logger:      logger,
		metrics:     m,
		concurrency: concurrency,
		today:       models.Today,
	}
}

// SetNotifier attaches a failure-digest notifier.
func (e *Engine) SetNotifier(n alerts.Notifier) {
	e.notifier = n
}

// Run performs one full synchronization. Pager and auth failures abort
// the run; per-organization failures are collected into the result and
// processing continues. The returned error is non-nil only for aborts.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{Started: time.Now()}
	e.logger.Info("starting data update")

	pager := e.client.Pager("/v2/organizations")
	var mu sync.Mutex

	for {
		page, err := pager.Next(ctx)
		if err != nil {
			e.recordRun("failed", result)
			return result, fmt.Errorf("fetching organizations: %w", err)
		}
		if page == nil {
			break
		}

		// Orgs on a page are independent; process them with bounded
		// parallelism. Failures are collected out-of-band so a failing
		// org never cancels its siblings.
		var g errgroup.Group
		g.SetLimit(e.concurrency)
		for _, raw := range page.Resources {
			var org cloudfoundry.OrgResource
			if err := json.Unmarshal(raw, &org); err != nil {
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Errorf("decoding org resource: %w", err))
				mu.Unlock()
				continue
			}

			g.Go(func() error {
				quotas, services, err := e.processOrg(ctx, org)

				mu.Lock()
				defer mu.Unlock()
				result.Orgs++
				result.Quotas += quotas
				result.Services += services
				if err != nil {
					result.Errors = append(result.Errors, err)
					e.logger.Error("org sync failed",
						"org_guid", org.Metadata.GUID,
						"error", err.Error())
					if e.metrics != nil {
						e.metrics.SyncOrgErrors.Inc()
					}
				}
				if e.metrics != nil {
					e.metrics.SyncOrgs.Inc()
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	result.Duration = time.Since(result.Started)
	status := "ok"
	if result.Failed() {
		status = "partial"
		e.sendDigest(result)
	}
	e.recordRun(status, result)

	e.logger.Info("data update finished",
		"orgs", result.Orgs,
		"quotas", result.Quotas,
		"services", result.Services,
		"errors", len(result.Errors),
		"duration_seconds", result.Duration.Seconds(),
	)
	return result, nil
}

// processOrg syncs one organization: its quota definition, today's
// snapshot, and the services found in its spaces.
func (e *Engine) processOrg(ctx context.Context, org cloudfoundry.OrgResource) (quotas, services int, err error) {
	if org.Entity.QuotaDefinitionURL == "" {
		e.logger.Debug("org carries no quota definition url", "org_guid", org.Metadata.GUID)
		return 0, 0, nil
	}

	var quotaRes cloudfoundry.QuotaResource
	if err := e.client.FetchJSON(ctx, org.Entity.QuotaDefinitionURL, &quotaRes); err != nil {
		return 0, 0, fmt.Errorf("fetching quota definition: %w", err)
	}

	// Placeholder quota payloads arrive without a name; they are
	// incomplete data, not an error.
	if quotaRes.Entity.Name == "" {
		e.logger.Debug("skipping unnamed quota", "quota_guid", quotaRes.Metadata.GUID)
		return 0, 0, nil
	}

	today := e.today()
	if err := e.upsertQuota(&quotaRes, today); err != nil {
		return 0, 0, err
	}
	quotas = 1

	if org.Entity.SpacesURL != "" {
		services, err = e.syncSpaces(ctx, quotaRes.Metadata.GUID, org.Entity.SpacesURL, today)
		if err != nil {
			return quotas, services, err
		}
	}
	return quotas, services, nil
}

// upsertQuota refreshes the quota row and writes today's snapshot.
func (e *Engine) upsertQuota(res *cloudfoundry.QuotaResource, today string) error {
	quota := &models.Quota{
		GUID:      res.Metadata.GUID,
		Name:      res.Entity.Name,
		URL:       res.Metadata.URL,
		CreatedAt: res.Metadata.CreatedTime(),
		UpdatedAt: res.Metadata.UpdatedTime(),
	}
	if err := e.store.UpsertQuota(quota); err != nil {
		return fmt.Errorf("upserting quota %s: %w", quota.GUID, err)
	}
	if e.metrics != nil {
		e.metrics.RecordUpsert("quota")
	}

	data := &models.QuotaData{
		QuotaGUID:     quota.GUID,
		DateCollected: today,
		MemoryLimit:   res.Entity.MemoryLimit,
		TotalRoutes:   res.Entity.TotalRoutes,
		TotalServices: res.Entity.TotalServices,
	}
	if err := e.store.UpsertQuotaData(data); err != nil {
		return fmt.Errorf("upserting quota data %s/%s: %w", quota.GUID, today, err)
	}
	if e.metrics != nil {
		e.metrics.RecordUpsert("quota_data")
	}
	return nil
}

// syncSpaces pages an org's spaces and records every service found in
// their summaries under the org's quota.
func (e *Engine) syncSpaces(ctx context.Context, quotaGUID, spacesURL, today string) (int, error) {
	count := 0
	pager := e.client.Pager(spacesURL)
	for {
		page, err := pager.Next(ctx)
		if err != nil {
			return count, fmt.Errorf("fetching spaces: %w", err)
		}
		if page == nil {
			return count, nil
		}

		for _, raw := range page.Resources {
			var space cloudfoundry.SpaceResource
			if err := json.Unmarshal(raw, &space); err != nil {
				return count, fmt.Errorf("decoding space resource: %w", err)
			}
			if space.Metadata.URL == "" {
				continue
			}

			var summary cloudfoundry.SpaceSummary
			if err := e.client.FetchJSON(ctx, space.Metadata.URL+"/summary", &summary); err != nil {
				return count, fmt.Errorf("fetching space summary: %w", err)
			}

			for _, svc := range summary.Services {
				if svc.ServicePlan.Service.GUID == "" {
					continue
				}
				instance := &models.ServiceInstance{
					QuotaGUID:     quotaGUID,
					GUID:          svc.ServicePlan.Service.GUID,
					DateCollected: today,
					InstanceName:  svc.ServicePlan.Name,
					Label:         svc.ServicePlan.Service.Label,
					Provider:      svc.ServicePlan.Service.Provider,
				}
				if err := e.store.UpsertServiceInstance(instance); err != nil {
					return count, fmt.Errorf("upserting service %s: %w", instance.GUID, err)
				}
				count++
				if e.metrics != nil {
					e.metrics.RecordUpsert("service_instance")
				}
			}
		}
	}
}

func (e *Engine) recordRun(status string, result *RunResult) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordSyncRun(status, time.Since(result.Started).Seconds())
}

func (e *Engine) sendDigest(result *RunResult) {
	if e.notifier == nil {
		return
	}

	lines := make([]string, 0, len(result.Errors))
	for i, err := range result.Errors {
		if i == 10 {
			lines = append(lines, fmt.Sprintf("... and %d more", len(result.Errors)-i))
			break
		}
		lines = append(lines, err.Error())
	}
	subject := fmt.Sprintf("quota sync: %d of %d orgs failed", len(result.Errors), result.Orgs)
	if err := e.notifier.Notify(subject, strings.Join(lines, "\n")); err != nil {
		e.logger.Warn("failed to deliver sync digest", "error", err.Error())
	}
}

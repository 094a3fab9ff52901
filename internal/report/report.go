// Package report turns the daily snapshot time series into aggregate
// summaries, derived cost, and export formats.
package report

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/quotadb/quotadb/internal/config"
	"github.com/quotadb/quotadb/internal/errors"
	"github.com/quotadb/quotadb/internal/logging"
	"github.com/quotadb/quotadb/internal/models"
	"github.com/quotadb/quotadb/internal/store"
)

// Reporter composes read-only aggregation queries over the store. Its
// methods are idempotent and safe to run in parallel; store errors
// propagate unchanged.
type Reporter struct {
	store        store.Store
	costPerMBDay float64
	logger       *logging.Logger
}

// NewReporter creates a reporter with the given per-MB-day cost. A
// non-positive cost falls back to the default rate.
func NewReporter(s store.Store, costPerMBDay float64, logger *logging.Logger) *Reporter {
	if costPerMBDay <= 0 {
		costPerMBDay = config.DefaultMBCostPerDay
	}
	return &Reporter{
		store:        s,
		costPerMBDay: costPerMBDay,
		logger:       logger,
	}
}

// AggregateData groups a quota's snapshots by memory limit with day
// counts, optionally filtered to an inclusive date window.
func (r *Reporter) AggregateData(guid string, w store.Window) ([]models.MemoryAggregate, error) {
	return r.store.AggregateMemory(guid, w)
}

// AggregateServices groups a quota's service observations with day
// counts.
func (r *Reporter) AggregateServices(guid string, w store.Window) ([]models.ServiceAggregate, error) {
	return r.store.AggregateServices(guid, w)
}

// MemoryCost derives the memory cost from grouped rows:
// Σ(limit × days × cost-per-MB-day). Empty input costs nothing.
func (r *Reporter) MemoryCost(rows []models.MemoryAggregate) float64 {
	var cost float64
	for _, row := range rows {
		cost += float64(row.MemoryLimit) * float64(row.Days) * r.costPerMBDay
	}
	return cost
}

// QuotaAggregate composes the aggregate view of one quota. An unknown
// guid yields ErrNotFound, which the API boundary maps to a 404.
func (r *Reporter) QuotaAggregate(guid string, w store.Window) (*models.QuotaReport, error) {
	quota, ok := r.store.GetQuota(guid)
	if !ok {
		return nil, &errors.ErrNotFound{GUID: guid}
	}
	return r.buildReport(quota, w)
}

// ListAll composes the aggregate view for every quota, ordered by guid.
// The ordering is part of the contract: CSV export emits rows in this
// order.
func (r *Reporter) ListAll(w store.Window) ([]models.QuotaReport, error) {
	quotas, err := r.store.ListQuotas()
	if err != nil {
		return nil, err
	}

	reports := make([]models.QuotaReport, 0, len(quotas))
	for i := range quotas {
		rep, err := r.buildReport(&quotas[i], w)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *rep)
	}
	return reports, nil
}

func (r *Reporter) buildReport(quota *models.Quota, w store.Window) (*models.QuotaReport, error) {
	memory, err := r.store.AggregateMemory(quota.GUID, w)
	if err != nil {
		return nil, err
	}
	services, err := r.store.AggregateServices(quota.GUID, w)
	if err != nil {
		return nil, err
	}
	if memory == nil {
		memory = []models.MemoryAggregate{}
	}
	if services == nil {
		services = []models.ServiceAggregate{}
	}

	return &models.QuotaReport{
		GUID:      quota.GUID,
		Name:      quota.Name,
		CreatedAt: quota.CreatedDate(),
		UpdatedAt: quota.UpdatedDate(),
		Memory:    memory,
		Services:  services,
		Cost:      r.MemoryCost(memory),
	}, nil
}

// QuotaDetail composes the drill-down view of one quota: full ordered
// per-day rows instead of grouped counts.
func (r *Reporter) QuotaDetail(guid string, w store.Window) (*models.QuotaDetail, error) {
	quota, ok := r.store.GetQuota(guid)
	if !ok {
		return nil, &errors.ErrNotFound{GUID: guid}
	}

	memory, err := r.store.QuotaDataDetails(guid, w)
	if err != nil {
		return nil, err
	}
	services, err := r.store.ServiceDetails(guid, w)
	if err != nil {
		return nil, err
	}
	if memory == nil {
		memory = []models.QuotaData{}
	}
	if services == nil {
		services = []models.ServiceInstance{}
	}

	return &models.QuotaDetail{
		GUID:      quota.GUID,
		Name:      quota.Name,
		CreatedAt: quota.CreatedDate(),
		UpdatedAt: quota.UpdatedDate(),
		Memory:    memory,
		Services:  services,
	}, nil
}

// CSV renders every quota as a comma-separated export: a header row,
// then one row per quota in guid order. Cost is stringified the short
// way (13.2 stays "13.2", zero is "0"); a quota never observed with a
// creation date renders the literal "None".
func (r *Reporter) CSV(w store.Window) (string, error) {
	reports, err := r.ListAll(w)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"quota_name", "quota_guid", "quota_cost", "quota_created_date"}); err != nil {
		return "", err
	}
	for _, rep := range reports {
		row := []string{
			rep.Name,
			rep.GUID,
			strconv.FormatFloat(rep.Cost, 'f', -1, 64),
			rep.CreatedAt,
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

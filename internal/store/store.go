package store

import "github.com/quotadb/quotadb/internal/models"

// Window is an optional inclusive date range over collected snapshots.
// Filtering applies only when both bounds are present; a single bound is
// ignored entirely, matching the behavior report consumers rely on when
// they default only one side.
type Window struct {
	Since string
	Until string
}

// Bounded reports whether the window actually filters.
func (w Window) Bounded() bool {
	return w.Since != "" && w.Until != ""
}

// Store is the persistence boundary for the synced time series. Writes
// are atomic upserts keyed by the entities' natural keys; a same-day
// re-run resolves to an update, never a duplicate row.
type Store interface {
	UpsertQuota(q *models.Quota) error
	UpsertQuotaData(d *models.QuotaData) error
	UpsertServiceInstance(si *models.ServiceInstance) error

	GetQuota(guid string) (*models.Quota, bool)
	ListQuotas() ([]models.Quota, error)
	AggregateMemory(guid string, w Window) ([]models.MemoryAggregate, error)
	AggregateServices(guid string, w Window) ([]models.ServiceAggregate, error)
	QuotaDataDetails(guid string, w Window) ([]models.QuotaData, error)
	ServiceDetails(guid string, w Window) ([]models.ServiceInstance, error)

	Stats() models.StoreStats
	Close() error
}

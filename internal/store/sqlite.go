package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/quotadb/quotadb/internal/errors"
	"github.com/quotadb/quotadb/internal/logging"
	"github.com/quotadb/quotadb/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists the quota time series in SQLite with WAL mode.
// It is safe for concurrent use; the composite-key uniqueness of daily
// snapshots is enforced by the schema, not by callers.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	logger *logging.Logger
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{
		db:     db,
		logger: logging.NewLogger(),
	}, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS quotas (
					guid TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					url TEXT NOT NULL DEFAULT '',
					created_at DATETIME,
					updated_at DATETIME
				);

				CREATE TABLE IF NOT EXISTS quota_data (
					quota_guid TEXT NOT NULL,
					date_collected TEXT NOT NULL,
					memory_limit INTEGER NOT NULL DEFAULT 0,
					total_routes INTEGER NOT NULL DEFAULT 0,
					total_services INTEGER NOT NULL DEFAULT 0,
					PRIMARY KEY (quota_guid, date_collected),
					FOREIGN KEY (quota_guid) REFERENCES quotas(guid) ON DELETE CASCADE
				);

				CREATE TABLE IF NOT EXISTS service_instances (
					quota_guid TEXT NOT NULL,
					guid TEXT NOT NULL,
					date_collected TEXT NOT NULL,
					instance_name TEXT NOT NULL DEFAULT '',
					label TEXT NOT NULL DEFAULT '',
					provider TEXT NOT NULL DEFAULT '',
					PRIMARY KEY (quota_guid, guid, date_collected),
					FOREIGN KEY (quota_guid) REFERENCES quotas(guid) ON DELETE CASCADE
				);

				CREATE INDEX IF NOT EXISTS idx_quota_data_date ON quota_data(date_collected);
				CREATE INDEX IF NOT EXISTS idx_service_instances_date ON service_instances(date_collected);
			`,
		},
	}

	tx, err := db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin transaction", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range migrations {
		if m.version > currentVersion {
			if _, err := tx.Exec(m.up); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit migrations", Err: err}
	}

	return nil
}

// Close shuts down the store.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// UpsertQuota inserts a quota by guid or refreshes its descriptive
// fields. A nil incoming UpdatedAt leaves the stored value untouched.
func (s *SQLiteStore) UpsertQuota(q *models.Quota) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var createdAt interface{}
	if !q.CreatedAt.IsZero() {
		createdAt = q.CreatedAt
	}
	var updatedAt interface{}
	if q.UpdatedAt != nil && !q.UpdatedAt.IsZero() {
		updatedAt = *q.UpdatedAt
	}

	_, err := s.db.Exec(`
		INSERT INTO quotas (guid, name, url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guid) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			created_at = excluded.created_at,
			updated_at = COALESCE(excluded.updated_at, quotas.updated_at)
	`, q.GUID, q.Name, q.URL, createdAt, updatedAt)
	if err != nil {
		return wrapWriteError("upsert quota", "quotas", err)
	}
	return nil
}

// UpsertQuotaData writes today's (or any given day's) snapshot for a
// quota. Re-running on the same key resolves to an update of the limits,
// never a second row.
func (s *SQLiteStore) UpsertQuotaData(d *models.QuotaData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO quota_data (quota_guid, date_collected, memory_limit, total_routes, total_services)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(quota_guid, date_collected) DO UPDATE SET
			memory_limit = excluded.memory_limit,
			total_routes = excluded.total_routes,
			total_services = excluded.total_services
	`, d.QuotaGUID, d.DateCollected, d.MemoryLimit, d.TotalRoutes, d.TotalServices)
	if err != nil {
		return wrapWriteError("upsert quota data", "quota_data", err)
	}
	return nil
}

// UpsertServiceInstance writes one day's observation of a service.
func (s *SQLiteStore) UpsertServiceInstance(si *models.ServiceInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO service_instances (quota_guid, guid, date_collected, instance_name, label, provider)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(quota_guid, guid, date_collected) DO UPDATE SET
			instance_name = excluded.instance_name,
			label = excluded.label,
			provider = excluded.provider
	`, si.QuotaGUID, si.GUID, si.DateCollected, si.InstanceName, si.Label, si.Provider)
	if err != nil {
		return wrapWriteError("upsert service instance", "service_instances", err)
	}
	return nil
}

// GetQuota retrieves a quota by guid.
func (s *SQLiteStore) GetQuota(guid string) (*models.Quota, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var q models.Quota
	var createdAt, updatedAt sql.NullTime

	err := s.db.QueryRow(`
		SELECT guid, name, url, created_at, updated_at FROM quotas WHERE guid = ?
	`, guid).Scan(&q.GUID, &q.Name, &q.URL, &createdAt, &updatedAt)
	if err != nil {
		return nil, false
	}

	if createdAt.Valid {
		q.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		val := updatedAt.Time
		q.UpdatedAt = &val
	}
	return &q, true
}

// ListQuotas returns all quotas ordered by guid. The ordering is load
// bearing: CSV export depends on a stable row order.
func (s *SQLiteStore) ListQuotas() ([]models.Quota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT guid, name, url, created_at, updated_at FROM quotas ORDER BY guid
	`)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list quotas", Err: err}
	}
	defer rows.Close()

	var quotas []models.Quota
	for rows.Next() {
		var q models.Quota
		var createdAt, updatedAt sql.NullTime

		if err := rows.Scan(&q.GUID, &q.Name, &q.URL, &createdAt, &updatedAt); err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan quota", Err: err}
		}
		if createdAt.Valid {
			q.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			val := updatedAt.Time
			q.UpdatedAt = &val
		}
		quotas = append(quotas, q)
	}
	return quotas, rows.Err()
}

// AggregateMemory groups a quota's snapshots by memory limit, counting
// collected dates. Group order is engine-dependent; consumers must not
// rely on it.
func (s *SQLiteStore) AggregateMemory(guid string, w Window) ([]models.MemoryAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT memory_limit, COUNT(date_collected) FROM quota_data WHERE quota_guid = ?`
	args := []interface{}{guid}
	query, args = applyWindow(query, args, w)
	query += ` GROUP BY memory_limit`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "aggregate memory", Err: err}
	}
	defer rows.Close()

	var aggregates []models.MemoryAggregate
	for rows.Next() {
		var a models.MemoryAggregate
		if err := rows.Scan(&a.MemoryLimit, &a.Days); err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan memory aggregate", Err: err}
		}
		aggregates = append(aggregates, a)
	}
	return aggregates, rows.Err()
}

// AggregateServices groups a quota's service observations by service
// guid and label, counting collected dates.
func (s *SQLiteStore) AggregateServices(guid string, w Window) ([]models.ServiceAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT label, guid, COUNT(date_collected) FROM service_instances WHERE quota_guid = ?`
	args := []interface{}{guid}
	query, args = applyWindow(query, args, w)
	query += ` GROUP BY guid, label`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "aggregate services", Err: err}
	}
	defer rows.Close()

	var aggregates []models.ServiceAggregate
	for rows.Next() {
		var a models.ServiceAggregate
		if err := rows.Scan(&a.Label, &a.GUID, &a.Days); err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan service aggregate", Err: err}
		}
		aggregates = append(aggregates, a)
	}
	return aggregates, rows.Err()
}

// QuotaDataDetails returns the per-day snapshot rows for a quota,
// ordered by date.
func (s *SQLiteStore) QuotaDataDetails(guid string, w Window) ([]models.QuotaData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT quota_guid, date_collected, memory_limit, total_routes, total_services
		FROM quota_data WHERE quota_guid = ?`
	args := []interface{}{guid}
	query, args = applyWindow(query, args, w)
	query += ` ORDER BY date_collected`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "quota data details", Err: err}
	}
	defer rows.Close()

	var details []models.QuotaData
	for rows.Next() {
		var d models.QuotaData
		if err := rows.Scan(&d.QuotaGUID, &d.DateCollected, &d.MemoryLimit, &d.TotalRoutes, &d.TotalServices); err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan quota data", Err: err}
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// ServiceDetails returns the per-day service rows for a quota, ordered
// by date.
func (s *SQLiteStore) ServiceDetails(guid string, w Window) ([]models.ServiceInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT quota_guid, guid, date_collected, instance_name, label, provider
		FROM service_instances WHERE quota_guid = ?`
	args := []interface{}{guid}
	query, args = applyWindow(query, args, w)
	query += ` ORDER BY date_collected, guid`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "service details", Err: err}
	}
	defer rows.Close()

	var details []models.ServiceInstance
	for rows.Next() {
		var si models.ServiceInstance
		if err := rows.Scan(&si.QuotaGUID, &si.GUID, &si.DateCollected, &si.InstanceName, &si.Label, &si.Provider); err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan service instance", Err: err}
		}
		details = append(details, si)
	}
	return details, rows.Err()
}

// Stats returns row counts for the health endpoint.
func (s *SQLiteStore) Stats() models.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats models.StoreStats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM quotas").Scan(&stats.Quotas); err != nil {
		s.logger.Error("failed to count quotas", "error", err.Error())
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM quota_data").Scan(&stats.QuotaData); err != nil {
		s.logger.Error("failed to count quota data", "error", err.Error())
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM service_instances").Scan(&stats.ServiceInstances); err != nil {
		s.logger.Error("failed to count service instances", "error", err.Error())
	}
	return stats
}

// applyWindow appends the inclusive date filter when, and only when,
// both bounds are set.
func applyWindow(query string, args []interface{}, w Window) (string, []interface{}) {
	if !w.Bounded() {
		return query, args
	}
	return query + ` AND date_collected BETWEEN ? AND ?`, append(args, w.Since, w.Until)
}

// wrapWriteError classifies uniqueness breaches separately from other
// write failures. The upsert path should never trigger one; seeing it
// means a write bypassed the ON CONFLICT clauses.
func wrapWriteError(operation, table string, err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed") {
		return &errors.ErrConstraint{Table: table, Err: err}
	}
	return &errors.ErrDatabaseQuery{Operation: operation, Err: err}
}

// Ensure SQLiteStore implements the Store interface
var _ Store = (*SQLiteStore)(nil)

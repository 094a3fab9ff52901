package models

import "time"

// DateLayout is the calendar-date format used as the time-series axis.
// All snapshots are bucketed by date, never by timestamp.
const DateLayout = "2006-01-02"

// Quota represents one quota definition observed on the platform.
// It is created on the first sync that sees its guid and refreshed on
// every subsequent sync; it is never deleted by the sync path.
type Quota struct {
	GUID      string     `json:"guid"`
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// CreatedDate renders the creation date the way exports expect it:
// the calendar date, or the literal "None" when never set.
func (q *Quota) CreatedDate() string {
	if q.CreatedAt.IsZero() {
		return "None"
	}
	return q.CreatedAt.Format(DateLayout)
}

// UpdatedDate renders the last remote update date, or "None".
func (q *Quota) UpdatedDate() string {
	if q.UpdatedAt == nil || q.UpdatedAt.IsZero() {
		return "None"
	}
	return q.UpdatedAt.Format(DateLayout)
}

// QuotaData is one day's snapshot of a quota's limits. At most one row
// exists per (quota guid, date) — the store enforces this as a composite
// primary key, not a convention.
type QuotaData struct {
	QuotaGUID     string `json:"quota_guid"`
	DateCollected string `json:"date_collected"`
	MemoryLimit   int64  `json:"memory_limit"`
	TotalRoutes   int64  `json:"total_routes"`
	TotalServices int64  `json:"total_services"`
}

// ServiceInstance is one day's observation of a provisioned service
// within a quota's organization. Keyed (quota guid, service guid, date).
type ServiceInstance struct {
	QuotaGUID     string `json:"quota_guid"`
	GUID          string `json:"guid"`
	DateCollected string `json:"date_collected"`
	InstanceName  string `json:"instance_name"`
	Label         string `json:"label"`
	Provider      string `json:"provider"`
}

// Today returns the current calendar date in the snapshot format.
func Today() string {
	return time.Now().UTC().Format(DateLayout)
}

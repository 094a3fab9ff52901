package cloudfoundry

import (
	"encoding/json"
	"time"
)

// timestampLayout is the wire format of metadata timestamps.
const timestampLayout = "2006-01-02T15:04:05Z"

// Metadata is the envelope every platform resource carries.
type Metadata struct {
	GUID      string `json:"guid"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CreatedTime parses the creation timestamp. A missing or malformed
// value yields the zero time.
func (m *Metadata) CreatedTime() time.Time {
	t, _ := time.Parse(timestampLayout, m.CreatedAt)
	return t
}

// UpdatedTime parses the update timestamp. Returns nil when the remote
// payload omits it, so callers can leave stored values untouched.
func (m *Metadata) UpdatedTime() *time.Time {
	if m.UpdatedAt == "" {
		return nil
	}
	t, err := time.Parse(timestampLayout, m.UpdatedAt)
	if err != nil {
		return nil
	}
	return &t
}

// OrgResource is one organization entry from the organizations listing.
type OrgResource struct {
	Metadata Metadata `json:"metadata"`
	Entity   struct {
		Name               string `json:"name"`
		QuotaDefinitionURL string `json:"quota_definition_url"`
		SpacesURL          string `json:"spaces_url"`
	} `json:"entity"`
}

// QuotaResource is a quota definition payload.
type QuotaResource struct {
	Metadata Metadata `json:"metadata"`
	Entity   struct {
		Name          string `json:"name"`
		MemoryLimit   int64  `json:"memory_limit"`
		TotalRoutes   int64  `json:"total_routes"`
		TotalServices int64  `json:"total_services"`
	} `json:"entity"`
}

// SpaceResource is one space entry from an organization's spaces listing.
type SpaceResource struct {
	Metadata Metadata `json:"metadata"`
}

// SpaceSummary is the summary endpoint payload for a space, listing the
// services provisioned in it.
type SpaceSummary struct {
	Services []SummaryService `json:"services"`
}

// SummaryService is one provisioned service within a space summary.
type SummaryService struct {
	ServicePlan struct {
		Name    string `json:"name"`
		Service struct {
			GUID     string `json:"guid"`
			Label    string `json:"label"`
			Provider string `json:"provider"`
		} `json:"service"`
	} `json:"service_plan"`
}

// Page is one page of a paginated listing. NextURL is null on the last
// page.
type Page struct {
	TotalResults int64             `json:"total_results"`
	NextURL      *string           `json:"next_url"`
	Resources    []json.RawMessage `json:"resources"`
}

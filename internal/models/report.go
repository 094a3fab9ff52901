package models

// MemoryAggregate counts the distinct days a memory limit was active
// for a quota. Row order is engine-dependent and not part of the contract.
type MemoryAggregate struct {
	MemoryLimit int64 `json:"size"`
	Days        int64 `json:"days"`
}

// ServiceAggregate counts the distinct days a service instance was
// observed within a quota.
type ServiceAggregate struct {
	Label string `json:"label"`
	GUID  string `json:"guid"`
	Days  int64  `json:"days"`
}

// QuotaReport is the composed aggregate view of one quota: identity
// fields plus grouped day counts and the derived memory cost.
type QuotaReport struct {
	GUID      string             `json:"guid"`
	Name      string             `json:"name"`
	CreatedAt string             `json:"created_at"`
	UpdatedAt string             `json:"updated_at"`
	Memory    []MemoryAggregate  `json:"memory"`
	Services  []ServiceAggregate `json:"services"`
	Cost      float64            `json:"cost"`
}

// QuotaDetail is the drill-down view: identity fields plus the full
// ordered per-day rows instead of grouped counts.
type QuotaDetail struct {
	GUID      string            `json:"guid"`
	Name      string            `json:"name"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
	Memory    []QuotaData       `json:"memory"`
	Services  []ServiceInstance `json:"services"`
}

// StoreStats reports row counts, used by the health endpoint.
type StoreStats struct {
	Quotas           int `json:"quotas"`
	QuotaData        int `json:"quota_data"`
	ServiceInstances int `json:"service_instances"`
}

package model

import "time"

// Tenant is the top-level namespace owned by one principal. CreatedAt is the
// account-creation timestamp the usage scanner buckets by.
type Tenant struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// UsageBucket is one record of the reporting output: counts for a single
// day/hour/month key. Group creation is not timestamped in the schema, so
// Groups is always zero in the per-bucket breakdown.
type UsageBucket struct {
	Date   string `json:"date"`
	Users  int    `json:"users"`
	Groups int    `json:"groups"`
	Events int    `json:"events"`
}

package models

import "time"

// PodCredits represents the reputation/reliability score for a pNode
type PodCredits struct {
	Pubkey        string    `json:"pubkey" bson:"pubkey"`
	Credits       float64   `json:"credits" bson:"credits"`
	LastUpdated   time.Time `json:"last_updated" bson:"last_updated"`
	Rank          int       `json:"rank,omitempty" bson:"rank,omitempty"`
	CreditsChange float64   `json:"credits_change,omitempty" bson:"credits_change,omitempty"` // since previous fetch
	Eligible      bool      `json:"eligible" bson:"eligible"`
}

// PodCreditsResponse from the API
type PodCreditsResponse struct {
	PodsCredits []PodCreditsEntry `json:"pods_credits"`
	Status      string            `json:"status"`
}

type PodCreditsEntry struct {
	PodID   string  `json:"pod_id"`
	Credits float64 `json:"credits"`
}

// CreditsThreshold is the network-wide eligibility cut computed from one credits fetch.
type CreditsThreshold struct {
	Threshold     float64   `json:"threshold"`
	Percentile95  float64   `json:"percentile_95"`
	EligibleCount int       `json:"eligible_count"`
	TotalNodes    int       `json:"total_nodes"`
	ComputedAt    time.Time `json:"computed_at"`
}

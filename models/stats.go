package models

import "time"

// NetworkStats represents aggregated network statistics
type NetworkStats struct {
	TotalNodes    int `json:"total_nodes"`
	OnlineNodes   int `json:"online_nodes"`
	DegradedNodes int `json:"degraded_nodes"`
	OfflineNodes  int `json:"offline_nodes"`

	TotalStorage float64 `json:"total_storage_pb"` // Petabytes
	UsedStorage  float64 `json:"used_storage_pb"`  // Petabytes

	AverageUptime      float64 `json:"average_uptime"`
	AverageHealthScore float64 `json:"average_health_score"`
	TotalCredits       float64 `json:"total_credits"`
	CreditsThreshold   float64 `json:"credits_threshold"`
	EligibleNodes      int     `json:"eligible_nodes"`

	NetworkHealth float64 `json:"network_health"` // 0-100

	LastUpdated time.Time `json:"last_updated"`
}

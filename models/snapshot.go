package models

import "time"

// Badge is the uptime tier shown next to a node.
type Badge string

const (
	BadgeElite      Badge = "elite"
	BadgeReliable   Badge = "reliable"
	BadgeAverage    Badge = "average"
	BadgeUnreliable Badge = "unreliable"
)

// NodeState is the per-node slice of a network snapshot that the diff engine compares.
type NodeState struct {
	Status  NodeStatus `json:"status" bson:"status"`
	Version string     `json:"version" bson:"version"`
	Badge   Badge      `json:"badge" bson:"badge"`
}

// NetworkSnapshot is the population summary persisted once per cycle.
type NetworkSnapshot struct {
	Nodes        map[string]NodeState `json:"nodes" bson:"nodes"`
	Countries    map[string]int       `json:"countries" bson:"countries"`
	TotalStorage int64                `json:"total_storage" bson:"total_storage"` // bytes
	TotalNodes   int                  `json:"total_nodes" bson:"total_nodes"`
	OnlineNodes  int                  `json:"online_nodes" bson:"online_nodes"`
	HealthScore  float64              `json:"health_score" bson:"health_score"`
	Timestamp    time.Time            `json:"timestamp" bson:"timestamp"`
}

// NodeRecord is the per-node state persisted for alert transition detection.
type NodeRecord struct {
	NodeID              string     `json:"node_id" bson:"node_id"`
	Status              NodeStatus `json:"status" bson:"status"`
	UptimePercent       float64    `json:"uptime_percent" bson:"uptime_percent"`
	StorageUsagePercent float64    `json:"storage_usage_percent" bson:"storage_usage_percent"`
	StakingScore        float64    `json:"staking_score" bson:"staking_score"`
	Version             string     `json:"version" bson:"version"`
	IsPublic            bool       `json:"is_public" bson:"is_public"`
	RecordedAt          time.Time  `json:"recorded_at" bson:"recorded_at"`
}

// NewNodeRecord captures the alert-relevant fields of a snapshot.
func NewNodeRecord(n *NodeSnapshot, at time.Time) NodeRecord {
	return NodeRecord{
		NodeID:              n.ID,
		Status:              n.Status,
		UptimePercent:       n.Uptime,
		StorageUsagePercent: n.Storage.UsagePercent,
		StakingScore:        float64(n.HealthScore),
		Version:             n.Version,
		IsPublic:            n.IsPublic,
		RecordedAt:          at,
	}
}

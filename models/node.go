package models

import "time"

// NodeStatus is the liveness classification of a pNode.
type NodeStatus string

const (
	StatusOnline   NodeStatus = "online"
	StatusDegraded NodeStatus = "degraded"
	StatusOffline  NodeStatus = "offline"
)

// VersionType is the release track a node runs on.
type VersionType string

const (
	VersionMainnet VersionType = "mainnet"
	VersionDevnet  VersionType = "devnet"
	VersionTrynet  VersionType = "trynet"
	VersionUnknown VersionType = "unknown"
)

// NodeSnapshot is one pNode as observed in the latest collection cycle.
type NodeSnapshot struct {
	ID        string `json:"id" bson:"id"`
	PublicKey string `json:"pubkey" bson:"pubkey"`
	Address   string `json:"address" bson:"address"` // primary "IP:Port"

	Status        NodeStatus `json:"status" bson:"status"`
	Uptime        float64    `json:"uptime" bson:"uptime"` // percent, 0-100
	UptimeSeconds int64      `json:"uptime_seconds" bson:"uptime_seconds"`

	Storage StorageInfo `json:"storage" bson:"storage"`

	Credits     float64 `json:"credits" bson:"credits"`
	HealthScore int     `json:"health_score" bson:"health_score"` // 0-100

	Version     string      `json:"version" bson:"version"`
	VersionType VersionType `json:"version_type" bson:"version_type"`
	IsPublic    bool        `json:"is_public" bson:"is_public"`

	Location *Location `json:"location,omitempty" bson:"location,omitempty"`

	LastSeen   time.Time `json:"last_seen" bson:"last_seen"`
	ObservedAt time.Time `json:"observed_at" bson:"observed_at"`
}

// StorageInfo is committed and used storage in bytes.
type StorageInfo struct {
	Total        int64   `json:"total" bson:"total"`
	Used         int64   `json:"used" bson:"used"`
	UsagePercent float64 `json:"usage_percent" bson:"usage_percent"`
}

type Location struct {
	Country string  `json:"country" bson:"country"`
	City    string  `json:"city" bson:"city"`
	Lat     float64 `json:"lat" bson:"lat"`
	Lon     float64 `json:"lon" bson:"lon"`
}

// Country returns the node's country or "" when the location is unknown.
func (n *NodeSnapshot) Country() string {
	if n.Location == nil {
		return ""
	}
	return n.Location.Country
}

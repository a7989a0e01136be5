package models

import "time"

type ActivityType string

const (
	ActivityNodeOnline       ActivityType = "node_online"
	ActivityNodeOffline      ActivityType = "node_offline"
	ActivityNodeDegraded     ActivityType = "node_degraded"
	ActivityVersionChange    ActivityType = "version_change"
	ActivityBadgeAchieved    ActivityType = "badge_achieved"
	ActivityCountryChange    ActivityType = "country_change"
	ActivityStorageMilestone ActivityType = "storage_milestone"
	ActivityHealthChange     ActivityType = "health_change"
	ActivityNodeCountChange  ActivityType = "node_count_change"
)

// Icon tags understood by the dashboard feed renderer.
const (
	IconUp       = "arrow-up"
	IconDown     = "arrow-down"
	IconWarning  = "alert-triangle"
	IconUpgrade  = "refresh"
	IconAward    = "award"
	IconGlobe    = "globe"
	IconDatabase = "database"
	IconActivity = "activity"
	IconServer   = "server"
)

// ActivityEvent is one entry of the network activity feed.
type ActivityEvent struct {
	ID        string                 `json:"id" bson:"id"`
	Type      ActivityType           `json:"type" bson:"type"`
	Message   string                 `json:"message" bson:"message"`
	Icon      string                 `json:"icon" bson:"icon"`
	NodeID    string                 `json:"node_id,omitempty" bson:"node_id,omitempty"`
	Timestamp time.Time              `json:"timestamp" bson:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

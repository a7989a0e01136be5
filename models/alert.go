package models

import "time"

// AlertType identifies one kind of node alert; it is also the cooldown key.
type AlertType string

const (
	AlertOffline            AlertType = "offline"
	AlertOnline             AlertType = "online"
	AlertDegraded           AlertType = "degraded"
	AlertScoreDrop          AlertType = "score_drop"
	AlertScoreRise          AlertType = "score_rise"
	AlertUptimeDrop         AlertType = "uptime_drop"
	AlertUptimeRise         AlertType = "uptime_rise"
	AlertVersionChange      AlertType = "version_change"
	AlertStorageChange      AlertType = "storage_change"
	AlertPublicStatusChange AlertType = "public_status_change"
)

const (
	DefaultScoreThreshold         = 70.0
	DefaultUptimeThreshold        = 95.0
	DefaultStorageChangeThreshold = 10.0
)

// PushEndpoint is a browser Web Push subscription.
type PushEndpoint struct {
	Endpoint string `json:"endpoint" bson:"endpoint"`
	P256dh   string `json:"p256dh" bson:"p256dh"`
	Auth     string `json:"auth" bson:"auth"`
}

// Subscription is a user's alert preferences for a set of nodes.
type Subscription struct {
	ID           string        `json:"id" bson:"id"`
	Email        string        `json:"email,omitempty" bson:"email,omitempty"`
	EmailEnabled bool          `json:"email_enabled" bson:"email_enabled"`
	Push         *PushEndpoint `json:"push,omitempty" bson:"push,omitempty"`
	NodeIDs      []string      `json:"node_ids" bson:"node_ids"`

	AlertOffline            bool `json:"alert_offline" bson:"alert_offline"`
	AlertOnline             bool `json:"alert_online" bson:"alert_online"`
	AlertDegraded           bool `json:"alert_degraded" bson:"alert_degraded"`
	AlertScoreDrop          bool `json:"alert_score_drop" bson:"alert_score_drop"`
	AlertScoreRise          bool `json:"alert_score_rise" bson:"alert_score_rise"`
	AlertUptimeDrop         bool `json:"alert_uptime_drop" bson:"alert_uptime_drop"`
	AlertUptimeRise         bool `json:"alert_uptime_rise" bson:"alert_uptime_rise"`
	AlertVersionChange      bool `json:"alert_version_change" bson:"alert_version_change"`
	AlertStorageChange      bool `json:"alert_storage_change" bson:"alert_storage_change"`
	AlertPublicStatusChange bool `json:"alert_public_status_change" bson:"alert_public_status_change"`

	ScoreThreshold         float64 `json:"score_threshold" bson:"score_threshold"`
	UptimeThreshold        float64 `json:"uptime_threshold" bson:"uptime_threshold"`
	StorageChangeThreshold float64 `json:"storage_change_threshold" bson:"storage_change_threshold"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// ApplyDefaults fills unset thresholds.
func (s *Subscription) ApplyDefaults() {
	if s.ScoreThreshold <= 0 {
		s.ScoreThreshold = DefaultScoreThreshold
	}
	if s.UptimeThreshold <= 0 {
		s.UptimeThreshold = DefaultUptimeThreshold
	}
	if s.StorageChangeThreshold <= 0 {
		s.StorageChangeThreshold = DefaultStorageChangeThreshold
	}
}

// Covers reports whether the subscription watches the node.
func (s *Subscription) Covers(nodeID string) bool {
	for _, id := range s.NodeIDs {
		if id == nodeID {
			return true
		}
	}
	return false
}

// HasChannel reports whether at least one delivery channel is configured.
func (s *Subscription) HasChannel() bool {
	return (s.EmailEnabled && s.Email != "") || s.Push != nil
}

// Direction of a threshold crossing.
type Direction string

const (
	Below Direction = "below"
	Above Direction = "above"
)

// AlertRule is one enabled alert of a subscription. Exactly one of the
// concrete rule types below implements it.
type AlertRule interface {
	Type() AlertType
}

// StatusRule fires on a transition into a node status.
type StatusRule struct {
	Kind AlertType
	Into NodeStatus
}

func (r StatusRule) Type() AlertType { return r.Kind }

// ThresholdRule fires when a metric crosses Threshold in Direction.
type ThresholdRule struct {
	Kind      AlertType
	Direction Direction
	Threshold float64
}

func (r ThresholdRule) Type() AlertType { return r.Kind }

// ChangeRule fires when a field changes; Threshold is the minimum delta for numeric fields.
type ChangeRule struct {
	Kind      AlertType
	Threshold float64
}

func (r ChangeRule) Type() AlertType { return r.Kind }

// Rules expands the flat toggles into typed rules, in evaluation order.
func (s *Subscription) Rules() []AlertRule {
	score := s.ScoreThreshold
	if score <= 0 {
		score = DefaultScoreThreshold
	}
	uptime := s.UptimeThreshold
	if uptime <= 0 {
		uptime = DefaultUptimeThreshold
	}
	storage := s.StorageChangeThreshold
	if storage <= 0 {
		storage = DefaultStorageChangeThreshold
	}

	var rules []AlertRule
	if s.AlertOffline {
		rules = append(rules, StatusRule{Kind: AlertOffline, Into: StatusOffline})
	}
	if s.AlertOnline {
		rules = append(rules, StatusRule{Kind: AlertOnline, Into: StatusOnline})
	}
	if s.AlertDegraded {
		rules = append(rules, StatusRule{Kind: AlertDegraded, Into: StatusDegraded})
	}
	if s.AlertScoreDrop {
		rules = append(rules, ThresholdRule{Kind: AlertScoreDrop, Direction: Below, Threshold: score})
	}
	if s.AlertScoreRise {
		rules = append(rules, ThresholdRule{Kind: AlertScoreRise, Direction: Above, Threshold: score})
	}
	if s.AlertUptimeDrop {
		rules = append(rules, ThresholdRule{Kind: AlertUptimeDrop, Direction: Below, Threshold: uptime})
	}
	if s.AlertUptimeRise {
		rules = append(rules, ThresholdRule{Kind: AlertUptimeRise, Direction: Above, Threshold: uptime})
	}
	if s.AlertVersionChange {
		rules = append(rules, ChangeRule{Kind: AlertVersionChange})
	}
	if s.AlertStorageChange {
		rules = append(rules, ChangeRule{Kind: AlertStorageChange, Threshold: storage})
	}
	if s.AlertPublicStatusChange {
		rules = append(rules, ChangeRule{Kind: AlertPublicStatusChange})
	}
	return rules
}

// AlertSentRecord marks that an alert was delivered; it drives the cooldown window.
type AlertSentRecord struct {
	SubscriptionID string    `json:"subscription_id" bson:"subscription_id"`
	NodeID         string    `json:"node_id" bson:"node_id"`
	AlertType      AlertType `json:"alert_type" bson:"alert_type"`
	SentAt         time.Time `json:"sent_at" bson:"sent_at"`
}

// AlertRow is an entry in the in-app alert feed.
type AlertRow struct {
	ID             string    `json:"id" bson:"id"`
	SubscriptionID string    `json:"subscription_id" bson:"subscription_id"`
	NodeID         string    `json:"node_id" bson:"node_id"`
	AlertType      AlertType `json:"alert_type" bson:"alert_type"`
	Title          string    `json:"title" bson:"title"`
	Message        string    `json:"message" bson:"message"`
	Read           bool      `json:"read" bson:"read"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// ProcessResult summarises one alert processing run.
type ProcessResult struct {
	OfflineAlerts        int      `json:"offline_alerts"`
	ScoreDropAlerts      int      `json:"score_drop_alerts"`
	OtherAlerts          int      `json:"other_alerts"`
	Errors               int      `json:"errors"`
	ExpiredPushEndpoints []string `json:"expired_push_endpoints,omitempty"`
	Skipped              bool     `json:"skipped,omitempty"`
}

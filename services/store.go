package services

import (
	"context"
	"errors"
	"time"

	"xandpulse/models"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrAlertNotFound        = errors.New("alert not found")
	ErrInvalidSubscription  = errors.New("invalid subscription")
)

// SnapshotStore persists the previous cycle's state for diffing.
// A missing snapshot is reported as (nil, nil).
type SnapshotStore interface {
	GetPreviousSnapshot(ctx context.Context) (*models.NetworkSnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *models.NetworkSnapshot) error
	GetPreviousNodeRecords(ctx context.Context) ([]models.NodeRecord, error)
	SaveNodeRecords(ctx context.Context, records []models.NodeRecord) error
}

type ActivityStore interface {
	AppendActivity(ctx context.Context, events []models.ActivityEvent) error
	RecentActivity(ctx context.Context, limit int) ([]models.ActivityEvent, error)
}

type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *models.Subscription) error
	DeleteSubscription(ctx context.Context, id string) error
	ListSubscriptions(ctx context.Context) ([]*models.Subscription, error)
	ListSubscriptionsForNode(ctx context.Context, nodeID string) ([]*models.Subscription, error)
}

// CooldownStore answers "when did this subscription last hear about this node and alert type".
// A zero time means never.
type CooldownStore interface {
	LastAlertSent(ctx context.Context, subscriptionID, nodeID string, alertType models.AlertType) (time.Time, error)
	RecordAlertSent(ctx context.Context, record models.AlertSentRecord) error
}

type AlertFeedStore interface {
	AppendAlert(ctx context.Context, row *models.AlertRow) error
	ListAlerts(ctx context.Context, subscriptionID string, unreadOnly bool, limit int) ([]*models.AlertRow, error)
	MarkAlertRead(ctx context.Context, id string) error
}

// maxActivityEvents bounds the persisted activity feed.
const maxActivityEvents = 100

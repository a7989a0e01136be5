package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"xandpulse/models"
)

// SubscriptionService validates subscriptions before they reach the store.
type SubscriptionService struct {
	store SubscriptionStore
	now   func() time.Time
}

func NewSubscriptionService(store SubscriptionStore) *SubscriptionService {
	return &SubscriptionService{store: store, now: time.Now}
}

// ValidateSubscription normalises sub in place and reports the first problem
// wrapped in ErrInvalidSubscription.
func ValidateSubscription(sub *models.Subscription) error {
	ids := make([]string, 0, len(sub.NodeIDs))
	seen := make(map[string]bool, len(sub.NodeIDs))
	for _, id := range sub.NodeIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one node id is required", ErrInvalidSubscription)
	}
	sub.NodeIDs = ids

	sub.Email = strings.TrimSpace(sub.Email)
	if sub.EmailEnabled {
		if _, err := mail.ParseAddress(sub.Email); err != nil {
			return fmt.Errorf("%w: invalid email %q", ErrInvalidSubscription, sub.Email)
		}
	}
	if sub.Push != nil && (sub.Push.Endpoint == "" || sub.Push.P256dh == "" || sub.Push.Auth == "") {
		return fmt.Errorf("%w: push subscription needs endpoint, p256dh and auth", ErrInvalidSubscription)
	}

	sub.ApplyDefaults()
	if sub.ScoreThreshold > 100 || sub.UptimeThreshold > 100 || sub.StorageChangeThreshold > 100 {
		return fmt.Errorf("%w: thresholds must be within 0-100", ErrInvalidSubscription)
	}
	return nil
}

func (ss *SubscriptionService) Create(ctx context.Context, sub *models.Subscription) error {
	if err := ValidateSubscription(sub); err != nil {
		return err
	}
	now := ss.now()
	sub.ID = uuid.NewString()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	if err := ss.store.CreateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	log.WithFields(log.Fields{
		"subscription": sub.ID,
		"nodes":        len(sub.NodeIDs),
	}).Info("✓ Subscription created")
	return nil
}

// Update replaces the stored subscription id with sub, keeping its creation time.
func (ss *SubscriptionService) Update(ctx context.Context, id string, sub *models.Subscription) error {
	existing, err := ss.store.GetSubscription(ctx, id)
	if err != nil {
		return err
	}
	if err := ValidateSubscription(sub); err != nil {
		return err
	}
	sub.ID = id
	sub.CreatedAt = existing.CreatedAt
	sub.UpdatedAt = ss.now()
	return ss.store.UpdateSubscription(ctx, sub)
}

func (ss *SubscriptionService) Get(ctx context.Context, id string) (*models.Subscription, error) {
	return ss.store.GetSubscription(ctx, id)
}

func (ss *SubscriptionService) Delete(ctx context.Context, id string) error {
	return ss.store.DeleteSubscription(ctx, id)
}

func (ss *SubscriptionService) List(ctx context.Context) ([]*models.Subscription, error) {
	return ss.store.ListSubscriptions(ctx)
}

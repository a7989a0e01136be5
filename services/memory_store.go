package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"xandpulse/models"
)

var (
	_ SnapshotStore     = (*MemoryStore)(nil)
	_ ActivityStore     = (*MemoryStore)(nil)
	_ SubscriptionStore = (*MemoryStore)(nil)
	_ CooldownStore     = (*MemoryStore)(nil)
	_ AlertFeedStore    = (*MemoryStore)(nil)
)

// MemoryStore implements every persistence port in process memory.
// It backs tests and deployments without MongoDB.
type MemoryStore struct {
	mu            sync.RWMutex
	snapshot      *models.NetworkSnapshot
	records       []models.NodeRecord
	activity      []models.ActivityEvent
	subscriptions map[string]*models.Subscription
	cooldowns     map[string]time.Time
	alerts        []*models.AlertRow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[string]*models.Subscription),
		cooldowns:     make(map[string]time.Time),
	}
}

func (m *MemoryStore) GetPreviousSnapshot(_ context.Context) (*models.NetworkSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot == nil {
		return nil, nil
	}
	cp := *m.snapshot
	return &cp, nil
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, snapshot *models.NetworkSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *snapshot
	m.snapshot = &cp
	return nil
}

func (m *MemoryStore) GetPreviousNodeRecords(_ context.Context) ([]models.NodeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.NodeRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *MemoryStore) SaveNodeRecords(_ context.Context, records []models.NodeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make([]models.NodeRecord, len(records))
	copy(m.records, records)
	return nil
}

func (m *MemoryStore) AppendActivity(_ context.Context, events []models.ActivityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, events...)
	if len(m.activity) > maxActivityEvents {
		m.activity = m.activity[len(m.activity)-maxActivityEvents:]
	}
	return nil
}

// RecentActivity returns newest first.
func (m *MemoryStore) RecentActivity(_ context.Context, limit int) ([]models.ActivityEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.activity)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.ActivityEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.activity[i])
	}
	return out, nil
}

func (m *MemoryStore) CreateSubscription(_ context.Context, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.subscriptions[sub.ID]; exists {
		return fmt.Errorf("subscription %s already exists", sub.ID)
	}
	cp := *sub
	m.subscriptions[sub.ID] = &cp
	return nil
}

func (m *MemoryStore) GetSubscription(_ context.Context, id string) (*models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subscriptions[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *MemoryStore) UpdateSubscription(_ context.Context, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	cp := *sub
	m.subscriptions[sub.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteSubscription(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[id]; !ok {
		return ErrSubscriptionNotFound
	}
	delete(m.subscriptions, id)
	return nil
}

func (m *MemoryStore) ListSubscriptions(_ context.Context) ([]*models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		cp := *sub
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListSubscriptionsForNode(ctx context.Context, nodeID string) ([]*models.Subscription, error) {
	all, err := m.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, sub := range all {
		if sub.Covers(nodeID) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (m *MemoryStore) LastAlertSent(_ context.Context, subscriptionID, nodeID string, alertType models.AlertType) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cooldowns[cooldownKey(subscriptionID, nodeID, alertType)], nil
}

func (m *MemoryStore) RecordAlertSent(_ context.Context, record models.AlertSentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldowns[cooldownKey(record.SubscriptionID, record.NodeID, record.AlertType)] = record.SentAt
	return nil
}

func (m *MemoryStore) AppendAlert(_ context.Context, row *models.AlertRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *row
	m.alerts = append(m.alerts, &cp)
	return nil
}

// ListAlerts returns newest first; an empty subscriptionID lists every subscription's alerts.
func (m *MemoryStore) ListAlerts(_ context.Context, subscriptionID string, unreadOnly bool, limit int) ([]*models.AlertRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.AlertRow, 0)
	for i := len(m.alerts) - 1; i >= 0; i-- {
		row := m.alerts[i]
		if subscriptionID != "" && row.SubscriptionID != subscriptionID {
			continue
		}
		if unreadOnly && row.Read {
			continue
		}
		cp := *row
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) MarkAlertRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.alerts {
		if row.ID == id {
			row.Read = true
			return nil
		}
	}
	return ErrAlertNotFound
}

func cooldownKey(subscriptionID, nodeID string, alertType models.AlertType) string {
	return fmt.Sprintf("cooldown:%s:%s:%s", subscriptionID, nodeID, alertType)
}

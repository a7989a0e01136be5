package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xandpulse/models"
)

type fakeEmail struct {
	mu   sync.Mutex
	sent []string
	fail map[string]error
}

func (f *fakeEmail) Send(_ context.Context, to, subject, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[to]; err != nil {
		return err
	}
	f.sent = append(f.sent, to+"|"+subject)
	return nil
}

func (f *fakeEmail) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakePush struct {
	mu   sync.Mutex
	sent []string
	fail map[string]error
}

func (f *fakePush) Send(_ context.Context, ep *models.PushEndpoint, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[ep.Endpoint]; err != nil {
		return err
	}
	f.sent = append(f.sent, ep.Endpoint)
	return nil
}

type alertHarness struct {
	t     *testing.T
	store *MemoryStore
	email *fakeEmail
	push  *fakePush
	svc   *AlertService
}

func newAlertHarness(t *testing.T) *alertHarness {
	store := NewMemoryStore()
	email := &fakeEmail{fail: map[string]error{}}
	push := &fakePush{fail: map[string]error{}}
	svc := NewAlertService(AlertServiceConfig{
		Records:       store,
		Subscriptions: store,
		Cooldown:      store,
		Feed:          store,
		Email:         email,
		Push:          push,
		Concurrency:   4,
	})
	return &alertHarness{t: t, store: store, email: email, push: push, svc: svc}
}

func (h *alertHarness) subscribe(sub *models.Subscription) {
	sub.ApplyDefaults()
	require.NoError(h.t, h.store.CreateSubscription(context.Background(), sub))
}

// cycle runs one alert pass at the given time and then persists the nodes as the
// new baseline, the way the poller does.
func (h *alertHarness) cycle(at time.Time, nodes ...*models.NodeSnapshot) models.ProcessResult {
	ctx := context.Background()
	h.svc.now = func() time.Time { return at }
	res := h.svc.ProcessAlerts(ctx, nodes, "https://pulse.example/")

	records := make([]models.NodeRecord, 0, len(nodes))
	for _, n := range nodes {
		records = append(records, models.NewNodeRecord(n, at))
	}
	require.NoError(h.t, h.store.SaveNodeRecords(ctx, records))
	return res
}

func alertNode(id string, status models.NodeStatus, health int) *models.NodeSnapshot {
	return &models.NodeSnapshot{
		ID:          id,
		Address:     id + ".example:9001",
		Status:      status,
		Uptime:      99,
		HealthScore: health,
		Version:     "0.8.0",
		IsPublic:    true,
	}
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestProcessAlertsColdStartSendsNothing(t *testing.T) {
	h := newAlertHarness(t)
	h.subscribe(&models.Subscription{ID: "s1", Email: "a@x.io", EmailEnabled: true, NodeIDs: []string{"n1"}, AlertOffline: true})

	res := h.cycle(t0, alertNode("n1", models.StatusOffline, 10))

	assert.True(t, res.Skipped)
	assert.Zero(t, res.OfflineAlerts)
	assert.Zero(t, h.email.count())
}

func TestProcessAlertsOfflineDedupeScenario(t *testing.T) {
	h := newAlertHarness(t)
	h.subscribe(&models.Subscription{ID: "s1", Email: "a@x.io", EmailEnabled: true, NodeIDs: []string{"n1"}, AlertOffline: true})

	h.cycle(t0.Add(-time.Minute), alertNode("n1", models.StatusOnline, 90))

	res := h.cycle(t0, alertNode("n1", models.StatusOffline, 60))
	assert.Equal(t, 1, res.OfflineAlerts)

	res = h.cycle(t0.Add(time.Hour), alertNode("n1", models.StatusOffline, 60))
	assert.Zero(t, res.OfflineAlerts, "still offline is not a transition")

	res = h.cycle(t0.Add(2*time.Hour), alertNode("n1", models.StatusOnline, 90))
	assert.Zero(t, res.OfflineAlerts+res.OtherAlerts)

	res = h.cycle(t0.Add(7*time.Hour), alertNode("n1", models.StatusOffline, 60))
	assert.Equal(t, 1, res.OfflineAlerts, "fresh transition after cooldown")

	assert.Equal(t, 2, h.email.count())
	rows, err := h.svc.Feed(context.Background(), "s1", true, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestProcessAlertsCooldownSuppressesRepeatTransition(t *testing.T) {
	h := newAlertHarness(t)
	h.subscribe(&models.Subscription{ID: "s1", Email: "a@x.io", EmailEnabled: true, NodeIDs: []string{"n1"}, AlertOffline: true})

	h.cycle(t0.Add(-time.Minute), alertNode("n1", models.StatusOnline, 90))
	h.cycle(t0, alertNode("n1", models.StatusOffline, 90))
	h.cycle(t0.Add(time.Hour), alertNode("n1", models.StatusOnline, 90))
	res := h.cycle(t0.Add(3*time.Hour), alertNode("n1", models.StatusOffline, 90))

	assert.Zero(t, res.OfflineAlerts)
	assert.Equal(t, 1, h.email.count())
}

func TestProcessAlertsScoreDropIsStrictCrossing(t *testing.T) {
	h := newAlertHarness(t)
	h.subscribe(&models.Subscription{ID: "s1", Email: "a@x.io", EmailEnabled: true, NodeIDs: []string{"n1", "n2"}, AlertScoreDrop: true})

	h.cycle(t0, alertNode("n1", models.StatusOnline, 80), alertNode("n2", models.StatusOnline, 60))

	res := h.cycle(t0.Add(time.Minute), alertNode("n1", models.StatusOnline, 65), alertNode("n2", models.StatusOnline, 50))
	assert.Equal(t, 1, res.ScoreDropAlerts, "only n1 crossed 70")

	rows, err := h.svc.Feed(context.Background(), "s1", false, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "n1", rows[0].NodeID)
	assert.Equal(t, models.AlertScoreDrop, rows[0].AlertType)
}

func TestProcessAlertsScoreDropFromExactThreshold(t *testing.T) {
	h := newAlertHarness(t)
	h.subscribe(&models.Subscription{ID: "s1", Email: "a@x.io", EmailEnabled: true, NodeIDs: []string{"n1"}, AlertScoreDrop: true, ScoreThreshold: 50})

	h.cycle(t0, alertNode("n1", models.StatusOnline, 50))
	res := h.cycle(t0.Add(time.Minute), alertNode("n1", models.StatusOnline, 49))

	assert.Equal(t, 1, res.ScoreDropAlerts)
}

func TestProcessAlertsPartialFailureDoesNotBlockOthers(t *testing.T) {
	h := newAlertHarness(t)
	h.push.fail["https://push.example/broken"] = errors.New("connection reset")
	h.subscribe(&models.Subscription{ID: "broken", Push: &models.PushEndpoint{Endpoint: "https://push.example/broken"}, NodeIDs: []string{"n1"}, AlertOffline: true})
	h.subscribe(&models.Subscription{ID: "ok", Email: "ok@x.io", EmailEnabled: true, NodeIDs: []string{"n1"}, AlertOffline: true})

	h.cycle(t0, alertNode("n1", models.StatusOnline, 90))
	res := h.cycle(t0.Add(time.Minute), alertNode("n1", models.StatusOffline, 90))

	assert.Equal(t, 1, res.OfflineAlerts)
	assert.Equal(t, 1, res.Errors)
	assert.Empty(t, res.ExpiredPushEndpoints)

	ctx := context.Background()
	broken, err := h.svc.Feed(ctx, "broken", false, 0)
	require.NoError(t, err)
	assert.Empty(t, broken, "nothing recorded when every channel failed")

	cooling, err := h.svc.IsInCooldown(ctx, "broken", "n1", models.AlertOffline, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, cooling)
}

func TestProcessAlertsExpiredPushEndpointIsReported(t *testing.T) {
	h := newAlertHarness(t)
	h.push.fail["https://push.example/gone"] = ErrPushSubscriptionExpired
	h.subscribe(&models.Subscription{
		ID:           "s1",
		Email:        "a@x.io",
		EmailEnabled: true,
		Push:         &models.PushEndpoint{Endpoint: "https://push.example/gone"},
		NodeIDs:      []string{"n1"},
		AlertOffline: true,
	})

	h.cycle(t0, alertNode("n1", models.StatusOnline, 90))
	res := h.cycle(t0.Add(time.Minute), alertNode("n1", models.StatusOffline, 90))

	assert.Equal(t, 1, res.OfflineAlerts, "email still delivered")
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, []string{"https://push.example/gone"}, res.ExpiredPushEndpoints)
}

func TestProcessAlertsNewOfflineNodeAlertsWithoutHistory(t *testing.T) {
	h := newAlertHarness(t)
	h.subscribe(&models.Subscription{ID: "s1", Email: "a@x.io", EmailEnabled: true, NodeIDs: []string{"n2"}, AlertOffline: true, AlertScoreDrop: true})

	h.cycle(t0, alertNode("n1", models.StatusOnline, 90))
	res := h.cycle(t0.Add(time.Minute), alertNode("n1", models.StatusOnline, 90), alertNode("n2", models.StatusOffline, 10))

	assert.Equal(t, 1, res.OfflineAlerts)
	assert.Zero(t, res.ScoreDropAlerts, "score needs a previous record")
}

func TestProcessAlertsExtendedToggles(t *testing.T) {
	h := newAlertHarness(t)
	h.subscribe(&models.Subscription{
		ID:                      "s1",
		Email:                   "a@x.io",
		EmailEnabled:            true,
		NodeIDs:                 []string{"n1"},
		AlertOnline:             true,
		AlertVersionChange:      true,
		AlertPublicStatusChange: true,
		AlertStorageChange:      true,
		AlertUptimeDrop:         true,
	})

	before := alertNode("n1", models.StatusOffline, 90)
	before.Storage.UsagePercent = 40
	h.cycle(t0, before)

	after := alertNode("n1", models.StatusOnline, 90)
	after.Version = "0.8.1"
	after.IsPublic = false
	after.Storage.UsagePercent = 45
	after.Uptime = 99
	res := h.cycle(t0.Add(time.Minute), after)

	// online, version and public status fire; storage moved 5 < 10 points; uptime did not cross.
	assert.Equal(t, 3, res.OtherAlerts)
	assert.Zero(t, res.Errors)
}

func TestProcessAlertsInAppOnlySubscriptionStillRecorded(t *testing.T) {
	h := newAlertHarness(t)
	h.subscribe(&models.Subscription{ID: "s1", NodeIDs: []string{"n1"}, AlertOffline: true})

	h.cycle(t0, alertNode("n1", models.StatusOnline, 90))
	res := h.cycle(t0.Add(time.Minute), alertNode("n1", models.StatusOffline, 90))

	assert.Equal(t, 1, res.OfflineAlerts)
	rows, err := h.svc.Feed(context.Background(), "s1", true, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0].Title, "offline")

	require.NoError(t, h.svc.MarkRead(context.Background(), rows[0].ID))
	rows, _ = h.svc.Feed(context.Background(), "s1", true, 0)
	assert.Empty(t, rows)
}

func TestIsInCooldownWindow(t *testing.T) {
	h := newAlertHarness(t)
	ctx := context.Background()

	cooling, err := h.svc.IsInCooldown(ctx, "s1", "n1", models.AlertOffline, t0)
	require.NoError(t, err)
	assert.False(t, cooling, "never sent")

	require.NoError(t, h.store.RecordAlertSent(ctx, models.AlertSentRecord{
		SubscriptionID: "s1", NodeID: "n1", AlertType: models.AlertOffline, SentAt: t0,
	}))

	cooling, _ = h.svc.IsInCooldown(ctx, "s1", "n1", models.AlertOffline, t0.Add(CooldownWindow-time.Second))
	assert.True(t, cooling)
	cooling, _ = h.svc.IsInCooldown(ctx, "s1", "n1", models.AlertOffline, t0.Add(CooldownWindow))
	assert.False(t, cooling)
	cooling, _ = h.svc.IsInCooldown(ctx, "s1", "n1", models.AlertScoreDrop, t0.Add(time.Minute))
	assert.False(t, cooling, "cooldown is per alert type")
}

func TestCrossed(t *testing.T) {
	assert.True(t, crossed(70, 69.9, 70, models.Below))
	assert.False(t, crossed(69, 60, 70, models.Below))
	assert.False(t, crossed(80, 70, 70, models.Below))
	assert.True(t, crossed(94, 95, 95, models.Above))
	assert.False(t, crossed(95, 99, 95, models.Above))
}

func TestNodeLink(t *testing.T) {
	assert.Equal(t, "https://pulse.example/nodes/abc", nodeLink("https://pulse.example/", "abc"))
	assert.Equal(t, "", nodeLink("", "abc"))
}

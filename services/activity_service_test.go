package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xandpulse/models"
)

func snap(nodes map[string]models.NodeState) *models.NetworkSnapshot {
	return &models.NetworkSnapshot{
		Nodes:      nodes,
		Countries:  map[string]int{},
		TotalNodes: len(nodes),
		Timestamp:  time.Unix(1700000000, 0),
	}
}

func eventsOfType(events []models.ActivityEvent, t models.ActivityType) []models.ActivityEvent {
	var out []models.ActivityEvent
	for _, e := range events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func TestBuildNetworkSnapshot(t *testing.T) {
	nodes := []*models.NodeSnapshot{
		{ID: "a", Status: models.StatusOnline, Uptime: 99.9, Storage: models.StorageInfo{Total: 10}, Location: &models.Location{Country: "Germany"}},
		{ID: "b", Status: models.StatusOffline, Uptime: 50, Storage: models.StorageInfo{Total: 5}, Location: &models.Location{Country: "Germany"}},
		{ID: "c", Status: models.StatusDegraded, Uptime: 96, Storage: models.StorageInfo{Total: 1}},
		{ID: "d", Status: models.StatusOnline, Uptime: 85},
	}
	s := BuildNetworkSnapshot(nodes, time.Now())

	assert.Equal(t, 4, s.TotalNodes)
	assert.Equal(t, 2, s.OnlineNodes)
	assert.Equal(t, 50.0, s.HealthScore)
	assert.Equal(t, int64(16), s.TotalStorage)
	assert.Equal(t, map[string]int{"Germany": 2}, s.Countries)
	assert.Equal(t, models.BadgeElite, s.Nodes["a"].Badge)
	assert.Equal(t, models.BadgeUnreliable, s.Nodes["b"].Badge)
	assert.Equal(t, models.BadgeReliable, s.Nodes["c"].Badge)
	assert.Equal(t, models.BadgeAverage, s.Nodes["d"].Badge)
}

func TestBuildNetworkSnapshotEmpty(t *testing.T) {
	s := BuildNetworkSnapshot(nil, time.Now())
	assert.Equal(t, 0.0, s.HealthScore)
	assert.Equal(t, 0, s.TotalNodes)
}

func TestDetectChangesStatusTransitions(t *testing.T) {
	prev := snap(map[string]models.NodeState{
		"up":    {Status: models.StatusOffline, Version: "1", Badge: models.BadgeAverage},
		"down":  {Status: models.StatusOnline, Version: "1", Badge: models.BadgeAverage},
		"sick":  {Status: models.StatusOnline, Version: "1", Badge: models.BadgeAverage},
		"worse": {Status: models.StatusDegraded, Version: "1", Badge: models.BadgeAverage},
	})
	curr := snap(map[string]models.NodeState{
		"up":    {Status: models.StatusOnline, Version: "1", Badge: models.BadgeAverage},
		"down":  {Status: models.StatusOffline, Version: "1", Badge: models.BadgeAverage},
		"sick":  {Status: models.StatusDegraded, Version: "1", Badge: models.BadgeAverage},
		"worse": {Status: models.StatusOffline, Version: "1", Badge: models.BadgeAverage},
	})

	events := DetectChanges(prev, curr, nil)

	online := eventsOfType(events, models.ActivityNodeOnline)
	require.Len(t, online, 1)
	assert.Equal(t, "up", online[0].NodeID)
	assert.Equal(t, "Node up came online", online[0].Message)
	assert.Equal(t, models.IconUp, online[0].Icon)

	offline := eventsOfType(events, models.ActivityNodeOffline)
	require.Len(t, offline, 2)
	assert.Equal(t, "down", offline[0].NodeID)
	assert.Equal(t, "worse", offline[1].NodeID)

	degraded := eventsOfType(events, models.ActivityNodeDegraded)
	require.Len(t, degraded, 1)
	assert.Equal(t, "sick", degraded[0].NodeID)
}

func TestDetectChangesVersionAndBadge(t *testing.T) {
	prev := snap(map[string]models.NodeState{
		"a": {Status: models.StatusOnline, Version: "0.7.3", Badge: models.BadgeAverage},
		"b": {Status: models.StatusOnline, Version: "0.8.0", Badge: models.BadgeReliable},
		"c": {Status: models.StatusOnline, Version: "0.8.0", Badge: models.BadgeUnreliable},
		"d": {Status: models.StatusOnline, Version: "0.8.0", Badge: models.BadgeElite},
	})
	curr := snap(map[string]models.NodeState{
		"a": {Status: models.StatusOnline, Version: "0.8.0", Badge: models.BadgeReliable},
		"b": {Status: models.StatusOnline, Version: "0.8.0", Badge: models.BadgeElite},
		"c": {Status: models.StatusOnline, Version: "0.8.0", Badge: models.BadgeAverage},
		"d": {Status: models.StatusOnline, Version: "0.8.0", Badge: models.BadgeReliable},
	})

	events := DetectChanges(prev, curr, []*models.NodeSnapshot{{ID: "a", Address: "10.0.0.1:9001"}})

	versions := eventsOfType(events, models.ActivityVersionChange)
	require.Len(t, versions, 1)
	assert.Equal(t, "Node a (10.0.0.1:9001) updated from 0.7.3 to 0.8.0", versions[0].Message)

	badges := eventsOfType(events, models.ActivityBadgeAchieved)
	require.Len(t, badges, 2)
	assert.Equal(t, "a", badges[0].NodeID)
	assert.Equal(t, "b", badges[1].NodeID)
}

func TestDetectChangesCompletenessForNewAndRemoved(t *testing.T) {
	prev := snap(map[string]models.NodeState{
		"stay": {Status: models.StatusOnline},
		"gone": {Status: models.StatusOnline},
	})
	curr := snap(map[string]models.NodeState{
		"stay":  {Status: models.StatusOnline},
		"fresh": {Status: models.StatusOffline},
	})

	events := DetectChanges(prev, curr, nil)
	require.Len(t, events, 2)

	perNode := map[string][]models.ActivityType{}
	for _, e := range events {
		perNode[e.NodeID] = append(perNode[e.NodeID], e.Type)
	}
	assert.Equal(t, []models.ActivityType{models.ActivityNodeOnline}, perNode["fresh"])
	assert.Equal(t, []models.ActivityType{models.ActivityNodeOffline}, perNode["gone"])
	assert.Empty(t, perNode["stay"])
}

func TestDetectChangesCountryGrowth(t *testing.T) {
	prev := snap(nil)
	prev.Countries = map[string]int{"France": 2, "Japan": 1}
	curr := snap(nil)
	curr.Countries = map[string]int{"France": 5, "Japan": 1, "Brazil": 3}

	events := eventsOfType(DetectChanges(prev, curr, nil), models.ActivityCountryChange)
	require.Len(t, events, 1)
	assert.Equal(t, "France", events[0].Metadata["country"])
	assert.Equal(t, 3, events[0].Metadata["delta"])
}

func TestDetectChangesStorageMilestoneSingleCrossing(t *testing.T) {
	prev := snap(nil)
	prev.TotalStorage = 99 * terabyte
	curr := snap(nil)
	curr.TotalStorage = 101 * terabyte

	events := DetectChanges(prev, curr, nil)
	require.Len(t, events, 1)
	assert.Equal(t, models.ActivityStorageMilestone, events[0].Type)
	assert.Equal(t, "Network storage passed 100 TB", events[0].Message)
}

func TestDetectChangesStorageMilestoneMultipleCrossings(t *testing.T) {
	prev := snap(nil)
	prev.TotalStorage = 120 * terabyte
	curr := snap(nil)
	curr.TotalStorage = 1100 * terabyte

	events := eventsOfType(DetectChanges(prev, curr, nil), models.ActivityStorageMilestone)
	require.Len(t, events, 6)
	assert.Equal(t, "Network storage passed 125 TB", events[0].Message)
	assert.Equal(t, "Network storage passed 1 PB", events[5].Message)
}

func TestDetectChangesHealthAndNodeCountSwings(t *testing.T) {
	prev := snap(nil)
	prev.HealthScore = 90
	prev.TotalNodes = 100
	curr := snap(nil)
	curr.HealthScore = 87.5
	curr.TotalNodes = 94

	events := DetectChanges(prev, curr, nil)
	health := eventsOfType(events, models.ActivityHealthChange)
	require.Len(t, health, 1)
	assert.Equal(t, -2.5, health[0].Metadata["delta"])

	count := eventsOfType(events, models.ActivityNodeCountChange)
	require.Len(t, count, 1)
	assert.Equal(t, "Node count shrank by 6 to 94", count[0].Message)

	curr.HealthScore = 88.5
	curr.TotalNodes = 96
	assert.Empty(t, DetectChanges(prev, curr, nil))
}

func TestDetectChangesEventIDsAreUnique(t *testing.T) {
	prev := snap(map[string]models.NodeState{})
	curr := snap(map[string]models.NodeState{"a": {}, "b": {}, "c": {}})

	seen := map[string]bool{}
	for _, e := range DetectChanges(prev, curr, nil) {
		assert.False(t, seen[e.ID])
		seen[e.ID] = true
		assert.Equal(t, curr.Timestamp, e.Timestamp)
	}
	assert.Len(t, seen, 3)
}

type failingSnapshotStore struct {
	*MemoryStore
}

func (f failingSnapshotStore) GetPreviousSnapshot(context.Context) (*models.NetworkSnapshot, error) {
	return nil, errors.New("storage offline")
}

func TestRecordCycleColdStartThenDiff(t *testing.T) {
	store := NewMemoryStore()
	as := NewActivityService(store, store, nil, nil)
	ctx := context.Background()

	nodes := []*models.NodeSnapshot{{ID: "a", Status: models.StatusOnline, Uptime: 99}}
	events, err := as.RecordCycle(ctx, nodes)
	require.NoError(t, err)
	assert.Empty(t, events)

	saved, err := store.GetPreviousSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 1, saved.TotalNodes)

	nodes[0].Status = models.StatusOffline
	events, err = as.RecordCycle(ctx, nodes)
	require.NoError(t, err)
	require.Len(t, events, 2, "offline transition plus health swing")

	feed, err := as.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, feed, 2)
}

func TestRecordCycleUnreadableSnapshotIsFirstRun(t *testing.T) {
	store := NewMemoryStore()
	as := NewActivityService(failingSnapshotStore{store}, store, nil, nil)

	events, err := as.RecordCycle(context.Background(), []*models.NodeSnapshot{{ID: "a"}})
	require.NoError(t, err)
	assert.Empty(t, events)

	saved, _ := store.GetPreviousSnapshot(context.Background())
	assert.NotNil(t, saved)
}

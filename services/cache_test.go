package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xandpulse/config"
	"xandpulse/models"
)

func newMemoryCache(t *testing.T) *CacheService {
	cfg := config.Default()
	cfg.Redis.Enabled = false
	cs := NewCacheService(cfg)
	t.Cleanup(cs.Stop)
	return cs
}

func TestCacheInMemoryModeRoundTripsNodes(t *testing.T) {
	cs := newMemoryCache(t)
	assert.Equal(t, CacheModeInMemory, cs.GetCacheMode())

	_, _, found := cs.GetNodes(true)
	assert.False(t, found)

	cs.SetNodes([]*models.NodeSnapshot{
		{ID: "n1", PublicKey: "pk1", Status: models.StatusOnline, Credits: 10},
		{ID: "n2", Status: models.StatusOffline},
	}, &models.NetworkStats{TotalNodes: 2, OnlineNodes: 1})

	nodes, stale, found := cs.GetNodes(false)
	require.True(t, found)
	assert.False(t, stale)
	assert.Len(t, nodes, 2)

	n, _, found := cs.GetNode("pk1", false)
	require.True(t, found)
	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, 10.0, n.Credits)

	stats, _, found := cs.GetNetworkStats(false)
	require.True(t, found)
	assert.Equal(t, 2, stats.TotalNodes)
}

func TestCacheStaleEntries(t *testing.T) {
	cs := newMemoryCache(t)
	require.NoError(t, cs.Set(keyNodes, []*models.NodeSnapshot{{ID: "n1"}}, -time.Second))

	_, _, found := cs.GetNodes(false)
	assert.False(t, found, "expired entries are hidden unless stale reads are allowed")

	nodes, stale, found := cs.GetNodes(true)
	require.True(t, found)
	assert.True(t, stale)
	assert.Len(t, nodes, 1)
}

func TestCacheCooldownMarkers(t *testing.T) {
	cs := newMemoryCache(t)
	ctx := context.Background()

	last, err := cs.LastAlertSent(ctx, "s1", "n1", models.AlertOffline)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	sentAt := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, cs.RecordAlertSent(ctx, models.AlertSentRecord{
		SubscriptionID: "s1", NodeID: "n1", AlertType: models.AlertOffline, SentAt: sentAt,
	}))

	last, err = cs.LastAlertSent(ctx, "s1", "n1", models.AlertOffline)
	require.NoError(t, err)
	assert.True(t, sentAt.Equal(last))

	last, _ = cs.LastAlertSent(ctx, "s1", "n1", models.AlertScoreDrop)
	assert.True(t, last.IsZero())

	// a marker already older than the window is not written at all
	require.NoError(t, cs.RecordAlertSent(ctx, models.AlertSentRecord{
		SubscriptionID: "s2", NodeID: "n1", AlertType: models.AlertOffline, SentAt: time.Now().Add(-7 * time.Hour),
	}))
	last, _ = cs.LastAlertSent(ctx, "s2", "n1", models.AlertOffline)
	assert.True(t, last.IsZero())
}

func TestCacheClearKeepsCooldowns(t *testing.T) {
	cs := newMemoryCache(t)
	ctx := context.Background()

	cs.SetNodes([]*models.NodeSnapshot{{ID: "n1"}}, nil)
	require.NoError(t, cs.RecordAlertSent(ctx, models.AlertSentRecord{
		SubscriptionID: "s1", NodeID: "n1", AlertType: models.AlertOffline, SentAt: time.Now(),
	}))

	require.NoError(t, cs.ClearCache())

	_, _, found := cs.GetNodes(true)
	assert.False(t, found)
	last, _ := cs.LastAlertSent(ctx, "s1", "n1", models.AlertOffline)
	assert.False(t, last.IsZero())
	assert.Equal(t, 1, cs.GetCacheStats()["in_memory_keys"])
}

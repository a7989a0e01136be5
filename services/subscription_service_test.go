package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xandpulse/models"
)

func TestValidateSubscription(t *testing.T) {
	sub := &models.Subscription{NodeIDs: []string{" PK1 ", "PK1", ""}}
	require.NoError(t, ValidateSubscription(sub))
	assert.Equal(t, []string{"PK1"}, sub.NodeIDs)
	assert.Equal(t, models.DefaultScoreThreshold, sub.ScoreThreshold)

	cases := map[string]*models.Subscription{
		"no nodes":      {},
		"bad email":     {NodeIDs: []string{"PK1"}, EmailEnabled: true, Email: "not-an-email"},
		"partial push":  {NodeIDs: []string{"PK1"}, Push: &models.PushEndpoint{Endpoint: "https://push"}},
		"threshold 101": {NodeIDs: []string{"PK1"}, ScoreThreshold: 101},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateSubscription(s), ErrInvalidSubscription)
		})
	}
}

func TestSubscriptionServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewSubscriptionService(NewMemoryStore())
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return created }

	sub := &models.Subscription{NodeIDs: []string{"PK1"}, AlertOffline: true}
	require.NoError(t, svc.Create(ctx, sub))
	require.NotEmpty(t, sub.ID)

	svc.now = func() time.Time { return created.Add(time.Hour) }
	update := &models.Subscription{NodeIDs: []string{"PK1", "PK2"}, AlertScoreDrop: true}
	require.NoError(t, svc.Update(ctx, sub.ID, update))

	got, err := svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"PK1", "PK2"}, got.NodeIDs)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.UpdatedAt.After(created))

	require.NoError(t, svc.Delete(ctx, sub.ID))
	_, err = svc.Get(ctx, sub.ID)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	assert.ErrorIs(t, svc.Update(ctx, sub.ID, update), ErrSubscriptionNotFound)
}

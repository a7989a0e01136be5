package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xandpulse/models"
)

func TestEmailServiceSend(t *testing.T) {
	var got emailPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.To[0] == "bounce@example.com" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"invalid recipient"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	es := NewEmailService(srv.URL, "key-123", "XandPulse <alerts@x.io>")
	require.True(t, es.Enabled())

	require.NoError(t, es.Send(context.Background(), "ops@example.com", "Node offline", "<p>hi</p>"))
	assert.Equal(t, "Bearer key-123", auth)
	assert.Equal(t, []string{"ops@example.com"}, got.To)
	assert.Equal(t, "Node offline", got.Subject)

	err := es.Send(context.Background(), "bounce@example.com", "x", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestDisabledChannels(t *testing.T) {
	assert.False(t, NewEmailService("", "", "").Enabled())
	assert.Error(t, NewEmailService("", "", "").Send(context.Background(), "a@b.c", "s", "h"))

	push := NewPushService("", "", "", 0)
	assert.False(t, push.Enabled())
	assert.Error(t, push.Send(context.Background(), &models.PushEndpoint{Endpoint: "https://push"}, nil))

	var bot *DiscordBotService
	assert.False(t, bot.Enabled())
	assert.ErrorIs(t, bot.SendAlertSummary(models.ProcessResult{}), errDiscordDisabled)
}

func TestClassifyPushResponse(t *testing.T) {
	assert.NoError(t, classifyPushResponse(http.StatusCreated))
	assert.ErrorIs(t, classifyPushResponse(http.StatusGone), ErrPushSubscriptionExpired)
	assert.ErrorIs(t, classifyPushResponse(http.StatusNotFound), ErrPushSubscriptionExpired)

	err := classifyPushResponse(http.StatusTooManyRequests)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPushSubscriptionExpired)
}

func TestDiscordCommandReply(t *testing.T) {
	bot := &DiscordBotService{}
	assert.Empty(t, bot.commandReply("hello"))
	assert.Contains(t, bot.commandReply("!pulse ping"), "Pong")
	assert.Equal(t, "Network status is not available yet.", bot.commandReply("!pulse status"))

	bot.SetStatusProvider(func() string { return "3 nodes" })
	assert.Equal(t, "3 nodes", bot.commandReply("!pulse status"))
	assert.Contains(t, bot.commandReply("!pulse nope"), "Unknown command")
}

func TestBuildActivityEmbed(t *testing.T) {
	events := make([]models.ActivityEvent, 0, 20)
	for i := 0; i < 20; i++ {
		events = append(events, models.ActivityEvent{Type: models.ActivityVersionChange, Message: fmt.Sprintf("event %d", i)})
	}
	events = append(events, models.ActivityEvent{Type: models.ActivityNodeOffline, Message: "went offline"})

	embed := buildActivityEmbed(events, &models.NetworkSnapshot{TotalNodes: 10, OnlineNodes: 9, HealthScore: 90})
	assert.Equal(t, "Network activity (21 events)", embed.Title)
	assert.Equal(t, colorRed, embed.Color)
	assert.Contains(t, embed.Description, "…and 6 more")
	// two type counters plus the two snapshot fields
	assert.Len(t, embed.Fields, 4)

	assert.Equal(t, "Node Offline", formatActivityType(models.ActivityNodeOffline))
}

func TestBuildAlertSummaryEmbed(t *testing.T) {
	ok := buildAlertSummaryEmbed(models.ProcessResult{OfflineAlerts: 2})
	assert.Equal(t, colorGreen, ok.Color)
	assert.Len(t, ok.Fields, 4)

	failed := buildAlertSummaryEmbed(models.ProcessResult{Errors: 1, ExpiredPushEndpoints: []string{"https://push"}})
	assert.Equal(t, colorOrange, failed.Color)
	assert.Len(t, failed.Fields, 5)
}

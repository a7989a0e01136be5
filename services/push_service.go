package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	log "github.com/sirupsen/logrus"

	"xandpulse/models"
)

// ErrPushSubscriptionExpired means the push service no longer knows the endpoint.
var ErrPushSubscriptionExpired = errors.New("push subscription expired")

// PushService delivers Web Push notifications signed with the server's VAPID keys.
type PushService struct {
	httpClient *http.Client
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
	enabled    bool
}

func NewPushService(publicKey, privateKey, subscriber string, ttl int) *PushService {
	enabled := publicKey != "" && privateKey != ""
	if !enabled {
		log.Println("VAPID keys not configured, push alerts disabled")
	}
	if ttl <= 0 {
		ttl = 3600
	}
	return &PushService{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		ttl:        ttl,
		enabled:    enabled,
	}
}

func (ps *PushService) Enabled() bool {
	return ps != nil && ps.enabled
}

// Send pushes payload to the endpoint. 404 and 410 are reported as
// ErrPushSubscriptionExpired so callers can prune the endpoint.
func (ps *PushService) Send(ctx context.Context, endpoint *models.PushEndpoint, payload []byte) error {
	if !ps.Enabled() {
		return fmt.Errorf("push service not enabled")
	}
	if endpoint == nil || endpoint.Endpoint == "" {
		return fmt.Errorf("push endpoint missing")
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: endpoint.Endpoint,
		Keys: webpush.Keys{
			P256dh: endpoint.P256dh,
			Auth:   endpoint.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      ps.httpClient,
		Subscriber:      ps.subscriber,
		VAPIDPublicKey:  ps.publicKey,
		VAPIDPrivateKey: ps.privateKey,
		TTL:             ps.ttl,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return classifyPushResponse(resp.StatusCode)
}

func classifyPushResponse(status int) error {
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return ErrPushSubscriptionExpired
	case status < 200 || status >= 300:
		return fmt.Errorf("push service returned status %d", status)
	default:
		return nil
	}
}

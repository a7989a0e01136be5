package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// EmailService sends alert mail through a transactional email HTTP API
// (Resend-compatible: POST JSON {from,to,subject,html} with a bearer key).
type EmailService struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	from       string
	enabled    bool
}

type emailPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func NewEmailService(apiURL, apiKey, from string) *EmailService {
	enabled := apiURL != "" && apiKey != "" && from != ""
	if !enabled {
		log.Println("Email API not configured, email alerts disabled")
	}
	return &EmailService{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     apiURL,
		apiKey:     apiKey,
		from:       from,
		enabled:    enabled,
	}
}

func (es *EmailService) Enabled() bool {
	return es != nil && es.enabled
}

// Send delivers one message. Any non-2xx answer is an error.
func (es *EmailService) Send(ctx context.Context, to, subject, html string) error {
	if !es.Enabled() {
		return fmt.Errorf("email service not enabled")
	}

	body, err := json.Marshal(emailPayload{
		From:    es.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, es.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+es.apiKey)

	resp, err := es.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email API returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}

package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/structuredesk/riskwatch/internal/alert"
)

// WebhookSink posts alerts as JSON to an HTTP endpoint, one request per
// delivery. Used for chat, ticketing and mobile-push gateways that accept a
// generic webhook.
type WebhookSink struct {
	url        string
	httpClient *http.Client
}

// NewWebhookSink creates a WebhookSink.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Channel string       `json:"channel"`
	Alert   *alert.Alert `json:"alert"`
}

// Send posts the alert to the webhook.
func (s *WebhookSink) Send(ctx context.Context, channel string, a *alert.Alert) error {
	body, err := json.Marshal(webhookPayload{Channel: channel, Alert: a})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

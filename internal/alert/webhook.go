package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"krx-scalp-lab/internal/domain"
)

// WebhookSink POSTs each event as a JSON document to a fixed URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a webhook sink for the given URL.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type webhookPayload struct {
	Kind        string `json:"kind"`
	TimestampMs int64  `json:"timestamp_ms"`
	Payload     string `json:"payload"`
}

// Deliver posts the event. Non-2xx responses are errors.
func (s *WebhookSink) Deliver(ctx context.Context, event domain.AlertEvent) error {
	body, err := json.Marshal(webhookPayload{
		Kind:        string(event.Kind),
		TimestampMs: event.TimestampMs,
		Payload:     event.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

var _ Sink = (*WebhookSink)(nil)

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// WebhookNotifier posts alerts as JSON to an HTTP endpoint
type WebhookNotifier struct {
	client *http.Client
	url    string
}

type webhookRequest struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	SentAt  int64  `json:"sent_at"`
}

type webhookResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NewWebhookNotifier creates a notifier posting to config.WebhookURL
func NewWebhookNotifier(config *Config) (*WebhookNotifier, error) {
	if config.WebhookURL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &WebhookNotifier{
		client: &http.Client{Timeout: timeout},
		url:    config.WebhookURL,
	}, nil
}

func (n *WebhookNotifier) NotifySuperusers(ctx context.Context, message string) error {
	jsonData, err := json.Marshal(&webhookRequest{Type: "superuser_alert", Message: message, SentAt: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	// An empty body is accepted as success.
	if len(bytes.TrimSpace(body)) > 0 {
		var result webhookResponse
		if err := json.Unmarshal(body, &result); err == nil && !result.Success && result.Error != "" {
			return fmt.Errorf("alert webhook error: %s", result.Error)
		}
	}

	log.Debug().Str("component", "notify").Msg("superuser alert delivered by webhook")
	return nil
}

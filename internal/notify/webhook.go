package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Poster interface {
	Post(ctx context.Context, channel string, msg EscalationMessage) error
}

// WebhookPoster posts to a Slack-compatible incoming webhook.
type WebhookPoster struct {
	URL    string
	Client *http.Client
}

func NewWebhookPoster(url string) *WebhookPoster {
	return &WebhookPoster{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (p *WebhookPoster) Post(ctx context.Context, channel string, msg EscalationMessage) error {
	payload, err := json.Marshal(map[string]string{
		"channel": channel,
		"text":    msg.Text(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

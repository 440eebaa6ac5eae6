package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultSlackAPI = "https://slack.com/api/chat.postMessage"

// Slack posts the alert to a channel via chat.postMessage.
type Slack struct {
	name    string
	token   string
	channel string
	apiURL  string
	client  *http.Client
}

// NewSlack creates a Slack channel. An empty apiURL uses the public API.
func NewSlack(name, token, channel, apiURL string) *Slack {
	if apiURL == "" {
		apiURL = defaultSlackAPI
	}
	return &Slack{
		name:    name,
		token:   token,
		channel: channel,
		apiURL:  apiURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements Broadcaster.
func (s *Slack) Name() string { return s.name }

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Send implements Broadcaster.
func (s *Slack) Send(ctx context.Context, text string) error {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": "Chat escalation",
			},
		},
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": text},
		},
		{
			"type": "context",
			"elements": []map[string]any{
				{"type": "mrkdwn", "text": fmt.Sprintf("Sent at %s", time.Now().UTC().Format(time.RFC3339))},
			},
		},
	}

	body, err := json.Marshal(map[string]any{
		"channel": s.channel,
		"blocks":  blocks,
		"text":    "Chat escalation: " + text,
	})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	var out slackResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode slack response: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("slack error: %s", out.Error)
	}
	return nil
}

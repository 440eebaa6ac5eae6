package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Webhook calls an HTTP endpoint with the alert text. With GET the text goes
// into a query parameter, with POST into a JSON body {"text": ...}.
type Webhook struct {
	name   string
	url    string
	method string
	param  string
	client *http.Client
}

// NewWebhook creates a webhook channel. method defaults to GET and param to "msg".
func NewWebhook(name, target, method, param string) *Webhook {
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}
	if param == "" {
		param = "msg"
	}
	return &Webhook{
		name:   name,
		url:    target,
		method: method,
		param:  param,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements Broadcaster.
func (w *Webhook) Name() string { return w.name }

// Send implements Broadcaster.
func (w *Webhook) Send(ctx context.Context, text string) error {
	req, err := w.newRequest(ctx, text)
	if err != nil {
		return err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook call: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func (w *Webhook) newRequest(ctx context.Context, text string) (*http.Request, error) {
	if w.method == http.MethodGet {
		u, err := url.Parse(w.url)
		if err != nil {
			return nil, fmt.Errorf("parse webhook url: %w", err)
		}
		q := u.Query()
		q.Set(w.param, text)
		u.RawQuery = q.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		return req, nil
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, w.method, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

package escalation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTwilioAPI = "https://api.twilio.com"

// SMS sends the alert as a text message through the Twilio REST API.
type SMS struct {
	name       string
	accountSID string
	authToken  string
	from       string
	to         string
	apiURL     string
	client     *http.Client
}

// NewSMS creates a Twilio SMS channel. An empty apiURL uses the public API.
func NewSMS(name, accountSID, authToken, from, to, apiURL string) *SMS {
	if apiURL == "" {
		apiURL = defaultTwilioAPI
	}
	return &SMS{
		name:       name,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		to:         to,
		apiURL:     strings.TrimRight(apiURL, "/"),
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements Broadcaster.
func (s *SMS) Name() string { return s.name }

// Send implements Broadcaster.
func (s *SMS) Send(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("To", s.to)
	form.Set("From", s.from)
	form.Set("Body", text)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.apiURL, url.PathEscape(s.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}
	return nil
}

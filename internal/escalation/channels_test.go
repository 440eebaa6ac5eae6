package escalation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMSSend(t *testing.T) {
	var (
		gotPath string
		gotForm map[string]string
		gotUser string
		gotPass string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		_ = r.ParseForm()
		gotForm = map[string]string{
			"To":   r.PostForm.Get("To"),
			"From": r.PostForm.Get("From"),
			"Body": r.PostForm.Get("Body"),
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sms := NewSMS("oncall", "AC123", "secret", "+1000", "+2000", srv.URL)
	require.NoError(t, sms.Send(context.Background(), "help"))

	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "secret", gotPass)
	assert.Equal(t, map[string]string{"To": "+2000", "From": "+1000", "Body": "help"}, gotForm)
	assert.Equal(t, "oncall", sms.Name())
}

func TestSMSSendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewSMS("oncall", "AC123", "bad", "+1000", "+2000", srv.URL).Send(context.Background(), "help")
	assert.ErrorContains(t, err, "401")
}

func TestWebhookGetAppendsMessageParam(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook("ubi", srv.URL+"/webapi/behaviour?access_token=tok", "", "")
	require.NoError(t, wh.Send(context.Background(), "help me & fast"))

	require.NotNil(t, got)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/webapi/behaviour", got.URL.Path)
	assert.Equal(t, "tok", got.URL.Query().Get("access_token"))
	assert.Equal(t, "help me & fast", got.URL.Query().Get("msg"))
}

func TestWebhookPostSendsJSON(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhook("hook", srv.URL, "post", "").Send(context.Background(), "help"))
	assert.Equal(t, map[string]string{"text": "help"}, body)
}

func TestWebhookServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook("hook", srv.URL, "", "").Send(context.Background(), "help")
	assert.ErrorContains(t, err, "502")
}

func TestSlackSend(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer xoxb-token", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	require.NoError(t, NewSlack("slack", "xoxb-token", "#oncall", srv.URL).Send(context.Background(), "help"))
	assert.Equal(t, "#oncall", payload["channel"])
	assert.Equal(t, "Chat escalation: help", payload["text"])
}

func TestSlackAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	err := NewSlack("slack", "t", "#nope", srv.URL).Send(context.Background(), "help")
	assert.EqualError(t, err, "slack error: channel_not_found")
}

type fakeStream struct {
	args *redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = a
	return redis.NewStringResult("1-0", f.err)
}

func TestRedisStreamSend(t *testing.T) {
	fake := &fakeStream{}
	ch := NewRedisStream("redis", fake, "livechat:escalations", 1000)
	require.NoError(t, ch.Send(context.Background(), "help"))

	require.NotNil(t, fake.args)
	assert.Equal(t, "livechat:escalations", fake.args.Stream)
	assert.Equal(t, int64(1000), fake.args.MaxLen)
	assert.True(t, fake.args.Approx)
	values, ok := fake.args.Values.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "help", values["text"])

	fake.err = errors.New("connection refused")
	assert.ErrorContains(t, ch.Send(context.Background(), "help"), "connection refused")
}

type fakeNATS struct {
	subject  string
	data     []byte
	flushErr error
}

func (f *fakeNATS) Publish(subj string, data []byte) error {
	f.subject = subj
	f.data = data
	return nil
}

func (f *fakeNATS) FlushWithContext(context.Context) error { return f.flushErr }

func TestNATSSend(t *testing.T) {
	fake := &fakeNATS{}
	ch := NewNATS("nats", fake, "livechat.escalations")
	require.NoError(t, ch.Send(context.Background(), "help"))

	assert.Equal(t, "livechat.escalations", fake.subject)
	var msg natsAlert
	require.NoError(t, json.Unmarshal(fake.data, &msg))
	assert.Equal(t, "help", msg.Text)
	assert.NotEmpty(t, msg.SentAt)

	fake.flushErr = errors.New("no servers")
	assert.ErrorContains(t, ch.Send(context.Background(), "help"), "nats flush")
}

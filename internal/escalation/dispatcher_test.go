package escalation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/mocks"
)

type funcChannel struct {
	name string
	send func(ctx context.Context, text string) error
}

func (f *funcChannel) Name() string { return f.name }

func (f *funcChannel) Send(ctx context.Context, text string) error { return f.send(ctx, text) }

type memoryRecorder struct {
	mu      sync.Mutex
	records []*domain.Escalation
}

func (m *memoryRecorder) RecordEscalation(_ context.Context, e *domain.Escalation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, e)
	return nil
}

func TestDispatcherFlagged(t *testing.T) {
	d := NewDispatcher(nil)

	text, ok := d.Flagged("#911 help me")
	assert.True(t, ok)
	assert.Equal(t, "help me", text)

	text, ok = d.Flagged("#911help")
	assert.True(t, ok)
	assert.Equal(t, "help", text)

	_, ok = d.Flagged("call #911")
	assert.False(t, ok)
	_, ok = d.Flagged("#91")
	assert.False(t, ok)

	custom := NewDispatcher(nil, WithMarker("!!"))
	text, ok = custom.Flagged("!! fire")
	assert.True(t, ok)
	assert.Equal(t, "fire", text)

	disabled := NewDispatcher(nil, WithMarker(""))
	_, ok = disabled.Flagged("#911 help")
	assert.False(t, ok)
}

func TestDispatcherIsolatesFailingChannel(t *testing.T) {
	ctrl := gomock.NewController(t)

	failing := mocks.NewMockBroadcaster(ctrl)
	failing.EXPECT().Name().Return("sms").AnyTimes()
	failing.EXPECT().Send(gomock.Any(), "help").Return(errors.New("gateway down")).Times(1)

	working := mocks.NewMockBroadcaster(ctrl)
	working.EXPECT().Name().Return("webhook").AnyTimes()
	working.EXPECT().Send(gomock.Any(), "help").Return(nil).Times(1)

	d := NewDispatcher([]Broadcaster{failing, working})
	outcomes := d.Broadcast(context.Background(), Alert{ChatID: "c1", Text: "help"})

	require.Len(t, outcomes, 2)
	assert.Equal(t, "sms", outcomes[0].Channel)
	assert.False(t, outcomes[0].OK)
	assert.EqualError(t, outcomes[0].Err, "gateway down")
	assert.Equal(t, "webhook", outcomes[1].Channel)
	assert.True(t, outcomes[1].OK)
	assert.NoError(t, outcomes[1].Err)
}

func TestDispatcherTimesOutSlowChannel(t *testing.T) {
	slow := &funcChannel{name: "slow", send: func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	var fastCalls int
	fast := &funcChannel{name: "fast", send: func(context.Context, string) error {
		fastCalls++
		return nil
	}}

	d := NewDispatcher([]Broadcaster{slow, fast}, WithTimeout(20*time.Millisecond))
	outcomes := d.Broadcast(context.Background(), Alert{Text: "help"})

	require.Len(t, outcomes, 2)
	assert.ErrorIs(t, outcomes[0].Err, context.DeadlineExceeded)
	assert.True(t, outcomes[1].OK)
	assert.Equal(t, 1, fastCalls)
}

func TestDispatcherRecoversPanickingChannel(t *testing.T) {
	bad := &funcChannel{name: "bad", send: func(context.Context, string) error { panic("boom") }}
	good := &funcChannel{name: "good", send: func(context.Context, string) error { return nil }}

	outcomes := NewDispatcher([]Broadcaster{bad, good}).Broadcast(context.Background(), Alert{Text: "x"})
	require.Len(t, outcomes, 2)
	assert.ErrorContains(t, outcomes[0].Err, "boom")
	assert.True(t, outcomes[1].OK)
}

func TestDispatchIfFlagged(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []string
	)
	ch := &funcChannel{name: "webhook", send: func(_ context.Context, text string) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, text)
		return nil
	}}
	rec := &memoryRecorder{}
	d := NewDispatcher([]Broadcaster{ch}, WithRecorder(rec))

	assert.False(t, d.DispatchIfFlagged(Alert{ChatID: "c1", Text: "hello"}))
	assert.True(t, d.DispatchIfFlagged(Alert{ChatID: "c1", MessageIndex: 3, Text: "#911 help"}))
	d.Wait()

	assert.Equal(t, []string{"help"}, sent)
	require.Len(t, rec.records, 1)
	r := rec.records[0]
	assert.Equal(t, "c1", r.ChatID)
	assert.Equal(t, 3, r.MessageIndex)
	assert.Equal(t, "webhook", r.Channel)
	assert.Equal(t, "help", r.Text)
	assert.True(t, r.OK)
	assert.NotEmpty(t, r.EscalationID)
}

func TestDispatchIfFlaggedWithoutChannels(t *testing.T) {
	d := NewDispatcher(nil)
	assert.True(t, d.DispatchIfFlagged(Alert{Text: "#911 help"}))
	d.Wait()
}

func TestDispatcherPolicy(t *testing.T) {
	ctrl := gomock.NewController(t)

	policy := mocks.NewMockPolicy(ctrl)
	policy.EXPECT().Allow(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, input any) (bool, error) {
		in := input.(map[string]interface{})
		return in["channel"] != "slack", nil
	}).Times(2)

	var slackCalls int
	slack := &funcChannel{name: "slack", send: func(context.Context, string) error { slackCalls++; return nil }}
	sms := &funcChannel{name: "sms", send: func(context.Context, string) error { return nil }}

	recorder := mocks.NewMockRecorder(ctrl)
	recorder.EXPECT().RecordEscalation(gomock.Any(), gomock.Any()).Return(errors.New("disk full")).Times(2)

	d := NewDispatcher([]Broadcaster{slack, sms}, WithPolicy(policy), WithRecorder(recorder), WithConcurrency(1))
	outcomes := d.Broadcast(context.Background(), Alert{ChatID: "c1", SenderRole: domain.RoleClient, Text: "help"})

	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Skipped)
	assert.False(t, outcomes[0].OK)
	assert.True(t, outcomes[1].OK)
	assert.Zero(t, slackCalls)
}

func TestDispatcherPolicyErrorFailsOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	policy := mocks.NewMockPolicy(ctrl)
	policy.EXPECT().Allow(gomock.Any(), gomock.Any()).Return(false, errors.New("bad policy"))

	ch := &funcChannel{name: "sms", send: func(context.Context, string) error { return nil }}
	outcomes := NewDispatcher([]Broadcaster{ch}, WithPolicy(policy)).Broadcast(context.Background(), Alert{Text: "help"})
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].OK)
}

func TestDispatcherChannels(t *testing.T) {
	d := NewDispatcher([]Broadcaster{
		&funcChannel{name: "a"},
		&funcChannel{name: "b"},
	})
	assert.Equal(t, []string{"a", "b"}, d.Channels())
}

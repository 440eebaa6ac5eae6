package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/livechat/internal/chat"
	"github.com/xiaot623/livechat/internal/domain"
)

var _ chat.Publisher = (*Hub)(nil)

func TestHubDeliversOnlyToChatSubscribers(t *testing.T) {
	h := NewHub()
	a := h.Subscribe("chat-a", 4)
	b := h.Subscribe("chat-b", 4)

	h.Publish(domain.Event{Type: domain.EventTypeMessageAppended, ChatID: "chat-a"})

	require.Len(t, a.Events, 1)
	assert.Equal(t, domain.EventTypeMessageAppended, (<-a.Events).Type)
	assert.Len(t, b.Events, 0)
	assert.Equal(t, 2, h.GetSubscriptionCount())
	assert.Equal(t, 2, h.GetChatCount())
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("chat-a", 4)
	require.True(t, h.HasSubscribers("chat-a"))

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)

	_, open := <-sub.Events
	assert.False(t, open)
	assert.False(t, h.HasSubscribers("chat-a"))
	assert.Zero(t, h.GetChatCount())

	// Publishing to a chat nobody watches is a no-op.
	h.Publish(domain.Event{ChatID: "chat-a"})
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewHub()
	slow := h.Subscribe("chat-a", 1)
	fast := h.Subscribe("chat-a", 8)

	h.Publish(domain.Event{Type: domain.EventTypeTypingStarted, ChatID: "chat-a"})
	h.Publish(domain.Event{Type: domain.EventTypeTypingStopped, ChatID: "chat-a"})

	assert.Equal(t, domain.EventTypeTypingStarted, (<-slow.Events).Type)
	_, open := <-slow.Events
	assert.False(t, open, "slow subscriber is closed after overflowing")

	assert.Len(t, fast.Events, 2)
	assert.Equal(t, 1, h.GetSubscriptionCount())
}

func TestHubCloseChat(t *testing.T) {
	h := NewHub()
	s1 := h.Subscribe("chat-a", 0)
	s2 := h.Subscribe("chat-a", 0)
	other := h.Subscribe("chat-b", 0)

	h.CloseChat("chat-a")

	for _, s := range []*Subscription{s1, s2} {
		_, open := <-s.Events
		assert.False(t, open)
	}
	assert.True(t, h.HasSubscribers("chat-b"))
	h.Unsubscribe(other)
	assert.Zero(t, h.GetSubscriptionCount())
}

func TestHubReceivesRegistryEvents(t *testing.T) {
	h := NewHub()
	r := chat.NewRegistry(chat.WithPublisher(h))

	c, p, err := r.InitChat("alice", "billing")
	require.NoError(t, err)
	sub := h.Subscribe(c.ID, 8)
	defer h.Unsubscribe(sub)

	_, err = r.SendMessage(c.ID, p.ParticipantID, "hello", "")
	require.NoError(t, err)
	require.NoError(t, r.CompleteChat(c.ID, p.ParticipantID))

	first := <-sub.Events
	assert.Equal(t, domain.EventTypeMessageAppended, first.Type)
	require.NotNil(t, first.Message)
	assert.Equal(t, "hello", first.Message.Text)
	assert.Equal(t, domain.EventTypeChatCompleted, (<-sub.Events).Type)
}

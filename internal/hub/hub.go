// Package hub fans chat events out to the observers of each chat.
package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/livechat/internal/domain"
)

// DefaultBuffer is the per-subscriber queue length used when none is given.
const DefaultBuffer = 64

// Subscription is one observer of one chat. Events is closed when the
// subscription ends, either by Unsubscribe or because the observer fell behind.
type Subscription struct {
	ID     string
	ChatID string
	Events <-chan domain.Event

	events chan domain.Event
}

// Hub keeps the subscriptions per chat id.
type Hub struct {
	// subscriptions indexed by subscription ID
	subscriptions map[string]*Subscription

	// chats maps chat_id to the set of subscription IDs
	chats map[string]map[string]bool

	mu sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		subscriptions: make(map[string]*Subscription),
		chats:         make(map[string]map[string]bool),
	}
}

// Subscribe registers an observer for chatID with a queue of buffer events.
func (h *Hub) Subscribe(chatID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan domain.Event, buffer)
	sub := &Subscription{
		ID:     uuid.New().String(),
		ChatID: chatID,
		Events: ch,
		events: ch,
	}

	h.mu.Lock()
	h.subscriptions[sub.ID] = sub
	if h.chats[chatID] == nil {
		h.chats[chatID] = make(map[string]bool)
	}
	h.chats[chatID][sub.ID] = true
	h.mu.Unlock()

	log.Debug().Str("subscription_id", sub.ID).Str("chat_id", chatID).Msg("subscription registered")
	return sub
}

// Unsubscribe ends sub. Calling it more than once is harmless.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	removed := h.remove(sub.ID)
	h.mu.Unlock()
	if removed {
		log.Debug().Str("subscription_id", sub.ID).Str("chat_id", sub.ChatID).Msg("subscription unregistered")
	}
}

// Publish delivers evt to every subscriber of its chat without blocking.
// A subscriber whose queue is full is dropped.
func (h *Hub) Publish(evt domain.Event) {
	var slow []string

	h.mu.RLock()
	for subID := range h.chats[evt.ChatID] {
		sub, ok := h.subscriptions[subID]
		if !ok {
			continue
		}
		select {
		case sub.events <- evt:
		default:
			slow = append(slow, subID)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, subID := range slow {
		if h.remove(subID) {
			log.Warn().Str("subscription_id", subID).Str("chat_id", evt.ChatID).Msg("subscriber buffer full, dropping")
		}
	}
	h.mu.Unlock()
}

// CloseChat ends every subscription of chatID.
func (h *Hub) CloseChat(chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for subID := range h.chats[chatID] {
		h.remove(subID)
	}
}

// GetSubscriptionCount returns the number of active subscriptions.
func (h *Hub) GetSubscriptionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions)
}

// GetChatCount returns the number of chats with at least one subscriber.
func (h *Hub) GetChatCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chats)
}

// HasSubscribers checks if a chat has any active subscribers.
func (h *Hub) HasSubscribers(chatID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chats[chatID]) > 0
}

// remove must be called with mu held.
func (h *Hub) remove(subID string) bool {
	sub, ok := h.subscriptions[subID]
	if !ok {
		return false
	}
	delete(h.subscriptions, subID)
	if set := h.chats[sub.ChatID]; set != nil {
		delete(set, subID)
		if len(set) == 0 {
			delete(h.chats, sub.ChatID)
		}
	}
	close(sub.events)
	return true
}

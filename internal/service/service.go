package service

import (
	"context"

	"github.com/xiaot623/livechat/internal/chat"
	"github.com/xiaot623/livechat/internal/config"
	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/escalation"
	"github.com/xiaot623/livechat/internal/hub"
)

// EscalationStore reads the escalation audit log.
type EscalationStore interface {
	ListEscalations(ctx context.Context, chatID string, limit int) ([]domain.Escalation, error)
}

type Service struct {
	registry   *chat.Registry
	dispatcher *escalation.Dispatcher
	hub        *hub.Hub
	store      EscalationStore
	config     *config.Config
}

// New wires the chat registry to escalation and the event hub. store may be nil.
func New(registry *chat.Registry, dispatcher *escalation.Dispatcher, h *hub.Hub, store EscalationStore, cfg *config.Config) *Service {
	return &Service{
		registry:   registry,
		dispatcher: dispatcher,
		hub:        h,
		store:      store,
		config:     cfg,
	}
}

// pinger is implemented by stores that can report their availability.
type pinger interface {
	Ping(ctx context.Context) error
}

// Stats is a point-in-time view for the health endpoint.
type Stats struct {
	Chats         int `json:"chats"`
	StreamedChats int `json:"streamedChats"`
	Subscribers   int `json:"subscribers"`
}

// Stats returns current counters.
func (s *Service) Stats() Stats {
	return Stats{
		Chats:         s.registry.Count(),
		StreamedChats: s.hub.GetChatCount(),
		Subscribers:   s.hub.GetSubscriptionCount(),
	}
}

// CheckStore pings the escalation store. A missing store is healthy.
func (s *Service) CheckStore(ctx context.Context) error {
	p, ok := s.store.(pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

// Hub returns the event hub used by the stream transport.
func (s *Service) Hub() *hub.Hub {
	return s.hub
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// WaitEscalations blocks until in-flight escalations settle.
func (s *Service) WaitEscalations() {
	s.dispatcher.Wait()
}

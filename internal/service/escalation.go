package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/livechat/internal/domain"
)

// ListEscalations returns the newest audit records, optionally for one chat.
func (s *Service) ListEscalations(ctx context.Context, chatID string, limit int) ([]domain.Escalation, error) {
	if s.store == nil {
		return []domain.Escalation{}, nil
	}
	records, err := s.store.ListEscalations(ctx, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	return records, nil
}

// EscalationChannels returns the configured channel names.
func (s *Service) EscalationChannels() []string {
	return s.dispatcher.Channels()
}

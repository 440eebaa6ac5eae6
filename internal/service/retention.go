package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RunRetentionMonitor forgets closed chats that have been idle longer than
// RETENTION_IDLE. It returns at once when retention is disabled.
func (s *Service) RunRetentionMonitor(ctx context.Context) {
	if s.config == nil || s.config.RetentionIdle <= 0 {
		return
	}

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepClosedChats(time.Now())
		}
	}
}

func (s *Service) sweepClosedChats(now time.Time) []string {
	removed := s.registry.Sweep(now.Add(-s.config.RetentionIdle))
	streams := 0
	for _, id := range removed {
		if s.hub.HasSubscribers(id) {
			s.hub.CloseChat(id)
			streams++
		}
	}
	if len(removed) > 0 {
		log.Info().
			Int("count", len(removed)).
			Int("streams_closed", streams).
			Strs("chat_ids", removed).
			Msg("retention sweep removed closed chats")
	}
	return removed
}

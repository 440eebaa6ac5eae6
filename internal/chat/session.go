package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/xiaot623/livechat/internal/domain"
)

// Session is one chat thread. Every mutation holds mu, so index assignment,
// membership changes and the Open->Closed transition are serialised per chat.
type Session struct {
	id        string
	subject   string
	createdAt time.Time
	publish   func(domain.Event)

	mu           sync.RWMutex
	state        domain.ChatState
	participants []domain.Participant
	endedAt      *time.Time
	lastActivity time.Time

	transcript *TranscriptLog
	typing     *TypingTracker
}

func newSession(id, subject, internalMarker string, now time.Time, publish func(domain.Event)) *Session {
	return &Session{
		id:           id,
		subject:      subject,
		createdAt:    now,
		publish:      publish,
		state:        domain.ChatStateOpen,
		lastActivity: now,
		transcript:   NewTranscriptLog(internalMarker),
		typing:       NewTypingTracker(),
	}
}

// ID returns the chat id.
func (s *Session) ID() string { return s.id }

func (s *Session) join(nickname string, role domain.Role, now time.Time) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.ChatStateClosed {
		return domain.Participant{}, fmt.Errorf("%w: %s", domain.ErrSessionClosed, s.id)
	}

	p := domain.Participant{
		ParticipantID: s.newParticipantID(),
		Nickname:      nickname,
		Role:          role,
		ConnectedAt:   now,
	}
	s.participants = append(s.participants, p)
	s.lastActivity = now
	s.emit(domain.EventTypeParticipantJoined, now, &p, nil)
	return p, nil
}

func (s *Session) sendMessage(participantID, text string, contentType domain.ContentType, now time.Time) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.ChatStateClosed {
		return domain.Message{}, fmt.Errorf("%w: %s", domain.ErrSessionClosed, s.id)
	}
	sender, ok := s.participant(participantID)
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: %s", domain.ErrUnknownParticipant, participantID)
	}

	msg := s.transcript.Append(sender, text, contentType, now)
	s.lastActivity = now
	s.emit(domain.EventTypeMessageAppended, now, nil, &msg)
	return msg, nil
}

func (s *Session) setTyping(participantID string, typing bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.ChatStateClosed {
		return fmt.Errorf("%w: %s", domain.ErrSessionClosed, s.id)
	}
	p, ok := s.participant(participantID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownParticipant, participantID)
	}

	if typing {
		if s.typing.MarkStart(participantID, now) {
			s.emit(domain.EventTypeTypingStarted, now, &p, nil)
		}
		return nil
	}
	if s.typing.MarkStop(participantID, now) {
		s.emit(domain.EventTypeTypingStopped, now, &p, nil)
	}
	return nil
}

func (s *Session) complete(participantID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.ChatStateClosed {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyClosed, s.id)
	}
	p, ok := s.participant(participantID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownParticipant, participantID)
	}

	for _, id := range s.typing.Reset(now) {
		if typist, ok := s.participant(id); ok {
			s.emit(domain.EventTypeTypingStopped, now, &typist, nil)
		}
	}
	for i := range s.participants {
		if s.participants[i].DisconnectedAt == nil {
			s.participants[i].DisconnectedAt = lo.ToPtr(now)
		}
	}
	s.state = domain.ChatStateClosed
	s.endedAt = lo.ToPtr(now)
	s.lastActivity = now
	s.emit(domain.EventTypeChatCompleted, now, &p, nil)
	return nil
}

// readFrom returns the transcript tail and whether the chat has ended.
func (s *Session) readFrom(k int) ([]domain.Message, bool) {
	s.mu.RLock()
	closed := s.state == domain.ChatStateClosed
	s.mu.RUnlock()
	return s.transcript.ReadFrom(k), closed
}

func (s *Session) snapshot() domain.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participants := make([]domain.Participant, len(s.participants))
	copy(participants, s.participants)

	return domain.Chat{
		ID:             s.id,
		Subject:        s.subject,
		State:          s.state,
		Participants:   participants,
		Typing:         s.typing.Snapshot(),
		Messages:       s.transcript.ReadFrom(0),
		CreatedAt:      s.createdAt,
		EndedAt:        s.endedAt,
		LastActivityAt: s.lastActivity,
	}
}

func (s *Session) summary() domain.ChatSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ChatSummary{ID: s.id, State: s.state, Subject: s.subject}
}

// expired reports whether the chat is closed and idle since before cutoff.
func (s *Session) expired(cutoff time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == domain.ChatStateClosed && s.lastActivity.Before(cutoff)
}

func (s *Session) participant(participantID string) (domain.Participant, bool) {
	return lo.Find(s.participants, func(p domain.Participant) bool {
		return p.ParticipantID == participantID
	})
}

func (s *Session) newParticipantID() string {
	for {
		id := "p_" + uuid.New().String()[:8]
		if _, taken := s.participant(id); !taken {
			return id
		}
	}
}

// emit must be called with mu held so observers see events in mutation order.
func (s *Session) emit(eventType domain.EventType, now time.Time, p *domain.Participant, m *domain.Message) {
	if s.publish == nil {
		return
	}
	s.publish(domain.Event{
		Type:        eventType,
		ChatID:      s.id,
		Ts:          now.UnixMilli(),
		Participant: p,
		Message:     m,
	})
}

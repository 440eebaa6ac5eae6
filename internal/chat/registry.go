// Package chat holds the in-memory chat sessions: their transcripts, typing
// flags and Open/Closed lifecycle.
package chat

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/xiaot623/livechat/internal/domain"
)

// Publisher receives every chat event. Publish is called while the session
// lock is held and must not block.
type Publisher interface {
	Publish(evt domain.Event)
}

// Option configures a Registry.
type Option func(*Registry)

// WithPublisher forwards chat events to p.
func WithPublisher(p Publisher) Option {
	return func(r *Registry) { r.publisher = p }
}

// WithInternalMarker sets the text prefix that flags a message as internal.
func WithInternalMarker(marker string) Option {
	return func(r *Registry) { r.internalMarker = marker }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry maps chat ids to sessions. The map lock only guards lookups and
// inserts; work on a session happens under that session's own lock.
type Registry struct {
	publisher      Publisher
	internalMarker string
	now            func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		internalMarker: "#",
		now:            time.Now,
		sessions:       make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InitChat opens a new chat with nickname as its single Client participant.
func (r *Registry) InitChat(nickname, subject string) (domain.Chat, domain.Participant, error) {
	nickname = strings.TrimSpace(nickname)
	subject = strings.TrimSpace(subject)
	if nickname == "" {
		return domain.Chat{}, domain.Participant{}, fmt.Errorf("%w: nickname is required", domain.ErrInvalidArgument)
	}
	if subject == "" {
		return domain.Chat{}, domain.Participant{}, fmt.Errorf("%w: subject is required", domain.ErrInvalidArgument)
	}

	now := r.now()

	r.mu.Lock()
	id := uuid.New().String()
	for r.sessions[id] != nil {
		id = uuid.New().String()
	}
	sess := newSession(id, subject, r.internalMarker, now, r.publish)
	p, err := sess.join(nickname, domain.RoleClient, now)
	if err != nil {
		r.mu.Unlock()
		return domain.Chat{}, domain.Participant{}, err
	}
	r.sessions[id] = sess
	r.mu.Unlock()

	return sess.snapshot(), p, nil
}

// JoinChat adds a participant to an existing open chat.
func (r *Registry) JoinChat(nickname, chatID string, role domain.Role) (domain.Chat, domain.Participant, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return domain.Chat{}, domain.Participant{}, fmt.Errorf("%w: nickname is required", domain.ErrInvalidArgument)
	}
	if !role.IsValid() {
		return domain.Chat{}, domain.Participant{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidArgument, role)
	}

	sess, err := r.lookup(chatID)
	if err != nil {
		return domain.Chat{}, domain.Participant{}, err
	}
	p, err := sess.join(nickname, role, r.now())
	if err != nil {
		return domain.Chat{}, domain.Participant{}, err
	}
	return sess.snapshot(), p, nil
}

// GetChat returns a snapshot of the chat.
func (r *Registry) GetChat(chatID string) (domain.Chat, error) {
	sess, err := r.lookup(chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	return sess.snapshot(), nil
}

// Summary returns the id, state and subject of one chat.
func (r *Registry) Summary(chatID string) (domain.ChatSummary, error) {
	sess, err := r.lookup(chatID)
	if err != nil {
		return domain.ChatSummary{}, err
	}
	return sess.summary(), nil
}

// GetChatList returns every known chat, open and closed, oldest first.
func (r *Registry) GetChatList() []domain.ChatSummary {
	r.mu.RLock()
	sessions := lo.Values(r.sessions)
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].createdAt.Equal(sessions[j].createdAt) {
			return sessions[i].id < sessions[j].id
		}
		return sessions[i].createdAt.Before(sessions[j].createdAt)
	})
	return lo.Map(sessions, func(s *Session, _ int) domain.ChatSummary {
		return s.summary()
	})
}

// SendMessage appends text from participantID to the chat transcript.
func (r *Registry) SendMessage(chatID, participantID, text string, contentType domain.ContentType) (domain.Message, error) {
	if contentType != "" && !contentType.IsValid() {
		return domain.Message{}, fmt.Errorf("%w: unknown content type %q", domain.ErrInvalidArgument, contentType)
	}
	sess, err := r.lookup(chatID)
	if err != nil {
		return domain.Message{}, err
	}
	return sess.sendMessage(participantID, text, contentType, r.now())
}

// StartTyping flags participantID as typing.
func (r *Registry) StartTyping(chatID, participantID string) error {
	sess, err := r.lookup(chatID)
	if err != nil {
		return err
	}
	return sess.setTyping(participantID, true, r.now())
}

// StopTyping clears the typing flag of participantID.
func (r *Registry) StopTyping(chatID, participantID string) error {
	sess, err := r.lookup(chatID)
	if err != nil {
		return err
	}
	return sess.setTyping(participantID, false, r.now())
}

// CompleteChat closes the chat. Completing a closed chat fails with
// ErrAlreadyClosed rather than succeeding silently.
func (r *Registry) CompleteChat(chatID, participantID string) error {
	sess, err := r.lookup(chatID)
	if err != nil {
		return err
	}
	return sess.complete(participantID, r.now())
}

// GetTranscript returns the messages with index >= k and whether the chat has ended.
func (r *Registry) GetTranscript(chatID string, k int) ([]domain.Message, bool, error) {
	sess, err := r.lookup(chatID)
	if err != nil {
		return nil, false, err
	}
	msgs, ended := sess.readFrom(k)
	return msgs, ended, nil
}

// Sweep forgets closed chats whose last activity is before cutoff and returns their ids.
func (r *Registry) Sweep(cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, sess := range r.sessions {
		if sess.expired(cutoff) {
			delete(r.sessions, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// Count returns the number of known chats.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) lookup(chatID string) (*Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[chatID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, chatID)
	}
	return sess, nil
}

func (r *Registry) publish(evt domain.Event) {
	if r.publisher != nil {
		r.publisher.Publish(evt)
	}
}

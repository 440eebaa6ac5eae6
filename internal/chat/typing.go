package chat

import (
	"sync"
	"time"

	"github.com/xiaot623/livechat/internal/domain"
)

// TypingTracker holds the transient typing flag of each participant.
// It never times a flag out on its own; it mirrors the last start/stop received.
type TypingTracker struct {
	mu     sync.RWMutex
	order  []string
	states map[string]domain.TypingState
}

// NewTypingTracker creates an empty tracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{states: make(map[string]domain.TypingState)}
}

// MarkStart flags participantID as typing. It returns false when the
// participant was already typing, in which case nothing changes.
func (t *TypingTracker) MarkStart(participantID string, now time.Time) bool {
	return t.set(participantID, true, now)
}

// MarkStop clears the typing flag. It returns false when the participant was
// not typing.
func (t *TypingTracker) MarkStop(participantID string, now time.Time) bool {
	return t.set(participantID, false, now)
}

// IsTyping reports the current flag of participantID.
func (t *TypingTracker) IsTyping(participantID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[participantID].IsTyping
}

// Reset clears every flag and returns the participants that were typing.
func (t *TypingTracker) Reset(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cleared []string
	for _, id := range t.order {
		st := t.states[id]
		if st.IsTyping {
			cleared = append(cleared, id)
			st.IsTyping = false
			st.LastChangedAt = now
			t.states[id] = st
		}
	}
	return cleared
}

// Snapshot returns the state of every participant seen so far, in first-seen order.
func (t *TypingTracker) Snapshot() []domain.TypingState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.TypingState, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.states[id])
	}
	return out
}

func (t *TypingTracker) set(participantID string, typing bool, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, seen := t.states[participantID]
	if st.IsTyping == typing {
		return false
	}
	if !seen {
		t.order = append(t.order, participantID)
	}
	t.states[participantID] = domain.TypingState{
		ParticipantID: participantID,
		IsTyping:      typing,
		LastChangedAt: now,
	}
	return true
}

package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/xiaot623/livechat/internal/domain"
)

// TranscriptLog is the append-only, index-addressed message store of one chat.
// Indices start at 0 and are gapless.
type TranscriptLog struct {
	internalMarker string

	mu       sync.RWMutex
	messages []domain.Message
}

// NewTranscriptLog creates an empty log. Messages whose text starts with
// internalMarker are flagged internal; an empty marker disables the flag.
func NewTranscriptLog(internalMarker string) *TranscriptLog {
	return &TranscriptLog{internalMarker: internalMarker}
}

// Append stores a message from sender and returns it with its assigned index.
// Membership of sender is checked by the owning Session.
func (l *TranscriptLog) Append(sender domain.Participant, text string, contentType domain.ContentType, now time.Time) domain.Message {
	if contentType == "" {
		contentType = domain.ContentTypeText
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := domain.Message{
		Index:       len(l.messages),
		SenderID:    sender.ParticipantID,
		Nickname:    sender.Nickname,
		Role:        sender.Role,
		Text:        text,
		ContentType: contentType,
		Internal:    l.isInternal(text),
		Timestamp:   now,
	}
	l.messages = append(l.messages, msg)
	return msg
}

// ReadFrom returns a copy of every message with index >= k in ascending order.
// A k past the end yields an empty slice; a negative k reads from 0.
func (l *TranscriptLog) ReadFrom(k int) []domain.Message {
	if k < 0 {
		k = 0
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if k >= len(l.messages) {
		return []domain.Message{}
	}
	out := make([]domain.Message, len(l.messages)-k)
	copy(out, l.messages[k:])
	return out
}

// Len returns the number of stored messages, which is also the next index.
func (l *TranscriptLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

func (l *TranscriptLog) isInternal(text string) bool {
	return l.internalMarker != "" && strings.HasPrefix(text, l.internalMarker)
}

package domain

import "time"

// Participant is an identified party attached to a chat.
type Participant struct {
	ParticipantID  string     `json:"participantId"`
	Nickname       string     `json:"nickname"`
	Role           Role       `json:"role"`
	ConnectedAt    time.Time  `json:"connectedAt"`
	DisconnectedAt *time.Time `json:"disconnectedAt,omitempty"`
}

// Message is a single immutable transcript entry.
type Message struct {
	Index       int         `json:"index"`
	SenderID    string      `json:"pid"`
	Nickname    string      `json:"nickname"`
	Role        Role        `json:"role"`
	Text        string      `json:"text"`
	ContentType ContentType `json:"contentType"`
	Internal    bool        `json:"internal"`
	Timestamp   time.Time   `json:"timestamp"`
}

// TypingState is the transient typing flag of one participant.
type TypingState struct {
	ParticipantID string    `json:"participantId"`
	IsTyping      bool      `json:"isTyping"`
	LastChangedAt time.Time `json:"lastChangedAt"`
}

// Chat is a point-in-time snapshot of a chat session.
type Chat struct {
	ID             string        `json:"id"`
	Subject        string        `json:"subject"`
	State          ChatState     `json:"state"`
	Participants   []Participant `json:"participants"`
	Typing         []TypingState `json:"typing"`
	Messages       []Message     `json:"messages"`
	CreatedAt      time.Time     `json:"createdAt"`
	EndedAt        *time.Time    `json:"endedAt,omitempty"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
}

// Participant returns the participant with the given id.
func (c *Chat) Participant(participantID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.ParticipantID == participantID {
			return p, true
		}
	}
	return Participant{}, false
}

// ChatSummary is the list view of a chat.
type ChatSummary struct {
	ID      string    `json:"id"`
	State   ChatState `json:"state"`
	Subject string    `json:"subject"`
}

// Escalation is an audit record of one channel delivery attempt.
type Escalation struct {
	EscalationID string    `json:"escalationId"`
	ChatID       string    `json:"chatId"`
	MessageIndex int       `json:"messageIndex"`
	Channel      string    `json:"channel"`
	Text         string    `json:"text"`
	OK           bool      `json:"ok"`
	Skipped      bool      `json:"skipped"`
	Error        string    `json:"error,omitempty"`
	DurationMs   int64     `json:"durationMs"`
	DispatchedAt time.Time `json:"dispatchedAt"`
}

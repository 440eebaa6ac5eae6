package domain

// Event is a change notification pushed to chat observers.
type Event struct {
	Type        EventType    `json:"type"`
	ChatID      string       `json:"chatId"`
	Ts          int64        `json:"ts"` // Unix milliseconds
	Participant *Participant `json:"participant,omitempty"`
	Message     *Message     `json:"message,omitempty"`
}

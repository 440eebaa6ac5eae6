// Package domain defines the core domain models for the chat server.
package domain

// ChatState represents the lifecycle state of a chat session.
type ChatState string

const (
	ChatStateOpen   ChatState = "Open"
	ChatStateClosed ChatState = "Closed"
)

// Role represents the kind of party attached to a chat.
type Role string

const (
	RoleClient Role = "Client"
	RoleAgent  Role = "Agent"
	RoleSystem Role = "System"
)

// IsValid returns true if the role is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleAgent, RoleSystem:
		return true
	default:
		return false
	}
}

// ContentType represents how a message body should be presented.
type ContentType string

const (
	ContentTypeText   ContentType = "text"
	ContentTypeNotice ContentType = "notice"
	ContentTypeSystem ContentType = "system"
)

// IsValid returns true if the content type is a known content type.
func (t ContentType) IsValid() bool {
	switch t {
	case ContentTypeText, ContentTypeNotice, ContentTypeSystem:
		return true
	default:
		return false
	}
}

// Operation names accepted on POST /chats and POST /chats/:id.
const (
	OperationRequestChat  = "RequestChat"
	OperationSendMessage  = "SendMessage"
	OperationStartTyping  = "SendStartTypingNotification"
	OperationStopTyping   = "SendStopTypingNotification"
	OperationCompleteChat = "Complete"
)

// EventType represents the type of an event pushed to chat observers.
type EventType string

const (
	EventTypeParticipantJoined EventType = "participant_joined"
	EventTypeMessageAppended   EventType = "message_appended"
	EventTypeTypingStarted     EventType = "typing_started"
	EventTypeTypingStopped     EventType = "typing_stopped"
	EventTypeChatCompleted     EventType = "session_completed"
)

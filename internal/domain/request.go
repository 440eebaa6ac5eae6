package domain

// RequestChatRequest is the body of POST /chats.
// Without ChatID a new chat is created, with ChatID the caller joins it.
type RequestChatRequest struct {
	OperationName string `json:"operationName" validate:"required,eq=RequestChat"`
	Nickname      string `json:"nickname" validate:"required,max=64"`
	Subject       string `json:"subject,omitempty" validate:"required_without=ChatID,max=256"`
	ChatID        string `json:"chatId,omitempty"`
	Role          Role   `json:"role,omitempty" validate:"omitempty,oneof=Client Agent System"`
}

// RequestChatResponse is returned after a successful create or join.
type RequestChatResponse struct {
	ID         string `json:"id"`
	StatusCode int    `json:"statusCode"`
	Path       string `json:"path"`
	PID        string `json:"pid"`
}

// ChatOperationRequest is the body of POST /chats/:id.
type ChatOperationRequest struct {
	OperationName string      `json:"operationName" validate:"required"`
	Text          string      `json:"text,omitempty"`
	ContentType   ContentType `json:"contentType,omitempty" validate:"omitempty,oneof=text notice system"`
	PID           string      `json:"pid" validate:"required"`
}

// StatusResponse is the generic success reply.
type StatusResponse struct {
	StatusCode int `json:"statusCode"`
}

// ErrorResponse is the reply for a failed operation.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
}

// ChatListResponse is the reply of GET /chats.
type ChatListResponse struct {
	ChatList   []ChatSummary `json:"chatList"`
	StatusCode int           `json:"statusCode"`
}

// TranscriptResponse is the reply of GET /chats/:id/messages.
type TranscriptResponse struct {
	StatusCode int       `json:"statusCode"`
	ChatEnded  bool      `json:"chatEnded"`
	NextIndex  int       `json:"nextIndex"`
	Messages   []Message `json:"messages"`
}

package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/livechat/internal/domain"
)

// RequestChat creates a chat or joins an existing one.
// POST /chats
func (h *Handler) RequestChat(c echo.Context) error {
	var req domain.RequestChatRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, fmt.Errorf("%w: invalid request body", domain.ErrInvalidArgument))
	}
	if err := h.validateRequest(&req); err != nil {
		return h.fail(c, err)
	}

	chat, p, err := h.service.RequestChat(req)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, domain.RequestChatResponse{
		ID:         chat.ID,
		StatusCode: 0,
		Path:       h.prefix + "/chats/" + chat.ID,
		PID:        p.ParticipantID,
	})
}

// ListChats lists every chat.
// GET /chats
func (h *Handler) ListChats(c echo.Context) error {
	return c.JSON(http.StatusOK, domain.ChatListResponse{
		ChatList:   h.service.ListChats(),
		StatusCode: 0,
	})
}

// ChatOperation runs SendMessage, SendStartTypingNotification,
// SendStopTypingNotification or Complete on a chat.
// POST /chats/:id
func (h *Handler) ChatOperation(c echo.Context) error {
	chatID := c.Param("id")

	var req domain.ChatOperationRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, fmt.Errorf("%w: invalid request body", domain.ErrInvalidArgument))
	}
	if !knownOperation(req.OperationName) {
		return h.fail(c, fmt.Errorf("%w: %q", domain.ErrUnsupportedOperation, req.OperationName))
	}
	if err := h.validateRequest(&req); err != nil {
		return h.fail(c, err)
	}

	if err := h.service.Operate(chatID, req); err != nil {
		return h.fail(c, err)
	}

	log.Debug().Str("chat_id", chatID).Str("operation", req.OperationName).Str("pid", req.PID).Msg("chat operation")
	return c.JSON(http.StatusOK, domain.StatusResponse{StatusCode: 0})
}

// GetChat returns the full chat snapshot.
// GET /chats/:id
func (h *Handler) GetChat(c echo.Context) error {
	chat, err := h.service.GetChat(c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, chat)
}

// GetTranscript returns the messages at or after ?index=k.
// GET /chats/:id/messages
func (h *Handler) GetTranscript(c echo.Context) error {
	chatID := c.Param("id")

	index := 0
	if raw := c.QueryParam("index"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 0 {
			return h.fail(c, fmt.Errorf("%w: index must be a non-negative integer", domain.ErrInvalidArgument))
		}
		index = val
	}

	messages, ended, err := h.service.GetTranscript(chatID, index)
	if err != nil {
		return h.fail(c, err)
	}

	next := index
	if n := len(messages); n > 0 {
		next = messages[n-1].Index + 1
	}
	return c.JSON(http.StatusOK, domain.TranscriptResponse{
		StatusCode: 0,
		ChatEnded:  ended,
		NextIndex:  next,
		Messages:   messages,
	})
}

func knownOperation(name string) bool {
	switch name {
	case domain.OperationSendMessage,
		domain.OperationStartTyping,
		domain.OperationStopTyping,
		domain.OperationCompleteChat:
		return true
	default:
		return false
	}
}

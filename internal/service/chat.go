package service

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/escalation"
)

// RequestChat creates a chat when req.ChatID is empty and joins it otherwise.
// Joiners without a role come in as agents.
func (s *Service) RequestChat(req domain.RequestChatRequest) (domain.Chat, domain.Participant, error) {
	if req.ChatID == "" {
		c, p, err := s.registry.InitChat(req.Nickname, req.Subject)
		if err != nil {
			return domain.Chat{}, domain.Participant{}, err
		}
		log.Info().Str("chat_id", c.ID).Str("pid", p.ParticipantID).Str("subject", c.Subject).Msg("chat created")
		return c, p, nil
	}

	role := req.Role
	if role == "" {
		role = domain.RoleAgent
	}
	c, p, err := s.registry.JoinChat(req.Nickname, req.ChatID, role)
	if err != nil {
		return domain.Chat{}, domain.Participant{}, err
	}
	log.Info().Str("chat_id", c.ID).Str("pid", p.ParticipantID).Str("role", string(role)).Msg("chat joined")
	return c, p, nil
}

// ListChats returns every chat, oldest first.
func (s *Service) ListChats() []domain.ChatSummary {
	return s.registry.GetChatList()
}

// Summary returns the id, state and subject of a chat.
func (s *Service) Summary(chatID string) (domain.ChatSummary, error) {
	return s.registry.Summary(chatID)
}

// GetChat returns the full snapshot of a chat.
func (s *Service) GetChat(chatID string) (domain.Chat, error) {
	return s.registry.GetChat(chatID)
}

// GetTranscript returns the messages with index >= k and whether the chat has ended.
func (s *Service) GetTranscript(chatID string, k int) ([]domain.Message, bool, error) {
	return s.registry.GetTranscript(chatID, k)
}

// SendMessage appends a message and escalates it when it carries the escalation marker.
func (s *Service) SendMessage(chatID, participantID, text string, contentType domain.ContentType) (domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, fmt.Errorf("%w: text is required", domain.ErrInvalidArgument)
	}

	msg, err := s.registry.SendMessage(chatID, participantID, text, contentType)
	if err != nil {
		return domain.Message{}, err
	}

	if _, flagged := s.dispatcher.Flagged(msg.Text); flagged {
		alert := escalation.Alert{
			ChatID:       chatID,
			MessageIndex: msg.Index,
			SenderRole:   msg.Role,
			Text:         msg.Text,
		}
		if summary, err := s.registry.Summary(chatID); err == nil {
			alert.Subject = summary.Subject
		}
		s.dispatcher.DispatchIfFlagged(alert)
	}
	return msg, nil
}

// StartTyping flags the participant as typing.
func (s *Service) StartTyping(chatID, participantID string) error {
	return s.registry.StartTyping(chatID, participantID)
}

// StopTyping clears the participant's typing flag.
func (s *Service) StopTyping(chatID, participantID string) error {
	return s.registry.StopTyping(chatID, participantID)
}

// CompleteChat closes the chat and ends its event subscriptions.
func (s *Service) CompleteChat(chatID, participantID string) error {
	if err := s.registry.CompleteChat(chatID, participantID); err != nil {
		return err
	}
	s.hub.CloseChat(chatID)
	log.Info().Str("chat_id", chatID).Str("pid", participantID).Msg("chat completed")
	return nil
}

// Operate runs one named operation from POST /chats/:id.
func (s *Service) Operate(chatID string, req domain.ChatOperationRequest) error {
	switch req.OperationName {
	case domain.OperationSendMessage:
		_, err := s.SendMessage(chatID, req.PID, req.Text, req.ContentType)
		return err
	case domain.OperationStartTyping:
		return s.StartTyping(chatID, req.PID)
	case domain.OperationStopTyping:
		return s.StopTyping(chatID, req.PID)
	case domain.OperationCompleteChat:
		return s.CompleteChat(chatID, req.PID)
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedOperation, req.OperationName)
	}
}

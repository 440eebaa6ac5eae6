// Package v1 provides the chat HTTP API handlers.
package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service  *service.Service
	validate *validator.Validate
	prefix   string
}

// NewHandler creates a new handler. prefix is the path the chat routes are
// mounted under and is echoed back in RequestChat replies.
func NewHandler(svc *service.Service, prefix string) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Handler{
		service:  svc,
		validate: v,
		prefix:   prefix,
	}
}

// RegisterRoutes registers the chat API with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group(h.prefix)

	g.POST("/chats", h.RequestChat)
	g.GET("/chats", h.ListChats)
	g.POST("/chats/:id", h.ChatOperation)
	g.GET("/chats/:id", h.GetChat)
	g.GET("/chats/:id/messages", h.GetTranscript)

	g.GET("/escalations", h.ListEscalations)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status, database, code := "healthy", "ok", http.StatusOK
	if err := h.service.CheckStore(ctx); err != nil {
		log.Error().Err(err).Msg("escalation store unavailable")
		status, database, code = "degraded", "unavailable", http.StatusServiceUnavailable
	}

	stats := h.service.Stats()
	return c.JSON(code, map[string]interface{}{
		"status":        status,
		"version":       "0.1.0",
		"database":      database,
		"chats":         stats.Chats,
		"streamedChats": stats.StreamedChats,
		"subscribers":   stats.Subscribers,
	})
}

// statusFor maps domain errors onto the HTTP contract: unknown operations are
// 405, every other chat error is 400.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnsupportedOperation):
		return http.StatusMethodNotAllowed
	case domain.IsDomainError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c echo.Context, err error) error {
	status := statusFor(err)
	evt := log.Info()
	if status == http.StatusInternalServerError {
		evt = log.Error()
	}
	evt.Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("chat_id", c.Param("id")).
		Int("status", status).
		Msg("request failed")
	return c.JSON(status, domain.ErrorResponse{StatusCode: status, Error: err.Error()})
}

func (h *Handler) validateRequest(req interface{}) error {
	err := h.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: field '%s' failed '%s'", domain.ErrInvalidArgument, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
}

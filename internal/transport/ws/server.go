// Package ws streams chat events to WebSocket observers.
package ws

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/livechat/internal/config"
	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/hub"
	"github.com/xiaot623/livechat/internal/service"
)

// Server handles event stream connections.
type Server struct {
	cfg      *config.Config
	svc      *service.Service
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, svc *service.Service) *Server {
	return &Server{
		cfg: cfg,
		svc: svc,
		hub: svc.Hub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Same policy as the CORS middleware.
				return true
			},
		},
	}
}

// RegisterRoutes mounts the stream under prefix.
func (s *Server) RegisterRoutes(e *echo.Echo, prefix string) {
	e.GET(prefix+"/chats/:id/events", s.HandleStream)
}

// HandleStream upgrades the request and pushes every event of the chat until
// the chat completes or the client goes away.
// GET /chats/:id/events
func (s *Server) HandleStream(c echo.Context) error {
	chatID := c.Param("id")

	summary, err := s.svc.Summary(chatID)
	if err != nil {
		return reject(c, err)
	}
	if summary.State == domain.ChatStateClosed {
		return reject(c, fmt.Errorf("%w: %s", domain.ErrSessionClosed, chatID))
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("failed to upgrade websocket")
		return nil
	}

	sub := s.hub.Subscribe(chatID, s.cfg.SubscriberBuffer)

	// The chat may have completed between the check and Subscribe.
	if summary, err := s.svc.Summary(chatID); err != nil || summary.State == domain.ChatStateClosed {
		s.hub.Unsubscribe(sub)
	}

	ws.SetReadLimit(s.cfg.WSMaxMessageSize)

	go s.writePump(ws, sub)
	go s.readPump(ws, sub)

	log.Info().Str("chat_id", chatID).Str("subscription_id", sub.ID).Msg("event stream opened")
	return nil
}

// readPump only services control frames; observers never send data.
func (s *Server) readPump(ws *websocket.Conn, sub *hub.Subscription) {
	defer func() {
		s.hub.Unsubscribe(sub)
		ws.Close()
	}()

	ws.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
		return nil
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("chat_id", sub.ChatID).Msg("websocket error")
			}
			return
		}
	}
}

// writePump is the only writer on ws.
func (s *Server) writePump(ws *websocket.Conn, sub *hub.Subscription) {
	ticker := time.NewTicker(s.cfg.WSPingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case evt, ok := <-sub.Events:
			ws.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if !ok {
				// Chat completed, retention removed it, or we fell behind.
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended")
				_ = ws.WriteMessage(websocket.CloseMessage, msg)
				log.Info().Str("chat_id", sub.ChatID).Str("subscription_id", sub.ID).Msg("event stream closed")
				return
			}
			if err := ws.WriteJSON(evt); err != nil {
				log.Warn().Err(err).Str("chat_id", sub.ChatID).Msg("failed to write event")
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func reject(c echo.Context, err error) error {
	status := http.StatusBadRequest
	if !domain.IsDomainError(err) {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, domain.ErrorResponse{StatusCode: status, Error: err.Error()})
}

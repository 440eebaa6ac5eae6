package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/livechat/internal/domain"
)

// ListEscalations returns escalation audit records, newest first.
// GET /escalations?chatId=&limit=
func (h *Handler) ListEscalations(c echo.Context) error {
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		val, err := strconv.Atoi(l)
		if err != nil || val <= 0 {
			return h.fail(c, fmt.Errorf("%w: limit must be a positive integer", domain.ErrInvalidArgument))
		}
		limit = val
	}

	records, err := h.service.ListEscalations(c.Request().Context(), c.QueryParam("chatId"), limit)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"escalations": records,
		"channels":    h.service.EscalationChannels(),
		"statusCode":  0,
	})
}

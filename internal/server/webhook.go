package server

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Liviu-netizen/bulldozer-marketing/internal/notify"
)

// WebhookHandler receives database row-insert events and relays them as
// email notifications. A shared token in the X-Webhook-Token header gates it.
type WebhookHandler struct {
	Mailer *notify.Mailer
	Token  string
	Logger *log.Logger
}

func (h *WebhookHandler) Register(g *echo.Group) {
	g.POST("/notify", h.notify)
}

func (h *WebhookHandler) notify(c echo.Context) error {
	if h.Token != "" && c.Request().Header.Get("X-Webhook-Token") != h.Token {
		return echo.NewHTTPError(http.StatusUnauthorized, "bad webhook token")
	}
	var payload WebhookPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	if payload.Type != "INSERT" || payload.Table == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported event")
	}
	if h.Mailer == nil {
		return c.NoContent(http.StatusAccepted)
	}

	subject, body := notify.RecordEmail(payload.Table, payload.Record)
	if err := h.Mailer.Send(c.Request().Context(), subject, body); err != nil {
		if h.Logger != nil {
			h.Logger.Printf("webhook notification failed: %v", err)
		}
		return echo.NewHTTPError(http.StatusBadGateway, "notification failed")
	}
	return c.NoContent(http.StatusAccepted)
}

package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Liviu-netizen/bulldozer-marketing/internal/chatbot"
)

type ChatHandler struct {
	Pipeline *chatbot.Pipeline
	Limiter  *RateLimiter
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
}

// Chat
//
//	@Summary		Site chat turn
//	@Description	Runs one retrieval-grounded chat turn and returns the reply with its sources
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		chatbot.Request	true	"Chat turn payload"
//	@Success		200		{object}	chatbot.Response
//	@Failure		400		{object}	HTTPError
//	@Failure		429		{object}	HTTPError
//	@Failure		500		{object}	HTTPError
//	@Router			/api/chat [post]
func (h *ChatHandler) chat(c echo.Context) error {
	var req chatbot.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}

	if h.Limiter != nil {
		key := req.VisitorID
		if key == "" {
			key = c.RealIP()
		}
		allowed, err := h.Limiter.Allow(c.Request().Context(), key)
		if err == nil && !allowed {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		}
	}

	resp, err := h.Pipeline.Respond(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, chatbot.ErrNoUserMessage) {
			return echo.NewHTTPError(http.StatusBadRequest, "no user message provided")
		}
		var upstream *chatbot.UpstreamError
		if errors.As(err, &upstream) {
			return echo.NewHTTPError(http.StatusInternalServerError, upstream.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Liviu-netizen/bulldozer-marketing/internal/notify"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/store"
)

// LeadsHandler persists call bookings and growth scorecards and fires a
// best-effort email notification for each. Mail failures never fail the
// request; the row is already committed.
type LeadsHandler struct {
	Store  *store.Store
	Mailer *notify.Mailer
	Logger *log.Logger
}

func (h *LeadsHandler) Register(g *echo.Group) {
	g.POST("/bookings", h.createBooking)
	g.POST("/scorecards", h.createScorecard)
}

// CreateBooking
//
//	@Summary		Book a call
//	@Tags			leads
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		BookingRequest	true	"Booking payload"
//	@Success		201		{object}	CreatedResponse
//	@Failure		400		{object}	HTTPError
//	@Failure		500		{object}	HTTPError
//	@Router			/api/bookings [post]
func (h *LeadsHandler) createBooking(c echo.Context) error {
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	if err := validateLead(req.Name, req.Email); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	booking := store.Booking{
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.TrimSpace(req.Email),
		CompanyURL:    strings.TrimSpace(req.CompanyURL),
		PreferredDate: strings.TrimSpace(req.PreferredDate),
		Notes:         strings.TrimSpace(req.Notes),
	}
	id, err := h.Store.CreateBooking(c.Request().Context(), booking)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	booking.ID = id
	subject, body := notify.BookingEmail(booking)
	h.sendMail(c.Request().Context(), subject, body)
	return c.JSON(http.StatusCreated, CreatedResponse{ID: id})
}

// CreateScorecard
//
//	@Summary		Submit a growth scorecard
//	@Tags			leads
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		ScorecardRequest	true	"Scorecard payload"
//	@Success		201		{object}	CreatedResponse
//	@Failure		400		{object}	HTTPError
//	@Failure		500		{object}	HTTPError
//	@Router			/api/scorecards [post]
func (h *LeadsHandler) createScorecard(c echo.Context) error {
	var req ScorecardRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	if err := validateLead(req.Name, req.Email); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	card := store.Scorecard{
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		CompanyURL: strings.TrimSpace(req.CompanyURL),
		ARRRange:   strings.TrimSpace(req.ARRRange),
		SaaSMotion: strings.TrimSpace(req.SaaSMotion),
		Bottleneck: strings.TrimSpace(req.Bottleneck),
	}
	id, err := h.Store.CreateScorecard(c.Request().Context(), card)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	card.ID = id
	subject, body := notify.ScorecardEmail(card)
	h.sendMail(c.Request().Context(), subject, body)
	return c.JSON(http.StatusCreated, CreatedResponse{ID: id})
}

func (h *LeadsHandler) sendMail(ctx context.Context, subject, body string) {
	if h.Mailer == nil {
		return
	}
	if err := h.Mailer.Send(ctx, subject, body); err != nil && h.Logger != nil {
		h.Logger.Printf("lead notification failed: %v", err)
	}
}

func validateLead(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return errors.New("valid email required")
	}
	return nil
}

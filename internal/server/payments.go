package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Liviu-netizen/bulldozer-marketing/config"
)

const stripeBaseURL = "https://api.stripe.com"

// PaymentsHandler creates Stripe payment intents for the fixed package tiers.
// Only the plan name crosses the wire from the browser; amounts come from
// config so the client can never set its own price.
type PaymentsHandler struct {
	SecretKey  string
	Plans      map[string]config.PlanConfig
	BaseURL    string
	HTTPClient *http.Client
}

func NewPaymentsHandler(cfg config.PaymentsConfig) *PaymentsHandler {
	return &PaymentsHandler{
		SecretKey:  cfg.StripeSecretKey,
		Plans:      cfg.Plans,
		BaseURL:    stripeBaseURL,
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (h *PaymentsHandler) Register(g *echo.Group) {
	g.POST("/payment-intent", h.createIntent)
}

// CreateIntent
//
//	@Summary		Create payment intent
//	@Description	Creates a Stripe payment intent for a named package tier
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		PaymentIntentRequest	true	"Plan selection"
//	@Success		200		{object}	PaymentIntentResponse
//	@Failure		400		{object}	HTTPError
//	@Failure		502		{object}	HTTPError
//	@Router			/api/payment-intent [post]
func (h *PaymentsHandler) createIntent(c echo.Context) error {
	var req PaymentIntentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	plan, ok := h.Plans[strings.ToLower(strings.TrimSpace(req.Plan))]
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown plan")
	}

	secret, err := h.createStripeIntent(c.Request().Context(), plan)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, PaymentIntentResponse{ClientSecret: secret})
}

func (h *PaymentsHandler) createStripeIntent(ctx context.Context, plan config.PlanConfig) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(plan.Amount, 10))
	form.Set("currency", plan.Currency)
	form.Set("description", plan.Description)
	form.Set("automatic_payment_methods[enabled]", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("payments: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("payments: stripe call: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("payments: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
			return "", fmt.Errorf("payments: stripe returned %d: %s", resp.StatusCode, body.Error.Message)
		}
		return "", fmt.Errorf("payments: stripe returned %d", resp.StatusCode)
	}

	var intent struct {
		ClientSecret string `json:"client_secret"`
	}
	if err := json.Unmarshal(raw, &intent); err != nil {
		return "", fmt.Errorf("payments: decode response: %w", err)
	}
	if intent.ClientSecret == "" {
		return "", fmt.Errorf("payments: stripe response missing client_secret")
	}
	return intent.ClientSecret, nil
}

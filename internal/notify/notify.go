package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Liviu-netizen/bulldozer-marketing/config"
)

const defaultBaseURL = "https://api.resend.com"

// Mailer sends transactional email through Resend.
type Mailer struct {
	apiKey     string
	from       string
	to         []string
	baseURL    string
	httpClient *http.Client
}

func NewMailer(cfg config.NotifyConfig) (*Mailer, error) {
	if cfg.ResendAPIKey == "" {
		return nil, fmt.Errorf("notify: resend api key missing")
	}
	var to []string
	for _, addr := range strings.Split(cfg.To, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	if cfg.From == "" || len(to) == 0 {
		return nil, fmt.Errorf("notify: from/to addresses missing")
	}
	return &Mailer{
		apiKey:     cfg.ResendAPIKey,
		from:       cfg.From,
		to:         to,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (m *Mailer) WithBaseURL(u string) *Mailer {
	m.baseURL = u
	return m
}

type emailPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send posts one email. The HTML body is rendered by the caller.
func (m *Mailer) Send(ctx context.Context, subject, html string) error {
	body, err := json.Marshal(emailPayload{From: m.from, To: m.to, Subject: subject, HTML: html})
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send email: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("notify: resend returned %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

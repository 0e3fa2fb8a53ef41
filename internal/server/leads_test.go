package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/Liviu-netizen/bulldozer-marketing/config"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/notify"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/store"
)

func newLeadsServer(t *testing.T, resendURL string) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var mailer *notify.Mailer
	if resendURL != "" {
		mailer, err = notify.NewMailer(config.NotifyConfig{
			ResendAPIKey: "re_test",
			From:         "bot@bulldozer.example",
			To:           "ops@bulldozer.example",
		})
		if err != nil {
			t.Fatalf("NewMailer: %v", err)
		}
		mailer = mailer.WithBaseURL(resendURL)
	}

	h := &LeadsHandler{Store: &store.Store{DB: db}, Mailer: mailer}
	e := newTestEcho()
	h.Register(e.Group("/api"))
	return e, mock
}

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateBookingSendsNotification(t *testing.T) {
	var mails int32
	resend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&mails, 1)
		if got := r.Header.Get("Authorization"); got != "Bearer re_test" {
			t.Errorf("auth header = %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer resend.Close()

	e, mock := newLeadsServer(t, resend.URL)
	mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs("Ada", "ada@example.com", "https://ada.example", "next tuesday", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("booking-1"))

	rec := postJSON(e, "/api/bookings", `{"name":"Ada","email":"ada@example.com","companyUrl":"https://ada.example","preferredDate":"next tuesday"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp CreatedResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.ID != "booking-1" {
		t.Errorf("id = %q", resp.ID)
	}
	if atomic.LoadInt32(&mails) != 1 {
		t.Errorf("notification emails sent = %d, want 1", mails)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	e, _ := newLeadsServer(t, "")
	cases := []string{
		`{"email":"ada@example.com"}`,
		`{"name":"Ada","email":"not-an-email"}`,
		`broken json`,
	}
	for _, body := range cases {
		if rec := postJSON(e, "/api/bookings", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestCreateBookingSurvivesMailFailure(t *testing.T) {
	resend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer resend.Close()

	e, mock := newLeadsServer(t, resend.URL)
	mock.ExpectQuery(`INSERT INTO bookings`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("booking-2"))

	rec := postJSON(e, "/api/bookings", `{"name":"Ada","email":"ada@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, mail failure must not fail the request", rec.Code)
	}
}

func TestCreateScorecard(t *testing.T) {
	e, mock := newLeadsServer(t, "")
	mock.ExpectQuery(`INSERT INTO scorecards`).
		WithArgs("Ada", "ada@example.com", "https://ada.example", "1-3M", "plg", "activation").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("card-1"))

	rec := postJSON(e, "/api/scorecards", `{"name":"Ada","email":"ada@example.com","companyUrl":"https://ada.example","arrRange":"1-3M","saasMotion":"plg","bottleneck":"activation"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWebhookNotify(t *testing.T) {
	var gotPayload map[string]interface{}
	resend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer resend.Close()

	mailer, err := notify.NewMailer(config.NotifyConfig{
		ResendAPIKey: "re_test",
		From:         "bot@bulldozer.example",
		To:           "ops@bulldozer.example",
	})
	if err != nil {
		t.Fatalf("NewMailer: %v", err)
	}
	h := &WebhookHandler{Mailer: mailer.WithBaseURL(resend.URL), Token: "hook-token"}
	e := newTestEcho()
	h.Register(e.Group("/api/webhooks"))

	body := `{"type":"INSERT","table":"bookings","record":{"name":"Ada","email":"ada@example.com"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/notify", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Webhook-Token", "hook-token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if subject, _ := gotPayload["subject"].(string); subject != "New bookings record" {
		t.Errorf("subject = %q", subject)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/webhooks/notify", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d, want 401", rec.Code)
	}
}

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/Liviu-netizen/bulldozer-marketing/internal/store"
)

func newAdminServer(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	h := &AdminHandler{
		Store:        &store.Store{DB: db},
		Secret:       []byte("test-secret"),
		Email:        "ops@bulldozer.example",
		PasswordHash: string(hash),
	}
	e := newTestEcho()
	h.Register(e.Group("/api/admin"))
	return e, mock
}

func loginToken(t *testing.T, e *echo.Echo, email, password string) (int, string) {
	t.Helper()
	body, _ := json.Marshal(AdminLoginRequest{Email: email, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(string(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		return rec.Code, ""
	}
	var resp TokenResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec.Code, resp.Token
}

func TestAdminLogin(t *testing.T) {
	e, _ := newAdminServer(t)

	if code, token := loginToken(t, e, "ops@bulldozer.example", "hunter2hunter2"); code != http.StatusOK || token == "" {
		t.Errorf("valid login: code = %d, token = %q", code, token)
	}
	if code, _ := loginToken(t, e, "ops@bulldozer.example", "wrong-password"); code != http.StatusUnauthorized {
		t.Errorf("bad password: code = %d, want 401", code)
	}
	if code, _ := loginToken(t, e, "intruder@evil.example", "hunter2hunter2"); code != http.StatusUnauthorized {
		t.Errorf("bad email: code = %d, want 401", code)
	}
}

func TestAdminSessionsRequireToken(t *testing.T) {
	e, _ := newAdminServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/sessions", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAdminListSessions(t *testing.T) {
	e, mock := newAdminServer(t)
	_, token := loginToken(t, e, "ops@bulldozer.example", "hunter2hunter2")
	if token == "" {
		t.Fatal("login failed")
	}

	rows := sqlmock.NewRows([]string{"id", "visitor_id", "page_url", "page_title", "referrer", "user_agent", "created_at"}).
		AddRow("sess-1", "visitor-1", "https://example.com", "Home", "", "agent", time.Now())
	mock.ExpectQuery(`FROM chat_sessions`).WithArgs(50, 0).WillReturnRows(rows)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var sessions []store.ChatSession
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "sess-1" {
		t.Errorf("sessions = %+v", sessions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAdminListMessages(t *testing.T) {
	e, mock := newAdminServer(t)
	_, token := loginToken(t, e, "ops@bulldozer.example", "hunter2hunter2")

	rows := sqlmock.NewRows([]string{"id", "session_id", "role", "content", "sources", "model", "prompt_tokens", "completion_tokens", "total_tokens", "created_at"}).
		AddRow(1, "sess-1", "user", "hello", []byte(`[]`), "gpt-test", 0, 0, 0, time.Now()).
		AddRow(2, "sess-1", "assistant", "hi there", []byte(`[]`), "gpt-test", 10, 5, 15, time.Now())
	mock.ExpectQuery(`FROM chat_messages`).WithArgs("sess-1").WillReturnRows(rows)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/sessions/sess-1/messages", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var messages []store.ChatMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &messages); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(messages) != 2 || messages[1].Role != "assistant" {
		t.Errorf("messages = %+v", messages)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

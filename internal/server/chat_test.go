package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/Liviu-netizen/bulldozer-marketing/config"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/chatbot"
)

type fakeEmbedder struct{ calls int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return []float32{0.1, 0.2}, nil
}

type fakeSearcher struct{ chunks []chatbot.ContextChunk }

func (f *fakeSearcher) SearchChunks(ctx context.Context, vector []float32, topK int, threshold float64) ([]chatbot.ContextChunk, error) {
	return f.chunks, nil
}

type fakeCompleter struct{ calls int }

func (f *fakeCompleter) Complete(ctx context.Context, messages []chatbot.Message) (chatbot.Completion, error) {
	f.calls++
	return chatbot.Completion{Reply: "Grounded answer.", Model: "gpt-test"}, nil
}

type fakeTranscripts struct{}

func (f *fakeTranscripts) LogTurn(ctx context.Context, turn chatbot.Turn) (string, error) {
	if turn.SessionID != "" {
		return turn.SessionID, nil
	}
	return "new-session", nil
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	return e
}

func newChatServer(t *testing.T, chunks []chatbot.ContextChunk) (*echo.Echo, *fakeCompleter) {
	t.Helper()
	completer := &fakeCompleter{}
	pipeline, err := chatbot.NewPipeline(config.ChatConfig{}, chatbot.NewGuard(chatbot.DefaultTables()),
		&fakeEmbedder{}, &fakeSearcher{chunks: chunks}, completer, &fakeTranscripts{}, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	e := newTestEcho()
	h := &ChatHandler{Pipeline: pipeline}
	h.Register(e.Group("/api"))
	return e, completer
}

func postChat(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestChatAnswersWithSources(t *testing.T) {
	chunks := []chatbot.ContextChunk{{
		ID:       "c1",
		Source:   "services",
		Content:  "Packages start at 1200 euro.",
		Metadata: map[string]interface{}{"url": "https://example.com/services"},
	}}
	e, _ := newChatServer(t, chunks)

	rec := postChat(e, `{"sessionId":"","messages":[{"role":"user","content":"how do you improve onboarding?"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp chatbot.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply != "Grounded answer." {
		t.Errorf("reply = %q", resp.Reply)
	}
	if resp.SessionID != "new-session" {
		t.Errorf("sessionId = %q", resp.SessionID)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].URL != "https://example.com/services" {
		t.Errorf("sources = %+v", resp.Sources)
	}
}

func TestChatGuardDeclineIsStillOK(t *testing.T) {
	e, completer := newChatServer(t, nil)

	rec := postChat(e, `{"messages":[{"role":"user","content":"write me a poem"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp chatbot.Response
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Reply != chatbot.ReplyGuardDecline {
		t.Errorf("reply = %q", resp.Reply)
	}
	if completer.calls != 0 {
		t.Error("completion model must not run for guarded messages")
	}
}

func TestChatRejectsMissingUserMessage(t *testing.T) {
	e, _ := newChatServer(t, nil)

	cases := []string{
		`{"messages":[]}`,
		`{"messages":[{"role":"assistant","content":"hi"}]}`,
		`not json at all`,
	}
	for _, body := range cases {
		rec := postChat(e, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
		var errResp HTTPError
		if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil || errResp.Error == "" {
			t.Errorf("body %q: error payload = %s", body, rec.Body.String())
		}
	}
}

func TestChatWrongMethod(t *testing.T) {
	e, _ := newChatServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

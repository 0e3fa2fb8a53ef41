package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Liviu-netizen/bulldozer-marketing/config"
)

// Embedder turns user text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher returns the top-K stored chunks clearing the similarity threshold,
// ordered by descending similarity. An empty result is not an error.
type Searcher interface {
	SearchChunks(ctx context.Context, vector []float32, topK int, threshold float64) ([]ContextChunk, error)
}

// Completer sends the assembled conversation to the chat model.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (Completion, error)
}

// TranscriptStore persists one turn, creating the session row lazily when no
// session id is supplied. It returns the session id in effect.
type TranscriptStore interface {
	LogTurn(ctx context.Context, turn Turn) (string, error)
}

// Recorder receives pipeline observability events. Implementations must be
// safe for concurrent use.
type Recorder interface {
	RecordTurn(outcome string, model string, usage Usage, elapsed time.Duration)
	RecordTranscriptFailure()
}

// Turn outcomes reported to the Recorder.
const (
	OutcomeAnswered  = "answered"
	OutcomeGuarded   = "guarded"
	OutcomeDeclined  = "declined"
	OutcomeHeuristic = "heuristic"
	OutcomeFiltered  = "filtered"
)

// Model labels recorded for turns that never reached the completion model.
const (
	ModelGuard     = "guard"
	ModelHeuristic = "heuristic"
)

// Fixed reply strings. Every branch that avoids the completion model returns
// deterministic text instead of an empty or invented answer.
const (
	ReplyGuardDecline = "I can help with Bulldozer Marketing, SaaS growth, positioning, and engagement fit."
	ReplyNoContext    = "I focus on Bulldozer Marketing and SaaS growth work. If that’s relevant, ask away."
	ReplyFiltered     = "I can't answer that specific question, but I'm happy to discuss how we can help your B2B SaaS grow."
	ReplyThinking     = "I'm thinking... (No content returned)"
)

// Pipeline orchestrates one chat request: guard, embed, search, complete,
// log. Each request is handled independently; the pipeline keeps no mutable
// state between calls.
type Pipeline struct {
	cfg         config.ChatConfig
	guard       *Guard
	embedder    Embedder
	searcher    Searcher
	completer   Completer
	transcripts TranscriptStore
	recorder    Recorder
	logger      *log.Logger
}

// NewPipeline wires the pipeline. All collaborators except recorder are
// required; construction fails fast rather than failing deep in a call chain.
func NewPipeline(cfg config.ChatConfig, guard *Guard, embedder Embedder, searcher Searcher, completer Completer, transcripts TranscriptStore, recorder Recorder, logger *log.Logger) (*Pipeline, error) {
	if guard == nil || embedder == nil || searcher == nil || completer == nil || transcripts == nil {
		return nil, fmt.Errorf("pipeline requires guard, embedder, searcher, completer and transcript store")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[CHAT] ", log.LstdFlags)
	}
	return &Pipeline{
		cfg:         cfg.Normalize(),
		guard:       guard,
		embedder:    embedder,
		searcher:    searcher,
		completer:   completer,
		transcripts: transcripts,
		recorder:    recorder,
		logger:      logger,
	}, nil
}

// Respond runs the full request flow. It returns ErrNoUserMessage when the
// cleaned history has no user turn; other errors are terminal for the request.
func (p *Pipeline) Respond(ctx context.Context, req Request) (Response, error) {
	started := time.Now()

	messages := CleanMessages(req.Messages, p.cfg.MaxMessageChars, p.cfg.HistoryLimit)
	latest, ok := latestUserMessage(messages)
	if !ok {
		return Response{}, ErrNoUserMessage
	}

	cls := p.guard.Classify(latest.Content)
	if cls.Blocked {
		return p.finish(ctx, req, latest, ReplyGuardDecline, nil, ModelGuard, Usage{}, OutcomeGuarded, started)
	}

	vector, err := p.embedder.Embed(ctx, latest.Content)
	if err != nil {
		return Response{}, fmt.Errorf("embed: %w", err)
	}

	chunks, err := p.searcher.SearchChunks(ctx, vector, p.cfg.MatchCount, p.cfg.PrimaryThreshold)
	if err != nil {
		return Response{}, fmt.Errorf("search: %w", err)
	}
	if len(chunks) == 0 {
		// Single bounded relaxation: trade precision for recall once.
		chunks, err = p.searcher.SearchChunks(ctx, vector, p.cfg.MatchCount, p.cfg.FallbackThreshold)
		if err != nil {
			return Response{}, fmt.Errorf("search fallback: %w", err)
		}
	}

	if len(chunks) == 0 {
		if !cls.SignalsInScope {
			return p.finish(ctx, req, latest, ReplyNoContext, nil, ModelGuard, Usage{}, OutcomeDeclined, started)
		}
		// No grounding context but the visitor is talking budgets: answer
		// from the heuristic template instead of letting the model invent.
		return p.finish(ctx, req, latest, BudgetFallbackReply(latest.Content), nil, ModelHeuristic, Usage{}, OutcomeHeuristic, started)
	}

	conversation := make([]Message, 0, len(messages)+2)
	conversation = append(conversation,
		Message{Role: RoleSystem, Content: BuildSystemPrompt(req.Page)},
		Message{Role: RoleSystem, Content: BuildContextMessage(chunks, req.Page)},
	)
	conversation = append(conversation, messages...)

	completion, err := p.completer.Complete(ctx, conversation)
	if err != nil {
		if errors.Is(err, ErrContentFiltered) {
			return p.finish(ctx, req, latest, ReplyFiltered, sourcesFromChunks(chunks), completion.Model, completion.Usage, OutcomeFiltered, started)
		}
		return Response{}, fmt.Errorf("complete: %w", err)
	}

	reply := strings.TrimSpace(completion.Reply)
	if reply == "" {
		p.logger.Printf("empty completion reply from model %s", completion.Model)
		reply = ReplyThinking
	}
	return p.finish(ctx, req, latest, reply, sourcesFromChunks(chunks), completion.Model, completion.Usage, OutcomeAnswered, started)
}

// finish logs the turn and assembles the response. Transcript failures are
// non-fatal to the visitor-facing reply; they are logged and counted so
// operators notice.
func (p *Pipeline) finish(ctx context.Context, req Request, userMsg Message, reply string, sources []Source, model string, usage Usage, outcome string, started time.Time) (Response, error) {
	if sources == nil {
		sources = []Source{}
	}
	turn := Turn{
		SessionID:        req.SessionID,
		VisitorID:        req.VisitorID,
		Page:             req.Page,
		Referrer:         req.Referrer,
		UserAgent:        req.UserAgent,
		UserMessage:      userMsg,
		AssistantMessage: Message{Role: RoleAssistant, Content: reply},
		Sources:          sources,
		Model:            model,
		Usage:            usage,
	}
	sessionID, err := p.transcripts.LogTurn(ctx, turn)
	if err != nil {
		p.logger.Printf("transcript log failed: %v", err)
		if p.recorder != nil {
			p.recorder.RecordTranscriptFailure()
		}
		sessionID = req.SessionID
	}
	if p.recorder != nil {
		p.recorder.RecordTurn(outcome, model, usage, time.Since(started))
	}
	return Response{Reply: reply, SessionID: sessionID, Sources: sources}, nil
}

// CleanMessages filters to well-formed user/assistant turns, truncates each
// to maxChars runes and keeps only the trailing historyLimit entries.
func CleanMessages(messages []Message, maxChars, historyLimit int) []Message {
	cleaned := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		cleaned = append(cleaned, Message{Role: m.Role, Content: truncateRunes(content, maxChars)})
	}
	if len(cleaned) > historyLimit {
		cleaned = cleaned[len(cleaned)-historyLimit:]
	}
	return cleaned
}

func latestUserMessage(messages []Message) (Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i], true
		}
	}
	return Message{}, false
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func sourcesFromChunks(chunks []ContextChunk) []Source {
	out := make([]Source, 0, len(chunks))
	for _, c := range chunks {
		title := c.PageTitle
		if title == "" {
			title = c.Source
		}
		out = append(out, Source{
			ID:         c.ID,
			Source:     c.Source,
			Title:      title,
			Section:    c.SectionTitle,
			URL:        c.URL(),
			Similarity: c.Similarity,
		})
	}
	return out
}

// BudgetFallbackReply builds the templated budget-aware reply used when the
// visitor signals scope but retrieval found nothing to ground an answer on.
func BudgetFallbackReply(message string) string {
	value, ok := ParseBudgetValue(message)
	if !ok || value <= 0 {
		return "Happy to talk budgets and scope. Our packages are Foundation (€1.2-1.5k), Traction Engine (€2.8-3.5k), and the Bulldozer Launch System (€5.5-7k). A 15-minute growth call is the quickest way to find the right fit."
	}
	label := FormatBudget(value)
	var fit string
	switch ClassifyBudget(value) {
	case BudgetLow:
		fit = "Foundation (€1.2-1.5k) is the closest fit"
	case BudgetMid:
		fit = "Traction Engine (€2.8-3.5k) is the closest fit"
	case BudgetHigh:
		fit = "the Bulldozer Launch System (€5.5-7k) is the closest fit"
	default:
		fit = "a custom engagement beyond the Bulldozer Launch System (€5.5-7k) likely fits best"
	}
	return fmt.Sprintf("With a budget around %s, %s. Our packages are Foundation (€1.2-1.5k), Traction Engine (€2.8-3.5k), and the Bulldozer Launch System (€5.5-7k). Book a 15-minute growth call and we'll map the scope together.", label, fit)
}

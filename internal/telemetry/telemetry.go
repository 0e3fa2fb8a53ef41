package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Liviu-netizen/bulldozer-marketing/internal/chatbot"
)

// Telemetry exposes pipeline counters on the default prometheus registry,
// served from /metrics. It implements chatbot.Recorder.
type Telemetry struct {
	turns              *prometheus.CounterVec
	turnDuration       prometheus.Histogram
	tokens             *prometheus.CounterVec
	transcriptFailures prometheus.Counter
	ingestRuns         *prometheus.CounterVec
	rateLimited        prometheus.Counter
}

// New registers the collectors. Call once per process.
func New() *Telemetry {
	return &Telemetry{
		turns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bulldozer",
			Name:      "chat_turns_total",
			Help:      "Chat turns by outcome and model.",
		}, []string{"outcome", "model"}),
		turnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bulldozer",
			Name:      "chat_turn_duration_seconds",
			Help:      "End-to-end chat turn latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		tokens: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bulldozer",
			Name:      "chat_tokens_total",
			Help:      "Tokens spent on completions, by kind.",
		}, []string{"kind"}),
		transcriptFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "bulldozer",
			Name:      "chat_transcript_failures_total",
			Help:      "Transcript writes that failed (replies were still served).",
		}),
		ingestRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bulldozer",
			Name:      "ingest_runs_total",
			Help:      "Site content indexing passes by status.",
		}, []string{"status"}),
		rateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "bulldozer",
			Name:      "chat_rate_limited_total",
			Help:      "Chat requests rejected by the rate limiter.",
		}),
	}
}

// RecordTurn implements chatbot.Recorder.
func (t *Telemetry) RecordTurn(outcome, model string, usage chatbot.Usage, elapsed time.Duration) {
	if model == "" {
		model = "unknown"
	}
	t.turns.WithLabelValues(outcome, model).Inc()
	t.turnDuration.Observe(elapsed.Seconds())
	if usage.PromptTokens > 0 {
		t.tokens.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		t.tokens.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
	}
}

// RecordTranscriptFailure implements chatbot.Recorder.
func (t *Telemetry) RecordTranscriptFailure() { t.transcriptFailures.Inc() }

// RecordIngestRun counts an indexing pass outcome.
func (t *Telemetry) RecordIngestRun(status string) { t.ingestRuns.WithLabelValues(status).Inc() }

// RecordRateLimited counts a rejected chat request.
func (t *Telemetry) RecordRateLimited() { t.rateLimited.Inc() }

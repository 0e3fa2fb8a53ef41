package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Liviu-netizen/bulldozer-marketing/config"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/chatbot"
)

// Store wraps the Postgres connection. The chat tables are append-only: a
// session row is never mutated after creation and message rows are never
// edited or deleted.
type Store struct {
	DB *sql.DB
}

// DefaultEmbeddingDimensions is the expected length of vectors stored in the
// rag_chunks pgvector column (text-embedding-3-small / ada-002 family).
const DefaultEmbeddingDimensions = 1536

// New constructs the Store from the Postgres section of the config.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewWithDSN(ctx, cfg.DSN())
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// ChatSession is one widget conversation, created lazily on the first turn.
type ChatSession struct {
	ID        string
	VisitorID string
	PageURL   string
	PageTitle string
	Referrer  string
	UserAgent string
	CreatedAt time.Time
}

// ChatMessage is one persisted transcript row.
type ChatMessage struct {
	ID               int64
	SessionID        string
	Role             string
	Content          string
	Sources          []chatbot.Source
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CreatedAt        time.Time
}

// LogTurn persists one user/assistant exchange, creating the session row
// first when no session id was supplied. It returns the session id in
// effect. Both message rows are written in one transaction so a transcript
// never contains half a turn.
func (s *Store) LogTurn(ctx context.Context, turn chatbot.Turn) (string, error) {
	sessionID := strings.TrimSpace(turn.SessionID)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if sessionID == "" {
		sessionID = uuid.NewString()
		var pageURL, pageTitle string
		if turn.Page != nil {
			pageURL = turn.Page.URL
			pageTitle = turn.Page.Title
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO chat_sessions (id, visitor_id, page_url, page_title, referrer, user_agent)
VALUES ($1,$2,$3,$4,$5,$6)
`, sessionID, turn.VisitorID, pageURL, pageTitle, turn.Referrer, turn.UserAgent); err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO chat_messages (session_id, role, content, sources, model, prompt_tokens, completion_tokens, total_tokens)
VALUES ($1,$2,$3,'[]',$4,0,0,0)
`, sessionID, chatbot.RoleUser, turn.UserMessage.Content, turn.Model); err != nil {
		return "", fmt.Errorf("append user message: %w", err)
	}

	sources := turn.Sources
	if sources == nil {
		sources = []chatbot.Source{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return "", fmt.Errorf("marshal sources: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO chat_messages (session_id, role, content, sources, model, prompt_tokens, completion_tokens, total_tokens)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, sessionID, chatbot.RoleAssistant, turn.AssistantMessage.Content, sourcesJSON, turn.Model,
		turn.Usage.PromptTokens, turn.Usage.CompletionTokens, turn.Usage.TotalTokens); err != nil {
		return "", fmt.Errorf("append assistant message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return sessionID, nil
}

// ListChatSessions returns recent sessions, newest first.
func (s *Store) ListChatSessions(ctx context.Context, limit, offset int) ([]ChatSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, visitor_id, page_url, page_title, referrer, user_agent, created_at
FROM chat_sessions
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChatSession
	for rows.Next() {
		var sess ChatSession
		if err := rows.Scan(&sess.ID, &sess.VisitorID, &sess.PageURL, &sess.PageTitle, &sess.Referrer, &sess.UserAgent, &sess.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// ListChatMessages returns a session's transcript in insertion order.
func (s *Store) ListChatMessages(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, session_id, role, content, sources, model, prompt_tokens, completion_tokens, total_tokens, created_at
FROM chat_messages
WHERE session_id=$1
ORDER BY id
`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChatMessage
	for rows.Next() {
		var (
			msg         ChatMessage
			sourceBytes []byte
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &sourceBytes, &msg.Model,
			&msg.PromptTokens, &msg.CompletionTokens, &msg.TotalTokens, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if len(sourceBytes) > 0 {
			_ = json.Unmarshal(sourceBytes, &msg.Sources)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// SearchChunks returns the stored chunks most similar to the supplied
// vector, ordered by descending similarity. Chunks below the threshold are
// excluded; an empty result is not an error.
func (s *Store) SearchChunks(ctx context.Context, vector []float32, topK int, threshold float64) ([]chatbot.ContextChunk, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector must not be empty")
	}
	if topK <= 0 {
		topK = 6
	}
	vecLiteral, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, content, source, page_title, section_title, metadata, 1 - (embedding <=> $1::vector) AS similarity
FROM rag_chunks
WHERE 1 - (embedding <=> $1::vector) >= $2
ORDER BY embedding <=> $1::vector
LIMIT $3
`, vecLiteral, threshold, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []chatbot.ContextChunk
	for rows.Next() {
		var (
			chunk        chatbot.ContextChunk
			pageTitle    sql.NullString
			sectionTitle sql.NullString
			metaBytes    []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.Content, &chunk.Source, &pageTitle, &sectionTitle, &metaBytes, &chunk.Similarity); err != nil {
			return nil, err
		}
		chunk.PageTitle = pageTitle.String
		chunk.SectionTitle = sectionTitle.String
		if len(metaBytes) > 0 {
			_ = json.Unmarshal(metaBytes, &chunk.Metadata)
		}
		results = append(results, chunk)
	}
	return results, rows.Err()
}

// ChunkRecord is one indexed fragment of site content.
type ChunkRecord struct {
	Source       string
	PageTitle    string
	SectionTitle string
	Content      string
	ChunkIndex   int
	ContentHash  string
	Vector       []float32
	Metadata     map[string]interface{}
}

// UpsertChunks writes a batch of chunk records keyed on content hash, so
// re-ingesting unchanged pages is idempotent.
func (s *Store) UpsertChunks(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO rag_chunks (source, page_title, section_title, content, chunk_index, content_hash, embedding, metadata)
VALUES ($1,$2,$3,$4,$5,$6,$7::vector,$8)
ON CONFLICT (content_hash) DO UPDATE SET
  page_title = EXCLUDED.page_title,
  section_title = EXCLUDED.section_title,
  chunk_index = EXCLUDED.chunk_index,
  embedding = EXCLUDED.embedding,
  metadata = EXCLUDED.metadata
`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if strings.TrimSpace(rec.Source) == "" {
			return fmt.Errorf("chunk source required")
		}
		if len(rec.Vector) == 0 {
			return fmt.Errorf("embedding vector required for chunk %d of %s", rec.ChunkIndex, rec.Source)
		}
		vecLiteral, err := encodeVectorLiteral(rec.Vector)
		if err != nil {
			return err
		}
		metaBytes, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, rec.Source, nullableString(rec.PageTitle), nullableString(rec.SectionTitle),
			rec.Content, rec.ChunkIndex, rec.ContentHash, vecLiteral, metaBytes); err != nil {
			return fmt.Errorf("upsert chunk %s/%d: %w", rec.Source, rec.ChunkIndex, err)
		}
	}
	return tx.Commit()
}

// DeleteChunksBySource removes every chunk belonging to the named sources.
// Used by a reset ingest before re-indexing.
func (s *Store) DeleteChunksBySource(ctx context.Context, sources []string) error {
	if len(sources) == 0 {
		return nil
	}
	_, err := s.DB.ExecContext(ctx, `DELETE FROM rag_chunks WHERE source = ANY($1)`, pq.Array(sources))
	return err
}

// IngestRun tracks one indexing pass for the re-ingest scheduler.
type IngestRun struct {
	ID         int64
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// StartIngestRun records the beginning of an indexing pass.
func (s *Store) StartIngestRun(ctx context.Context) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, `INSERT INTO ingest_runs (status) VALUES ('running') RETURNING id`).Scan(&id)
	return id, err
}

// FinishIngestRun closes an indexing pass with its outcome.
func (s *Store) FinishIngestRun(ctx context.Context, id int64, status string, errMsg *string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE ingest_runs SET status=$2, error=$3, finished_at=NOW() WHERE id=$1`, id, status, errMsg)
	return err
}

// LatestIngestTime returns when the last successful indexing pass started.
func (s *Store) LatestIngestTime(ctx context.Context) (*time.Time, error) {
	var t sql.NullTime
	err := s.DB.QueryRowContext(ctx, `SELECT MAX(started_at) FROM ingest_runs WHERE status='succeeded'`).Scan(&t)
	if err != nil {
		return nil, err
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

// Booking is a growth-call booking request from the site.
type Booking struct {
	ID            string
	Name          string
	Email         string
	CompanyURL    string
	PreferredDate string
	Notes         string
	CreatedAt     time.Time
}

// CreateBooking appends a booking row and returns its id.
func (s *Store) CreateBooking(ctx context.Context, b Booking) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO bookings (name, email, company_url, preferred_date, notes)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`, b.Name, b.Email, nullableString(b.CompanyURL), nullableString(b.PreferredDate), nullableString(b.Notes)).Scan(&id)
	return id, err
}

// Scorecard is a growth scorecard request from the site.
type Scorecard struct {
	ID         string
	Name       string
	Email      string
	CompanyURL string
	ARRRange   string
	SaaSMotion string
	Bottleneck string
	CreatedAt  time.Time
}

// CreateScorecard appends a scorecard row and returns its id.
func (s *Store) CreateScorecard(ctx context.Context, sc Scorecard) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO scorecards (name, email, company_url, arr_range, saas_motion, bottleneck)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`, sc.Name, sc.Email, nullableString(sc.CompanyURL), sc.ARRRange, sc.SaaSMotion, sc.Bottleneck).Scan(&id)
	return id, err
}

func nullableString(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}

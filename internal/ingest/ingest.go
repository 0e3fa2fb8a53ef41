package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"

	"github.com/Liviu-netizen/bulldozer-marketing/config"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/chatbot"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/store"
)

// ChunkStore is the slice of the storage layer ingestion needs.
type ChunkStore interface {
	UpsertChunks(ctx context.Context, records []store.ChunkRecord) error
	DeleteChunksBySource(ctx context.Context, sources []string) error
	StartIngestRun(ctx context.Context) (int64, error)
	FinishIngestRun(ctx context.Context, id int64, status string, errMsg *string) error
}

// RunRecorder counts ingest outcomes for /metrics.
type RunRecorder interface {
	RecordIngestRun(status string)
}

// Ingester crawls the configured marketing pages, extracts their copy,
// embeds it and upserts the chunks used for retrieval.
type Ingester struct {
	cfg        config.IngestConfig
	store      ChunkStore
	embedder   chatbot.Embedder
	recorder   RunRecorder
	httpClient *http.Client
	sanitizer  *bluemonday.Policy
	logger     *log.Logger
}

func NewIngester(cfg config.IngestConfig, st ChunkStore, embedder chatbot.Embedder, recorder RunRecorder) (*Ingester, error) {
	if st == nil || embedder == nil {
		return nil, fmt.Errorf("ingest: store and embedder are required")
	}
	if cfg.SiteURL == "" {
		return nil, fmt.Errorf("ingest: site_url missing")
	}
	if len(cfg.Pages) == 0 {
		return nil, fmt.Errorf("ingest: no pages configured")
	}
	return &Ingester{
		cfg:        cfg.Normalize(),
		store:      st,
		embedder:   embedder,
		recorder:   recorder,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     log.New(os.Stdout, "[INGEST] ", log.LstdFlags),
	}, nil
}

// Run performs one full indexing pass. With reset it first drops all chunks
// for the configured sources so removed copy disappears from retrieval.
func (in *Ingester) Run(ctx context.Context, reset bool) (err error) {
	runID, err := in.store.StartIngestRun(ctx)
	if err != nil {
		return fmt.Errorf("ingest: start run: %w", err)
	}
	defer func() {
		status := "succeeded"
		var msg *string
		if err != nil {
			status = "failed"
			m := err.Error()
			msg = &m
		}
		if ferr := in.store.FinishIngestRun(ctx, runID, status, msg); ferr != nil {
			in.logger.Printf("finish run %d: %v", runID, ferr)
		}
		if in.recorder != nil {
			in.recorder.RecordIngestRun(status)
		}
	}()

	if reset {
		sources := make([]string, 0, len(in.cfg.Pages))
		for _, p := range in.cfg.Pages {
			sources = append(sources, p.Source)
		}
		if derr := in.store.DeleteChunksBySource(ctx, sources); derr != nil {
			return fmt.Errorf("ingest: reset: %w", derr)
		}
		in.logger.Printf("reset removed chunks for %d sources", len(sources))
	}

	total := 0
	for _, page := range in.cfg.Pages {
		n, perr := in.ingestPage(ctx, page)
		if perr != nil {
			return fmt.Errorf("ingest: page %s: %w", page.Source, perr)
		}
		total += n
	}
	in.logger.Printf("indexed %d chunks across %d pages", total, len(in.cfg.Pages))
	return nil
}

func (in *Ingester) ingestPage(ctx context.Context, page config.IngestPage) (int, error) {
	pageURL := strings.TrimRight(in.cfg.SiteURL, "/") + page.Path
	title, text, err := in.fetchPage(ctx, pageURL)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		in.logger.Printf("page %s is empty, skipping", page.Source)
		return 0, nil
	}

	chunks := SplitChunks(text, in.cfg.ChunkSize, in.cfg.ChunkOverlap)
	records := make([]store.ChunkRecord, 0, len(chunks))
	for i, chunk := range chunks {
		vector, eerr := in.embedder.Embed(ctx, chunk)
		if eerr != nil {
			return 0, fmt.Errorf("embed chunk %d: %w", i, eerr)
		}
		records = append(records, store.ChunkRecord{
			Source:      page.Source,
			PageTitle:   title,
			Content:     chunk,
			ChunkIndex:  i,
			ContentHash: contentHash(page.Source, chunk),
			Vector:      vector,
			Metadata:    map[string]interface{}{"url": pageURL},
		})
	}

	batch := in.cfg.BatchSize
	if batch <= 0 {
		batch = 12
	}
	for start := 0; start < len(records); start += batch {
		end := start + batch
		if end > len(records) {
			end = len(records)
		}
		if err := in.store.UpsertChunks(ctx, records[start:end]); err != nil {
			return 0, fmt.Errorf("upsert batch at %d: %w", start, err)
		}
	}
	in.logger.Printf("page %s: %d chunks", page.Source, len(records))
	return len(records), nil
}

// fetchPage downloads a page and reduces it to title plus plain copy.
// Readability handles article-shaped pages; for anything it cannot parse we
// fall back to stripping every tag from the raw HTML.
func (in *Ingester) fetchPage(ctx context.Context, pageURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := in.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", "", err
	}

	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(raw)), parsed)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.Title, article.TextContent, nil
	}
	return "", in.sanitizer.Sanitize(string(raw)), nil
}

func contentHash(source, content string) string {
	sum := sha256.Sum256([]byte(source + ":" + content))
	return hex.EncodeToString(sum[:])
}

package config

import "testing"

func TestChatConfigNormalizeDefaults(t *testing.T) {
	c := ChatConfig{}.Normalize()
	if c.MatchCount != 6 {
		t.Errorf("MatchCount = %d, want 6", c.MatchCount)
	}
	if c.PrimaryThreshold != 0.68 {
		t.Errorf("PrimaryThreshold = %v, want 0.68", c.PrimaryThreshold)
	}
	if c.FallbackThreshold != 0.55 {
		t.Errorf("FallbackThreshold = %v, want 0.55", c.FallbackThreshold)
	}
	if c.HistoryLimit != 12 {
		t.Errorf("HistoryLimit = %d, want 12", c.HistoryLimit)
	}
	if c.MaxMessageChars != 4000 {
		t.Errorf("MaxMessageChars = %d, want 4000", c.MaxMessageChars)
	}
}

func TestChatConfigValidate(t *testing.T) {
	c := ChatConfig{PrimaryThreshold: 0.5, FallbackThreshold: 0.7, MatchCount: 6, HistoryLimit: 12, MaxMessageChars: 4000}
	if err := c.Validate(); err == nil {
		t.Error("fallback threshold above primary must be rejected")
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", User: "app", Password: "pw", DBName: "site"}
	want := "postgres://app:pw@db:5432/site?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}

	p = PostgresConfig{URL: "postgres://x"}
	if got := p.DSN(); got != "postgres://x" {
		t.Errorf("DSN() = %q, explicit url must win", got)
	}
}

func TestIngestConfigNormalize(t *testing.T) {
	c := IngestConfig{}.Normalize()
	if c.ChunkSize != 900 || c.ChunkOverlap != 120 || c.BatchSize != 12 {
		t.Errorf("defaults = %+v", c)
	}
	if c.ScheduleCron != "@daily" {
		t.Errorf("ScheduleCron = %q", c.ScheduleCron)
	}
}

func TestAzureOpenAIValidate(t *testing.T) {
	cfg := AzureOpenAIConfig{
		Endpoint:             "https://example.openai.azure.com",
		APIKey:               "key",
		ChatDeployment:       "gpt",
		EmbeddingsDeployment: "embed",
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	cfg.EmbeddingsDeployment = ""
	if err := cfg.Validate(); err == nil {
		t.Error("missing embeddings deployment must be rejected")
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the marketing backend. It is loaded once
// at process start and passed by reference into each component constructor.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Payments  PaymentsConfig  `mapstructure:"payments"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Listen   string `mapstructure:"listen"`
}

// ServerConfig contains HTTP surface settings.
type ServerConfig struct {
	// AllowedOrigins is the CORS allow-list. A single "*" entry allows any
	// origin; otherwise the caller's origin is reflected when listed and the
	// first entry is used as the default.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	JWTSecret      string   `mapstructure:"jwt_secret"`
	// RateLimit is the number of chat requests allowed per visitor (or IP)
	// per window. Zero disables limiting.
	RateLimit       int           `mapstructure:"rate_limit"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
}

// ProvidersConfig groups external model providers.
type ProvidersConfig struct {
	AzureOpenAI AzureOpenAIConfig `mapstructure:"azure_openai"`
}

// AzureOpenAIConfig contains the Azure OpenAI deployment settings used for
// both embeddings and chat completions.
type AzureOpenAIConfig struct {
	Endpoint             string        `mapstructure:"endpoint"`
	APIKey               string        `mapstructure:"api_key"`
	APIVersion           string        `mapstructure:"api_version"`
	ChatDeployment       string        `mapstructure:"chat_deployment"`
	EmbeddingsDeployment string        `mapstructure:"embeddings_deployment"`
	Temperature          float64       `mapstructure:"temperature"`
	MaxTokens            int           `mapstructure:"max_tokens"`
	Timeout              time.Duration `mapstructure:"timeout"`
}

func (a AzureOpenAIConfig) Validate() error {
	if strings.TrimSpace(a.Endpoint) == "" {
		return fmt.Errorf("providers.azure_openai.endpoint required")
	}
	if strings.TrimSpace(a.APIKey) == "" {
		return fmt.Errorf("providers.azure_openai.api_key required")
	}
	if strings.TrimSpace(a.ChatDeployment) == "" {
		return fmt.Errorf("providers.azure_openai.chat_deployment required")
	}
	if strings.TrimSpace(a.EmbeddingsDeployment) == "" {
		return fmt.Errorf("providers.azure_openai.embeddings_deployment required")
	}
	return nil
}

// DatabasesConfig contains storage connection settings.
type DatabasesConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("databases.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("databases.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a Postgres connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("databases.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("databases.redis.port required")
	}
	return nil
}

// ChatConfig tunes the retrieval-augmented chat pipeline.
type ChatConfig struct {
	MatchCount int `mapstructure:"match_count"`
	// PrimaryThreshold is the minimum cosine similarity for a chunk to be
	// considered relevant on the first search pass.
	PrimaryThreshold float64 `mapstructure:"primary_threshold"`
	// FallbackThreshold is the looser bound used for the single retry when
	// the primary pass returns nothing.
	FallbackThreshold float64 `mapstructure:"fallback_threshold"`
	HistoryLimit      int     `mapstructure:"history_limit"`
	MaxMessageChars   int     `mapstructure:"max_message_chars"`
}

// Normalize applies pipeline defaults for unset values.
func (c ChatConfig) Normalize() ChatConfig {
	if c.MatchCount <= 0 {
		c.MatchCount = 6
	}
	if c.PrimaryThreshold <= 0 {
		c.PrimaryThreshold = 0.68
	}
	if c.FallbackThreshold <= 0 {
		c.FallbackThreshold = 0.55
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 12
	}
	if c.MaxMessageChars <= 0 {
		c.MaxMessageChars = 4000
	}
	return c
}

func (c ChatConfig) Validate() error {
	if c.FallbackThreshold > c.PrimaryThreshold {
		return fmt.Errorf("chat.fallback_threshold must not exceed chat.primary_threshold")
	}
	return nil
}

// IngestConfig drives the site content indexer.
type IngestConfig struct {
	SiteURL      string       `mapstructure:"site_url"`
	Pages        []IngestPage `mapstructure:"pages"`
	ChunkSize    int          `mapstructure:"chunk_size"`
	ChunkOverlap int          `mapstructure:"chunk_overlap"`
	BatchSize    int          `mapstructure:"batch_size"`
	ScheduleCron string       `mapstructure:"schedule_cron"`
}

// IngestPage names one page of the marketing site to index.
type IngestPage struct {
	Source string `mapstructure:"source"`
	Path   string `mapstructure:"path"`
}

// Normalize applies ingestion defaults matching the original index layout.
func (c IngestConfig) Normalize() IngestConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 900
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = 120
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 12
	}
	if c.ScheduleCron == "" {
		c.ScheduleCron = "@daily"
	}
	return c
}

func (c IngestConfig) Validate() error {
	if len(c.Pages) == 0 {
		return nil
	}
	if strings.TrimSpace(c.SiteURL) == "" {
		return fmt.Errorf("ingest.site_url required when ingest.pages is set")
	}
	for _, p := range c.Pages {
		if strings.TrimSpace(p.Source) == "" {
			return fmt.Errorf("ingest.pages entries require a source name")
		}
	}
	return nil
}

// PaymentsConfig configures Stripe payment intents for the package tiers.
type PaymentsConfig struct {
	StripeSecretKey string                `mapstructure:"stripe_secret_key"`
	Plans           map[string]PlanConfig `mapstructure:"plans"`
}

// PlanConfig maps a package tier to a fixed charge.
type PlanConfig struct {
	Amount      int64  `mapstructure:"amount"`
	Currency    string `mapstructure:"currency"`
	Description string `mapstructure:"description"`
}

func (p PaymentsConfig) Validate() error {
	if strings.TrimSpace(p.StripeSecretKey) == "" {
		return nil // payments surface disabled
	}
	if len(p.Plans) == 0 {
		return fmt.Errorf("payments.plans required when stripe_secret_key is set")
	}
	for name, plan := range p.Plans {
		if plan.Amount <= 0 {
			return fmt.Errorf("payments.plans.%s.amount must be positive", name)
		}
		if strings.TrimSpace(plan.Currency) == "" {
			return fmt.Errorf("payments.plans.%s.currency required", name)
		}
	}
	return nil
}

// NotifyConfig configures outbound email notifications.
type NotifyConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
	To           string `mapstructure:"to"`
	// WebhookToken gates the row-insert webhook endpoint. Empty leaves the
	// endpoint open, which is only sensible behind a private network.
	WebhookToken string `mapstructure:"webhook_token"`
}

func (n NotifyConfig) Validate() error {
	if strings.TrimSpace(n.ResendAPIKey) == "" {
		return nil // notifications disabled
	}
	if strings.TrimSpace(n.To) == "" {
		return fmt.Errorf("notify.to required when resend_api_key is set")
	}
	return nil
}

// AdminConfig gates the read-only transcript endpoints.
type AdminConfig struct {
	Email        string `mapstructure:"email"`
	PasswordHash string `mapstructure:"password_hash"`
}

func (a AdminConfig) Validate() error {
	if strings.TrimSpace(a.Email) == "" {
		return nil // admin surface disabled
	}
	if strings.TrimSpace(a.PasswordHash) == "" {
		return fmt.Errorf("admin.password_hash required when admin.email is set")
	}
	return nil
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	viper.SetDefault("general.listen", ":8787")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("providers.azure_openai.api_version", "2024-12-01-preview")
	viper.SetDefault("providers.azure_openai.temperature", 0.7)
	viper.SetDefault("providers.azure_openai.max_tokens", 800)
	viper.SetDefault("providers.azure_openai.timeout", 30*time.Second)
	viper.SetDefault("server.rate_limit_window", time.Minute)
	viper.SetDefault("databases.redis.port", "6379")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("BULLDOZER")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (BULLDOZER_*)

	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {             // Handle errors reading the config file
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	// unmarshal config
	var config Config

	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Chat = config.Chat.Normalize()
	config.Ingest = config.Ingest.Normalize()

	if err := config.Providers.AzureOpenAI.Validate(); err != nil {
		panic(err)
	}
	if err := config.Databases.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Databases.Redis.Validate(); err != nil {
		panic(err)
	}
	if err := config.Chat.Validate(); err != nil {
		panic(err)
	}
	if err := config.Ingest.Validate(); err != nil {
		panic(err)
	}
	if err := config.Payments.Validate(); err != nil {
		panic(err)
	}
	if err := config.Notify.Validate(); err != nil {
		panic(err)
	}
	if err := config.Admin.Validate(); err != nil {
		panic(err)
	}
	return &config
}

package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Liviu-netizen/bulldozer-marketing/config"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/chatbot"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/ingest"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/notify"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/store"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/telemetry"
	azure "github.com/Liviu-netizen/bulldozer-marketing/provider/azure"
)

// Run wires every dependency and serves until the listener fails.
func Run(cfgPath string) error {
	cfg := config.LoadConfig(cfgPath)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(originMiddleware(cfg.Server.AllowedOrigins))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	dsn := cfg.Databases.Postgres.DSN()
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Databases.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Databases.Redis.Host + ":" + cfg.Databases.Redis.Port,
			Password: cfg.Databases.Redis.Password,
			DB:       cfg.Databases.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			baseLogger.Printf("redis unavailable, rate limiting and scheduler locks disabled: %v", err)
			rdb = nil
		}
	}

	provider, err := azure.NewClient(cfg.Providers.AzureOpenAI)
	if err != nil {
		return err
	}

	tele := telemetry.New()
	pipeline, err := chatbot.NewPipeline(cfg.Chat, chatbot.NewGuard(chatbot.DefaultTables()), provider, st, provider, st, tele, nil)
	if err != nil {
		return err
	}

	var limiter *RateLimiter
	if rdb != nil && cfg.Server.RateLimit > 0 {
		limiter = &RateLimiter{Rdb: rdb, Limit: cfg.Server.RateLimit, Window: cfg.Server.RateLimitWindow, Recorder: tele}
	}

	var mailer *notify.Mailer
	if cfg.Notify.ResendAPIKey != "" {
		mailer, err = notify.NewMailer(cfg.Notify)
		if err != nil {
			return err
		}
	}

	api := e.Group("/api")

	ch := &ChatHandler{Pipeline: pipeline, Limiter: limiter}
	ch.Register(api)

	lh := &LeadsHandler{Store: st, Mailer: mailer, Logger: baseLogger}
	lh.Register(api)

	wh := &WebhookHandler{Mailer: mailer, Token: cfg.Notify.WebhookToken, Logger: baseLogger}
	wh.Register(api.Group("/webhooks"))

	if cfg.Payments.StripeSecretKey != "" {
		NewPaymentsHandler(cfg.Payments).Register(api)
	}

	if cfg.Admin.Email != "" {
		if cfg.Server.JWTSecret == "" {
			return fmt.Errorf("server.jwt_secret required when admin surface is enabled")
		}
		ah := &AdminHandler{
			Store:        st,
			Secret:       []byte(cfg.Server.JWTSecret),
			Email:        cfg.Admin.Email,
			PasswordHash: cfg.Admin.PasswordHash,
		}
		ah.Register(api.Group("/admin"))
	}

	if len(cfg.Ingest.Pages) > 0 {
		ingester, ierr := ingest.NewIngester(cfg.Ingest, st, provider, tele)
		if ierr != nil {
			return ierr
		}
		sched := &Scheduler{
			Store:    st,
			Ingester: ingester,
			Rdb:      rdb,
			Cron:     cfg.Ingest.ScheduleCron,
			Stop:     make(chan struct{}),
		}
		sched.Start()
		defer close(sched.Stop)
	}

	return e.Start(cfg.General.Listen)
}

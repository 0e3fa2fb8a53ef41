package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/Liviu-netizen/bulldozer-marketing/internal/ingest"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/store"
)

// Scheduler re-indexes the marketing site on a cron schedule. A Redis lock
// keeps replicas from running the same pass twice.
type Scheduler struct {
	Store    *store.Store
	Ingester *ingest.Ingester
	Rdb      *redis.Client
	Cron     string
	Stop     chan struct{}
	Logger   *log.Logger
}

func (s *Scheduler) Start() {
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	last, err := s.Store.LatestIngestTime(ctx)
	if err != nil {
		s.Logger.Printf("latest ingest time: %v", err)
		return
	}
	if !isDue(s.Cron, last) {
		return
	}

	if s.Rdb != nil {
		ok, _ := s.Rdb.SetNX(ctx, "sched:lock:ingest", "1", 30*time.Minute).Result()
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, "sched:lock:ingest")
	}

	s.Logger.Printf("site re-index due, starting")
	if err := s.Ingester.Run(ctx, false); err != nil {
		s.Logger.Printf("re-index failed: %v", err)
	}
}

// isDue determines whether an indexing pass should run now given the last
// successful one. Supports "@daily", "@hourly", and standard 5-field cron
// expressions; invalid specs fall back to @daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		return last == nil || now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		return last == nil || now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			return last == nil || now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		return !expr.Next(*last).After(now)
	}
}

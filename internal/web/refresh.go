package web

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/prepd/prepd/internal/config"
	"github.com/prepd/prepd/internal/dispatch"
	"github.com/prepd/prepd/internal/event"
	"github.com/prepd/prepd/internal/log"
	"github.com/prepd/prepd/internal/ops"
)

// EventLoader supplies the upcoming calendar events a refresh run analyzes.
// *ics.FeedLoader satisfies it; tests substitute a stub.
type EventLoader interface {
	LoadUpcoming(ctx context.Context) []event.CalendarEvent
}

// Refresher re-runs the analysis pipeline over the configured feeds on a
// cron schedule, so the dashboard stays current without manual analyze runs.
// Cached events are skipped, so a quiet calendar costs no model calls.
type Refresher struct {
	db       *sql.DB
	cfg      *config.Config
	analyzer dispatch.Analyzer
	loader   EventLoader
}

func NewRefresher(db *sql.DB, cfg *config.Config, analyzer dispatch.Analyzer, loader EventLoader) *Refresher {
	return &Refresher{db: db, cfg: cfg, analyzer: analyzer, loader: loader}
}

// Start schedules refresh runs per the cron expression and returns a stop
// function that waits for any in-flight run. A tick that arrives while the
// previous run is still going is skipped, not queued.
func (rf *Refresher) Start(spec string) (func(), error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})))
	if _, err := c.AddFunc(spec, func() {
		rf.RunOnce(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	c.Start()

	log.Info("feed refresh scheduled", "cron", spec)

	return func() {
		<-c.Stop().Done()
	}, nil
}

// RunOnce fetches the configured feeds and analyzes whatever is new.
func (rf *Refresher) RunOnce(ctx context.Context) {
	if len(rf.cfg.Feeds) == 0 {
		log.Debug("refresh skipped, no feeds configured")
		return
	}

	events := rf.loader.LoadUpcoming(ctx)
	if len(events) == 0 {
		log.Info("refresh found no upcoming events")
		return
	}

	out, err := ops.Analyze(ctx, rf.db, rf.cfg, rf.analyzer, ops.AnalyzeInput{Events: events})
	if err != nil {
		log.Error("scheduled refresh failed", err)
		return
	}

	log.Info("refresh complete",
		"events", len(events),
		"analyzed", out.Analyzed,
		"from_cache", out.FromCache,
		"tasks_created", out.TasksCreated,
		"fallbacks", out.Fallbacks)
}

// cronLogger adapts the package logger to the scheduler's interface. Routine
// scheduler chatter (including skip notices) logs at debug, failures at error.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	log.Debug(msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	log.Error(msg, err, kv...)
}

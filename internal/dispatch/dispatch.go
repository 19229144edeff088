// Package dispatch runs the sequential analysis loop: one model call per
// event, paced to stay under the provider's rate limit.
package dispatch

import (
	"context"
	"time"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/errors"
	"github.com/prepd/prepd/internal/event"
	"github.com/prepd/prepd/internal/log"
)

// Default pacing keeps a run well under 50 requests/minute.
const (
	DefaultPace     = 1500 * time.Millisecond
	DefaultCooldown = 60 * time.Second
)

// Analyzer is the per-event analysis contract. Implementations must return
// a usable (fallback) analysis alongside any error.
type Analyzer interface {
	Analyze(ctx context.Context, ev event.CalendarEvent) (analysis.EventAnalysis, error)
}

// Dispatcher walks an event list strictly in order with one in-flight
// analysis call at a time.
//
// Error policy: a rate-limit error pauses for Cooldown and retries the same
// event, unbounded; any other analysis error records the analyzer's fallback
// result and advances. A batch therefore always produces one result per
// event unless the context is cancelled.
type Dispatcher struct {
	Analyzer Analyzer
	Pace     time.Duration // delay between consecutive events
	Cooldown time.Duration // pause before retrying a rate-limited event
}

// New creates a Dispatcher with default pacing.
func New(analyzer Analyzer) *Dispatcher {
	return &Dispatcher{
		Analyzer: analyzer,
		Pace:     DefaultPace,
		Cooldown: DefaultCooldown,
	}
}

// Run analyzes every event and returns results keyed by event id. On
// cancellation it returns the results accumulated so far plus the context
// error; callers may persist the partial batch.
func (d *Dispatcher) Run(ctx context.Context, events []event.CalendarEvent) (map[string]analysis.EventAnalysis, error) {
	results := make(map[string]analysis.EventAnalysis, len(events))

	for i, ev := range events {
		if i > 0 {
			if err := sleep(ctx, d.Pace); err != nil {
				return results, err
			}
		}

		for {
			a, err := d.Analyzer.Analyze(ctx, ev)
			if err == nil {
				results[ev.ID] = a
				break
			}

			if errors.Is(err, errors.ErrRateLimited) {
				log.Info("rate limited, cooling down",
					"event_id", ev.ID,
					"cooldown", d.Cooldown)
				if serr := sleep(ctx, d.Cooldown); serr != nil {
					return results, serr
				}
				continue
			}

			if ctx.Err() != nil {
				return results, ctx.Err()
			}

			// Non-retryable: keep the fallback so the batch stays complete.
			log.Error("analysis failed, recording fallback", err, "event_id", ev.ID)
			results[ev.ID] = a
			break
		}
	}

	return results, nil
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package ics

import (
	"context"
	"time"

	"github.com/prepd/prepd/internal/config"
	"github.com/prepd/prepd/internal/event"
)

// FeedLoader loads upcoming events from the feeds in the configuration,
// using the configured lookahead as the expansion window. It is the shared
// event source for the CLI, the MCP server, and the web refresh loop.
type FeedLoader struct {
	fetcher *Fetcher
	cfg     *config.Config
}

func NewFeedLoader(fetcher *Fetcher, cfg *config.Config) *FeedLoader {
	return &FeedLoader{fetcher: fetcher, cfg: cfg}
}

// LoadUpcoming fetches every configured feed and returns the concrete
// occurrences between now and now plus the lookahead.
func (l *FeedLoader) LoadUpcoming(ctx context.Context) []event.CalendarEvent {
	sources := make([]Source, 0, len(l.cfg.Feeds))
	for _, f := range l.cfg.Feeds {
		id := f.ID
		if id == "" {
			id = f.Name
		}
		sources = append(sources, Source{ID: id, URL: f.URL})
	}

	window := DefaultWindow(time.Now(), l.cfg.Lookahead())
	return l.fetcher.Load(ctx, sources, window)
}

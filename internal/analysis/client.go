package analysis

import (
	"context"

	"github.com/prepd/prepd/internal/event"
)

// Completer is the narrow contract the analyzer needs from a model provider:
// submit a prompt, receive text that should contain a JSON object.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client turns calendar events into analyses via a Completer.
type Client struct {
	completer Completer
	household HouseholdContext
}

// NewClient creates an analysis client. The household context is threaded
// into every prompt; a zero value is fine.
func NewClient(completer Completer, household HouseholdContext) *Client {
	return &Client{completer: completer, household: household}
}

// Analyze classifies one event.
//
// Parse and validation failures never escape: the returned analysis is then
// the low-confidence fallback and the error is nil. Provider errors (rate
// limits included) are returned alongside the fallback so the caller can
// decide between retrying and recording the fallback.
func (c *Client) Analyze(ctx context.Context, ev event.CalendarEvent) (EventAnalysis, error) {
	reply, err := c.completer.Complete(ctx, systemPrompt, BuildUserPrompt(ev, c.household))
	if err != nil {
		return Fallback("provider call failed"), err
	}
	return Parse(reply), nil
}

package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/prepd/prepd/internal/config"
	"github.com/prepd/prepd/internal/dispatch"
	"github.com/prepd/prepd/internal/errors"
	"github.com/prepd/prepd/internal/event"
	"github.com/prepd/prepd/internal/ops"
)

// EventLoader loads upcoming events from the configured calendar feeds.
// *ics.FeedLoader satisfies it; tests substitute a stub.
type EventLoader interface {
	LoadUpcoming(ctx context.Context) []event.CalendarEvent
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	analyzer dispatch.Analyzer
	loader   EventLoader
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, analyzer dispatch.Analyzer, loader EventLoader) *Handlers {
	return &Handlers{db: db, cfg: cfg, analyzer: analyzer, loader: loader}
}

// Request types for each tool

// TaskListRequest represents the arguments for task_list.
type TaskListRequest struct {
	Household   string `json:"household,omitempty"`
	Days        int    `json:"days,omitempty"`
	IncludeDone bool   `json:"include_done,omitempty"`
}

// TaskCompleteRequest represents the arguments for task_complete.
type TaskCompleteRequest struct {
	ID string `json:"id"`
}

// TaskDismissRequest represents the arguments for task_dismiss.
type TaskDismissRequest struct {
	ID string `json:"id"`
}

// EventAnalyzeRequest represents the arguments for event_analyze.
type EventAnalyzeRequest struct {
	Household string          `json:"household,omitempty"`
	Events    []event.Payload `json:"events,omitempty"`
	Force     bool            `json:"force,omitempty"`
	Limit     int             `json:"limit,omitempty"`
}

// EventListRequest represents the arguments for event_list.
type EventListRequest struct {
	Household string `json:"household,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// EventGetRequest represents the arguments for event_get.
type EventGetRequest struct {
	ID string `json:"id"`
}

// CacheFlushRequest represents the arguments for cache_flush.
type CacheFlushRequest struct {
	Household string `json:"household,omitempty"`
}

// Handler implementations

// HandleTaskList handles the task_list tool call.
func (h *Handlers) HandleTaskList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TaskListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Tasks(h.db, ops.TasksInput{
		Household:   input.Household,
		WindowDays:  input.Days,
		IncludeDone: input.IncludeDone,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTaskComplete handles the task_complete tool call.
func (h *Handlers) HandleTaskComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TaskCompleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Complete(h.db, ops.CompleteInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTaskDismiss handles the task_dismiss tool call.
func (h *Handlers) HandleTaskDismiss(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TaskDismissRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Dismiss(h.db, ops.DismissInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEventAnalyze handles the event_analyze tool call.
func (h *Handlers) HandleEventAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EventAnalyzeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	events, err := h.eventsToAnalyze(ctx, input.Events)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Analyze(ctx, h.db, h.cfg, h.analyzer, ops.AnalyzeInput{
		Household: input.Household,
		Events:    events,
		Force:     input.Force,
		Limit:     input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// eventsToAnalyze resolves the events for an analyze call: the caller's own
// when given, otherwise the configured feeds.
func (h *Handlers) eventsToAnalyze(ctx context.Context, payloads []event.Payload) ([]event.CalendarEvent, error) {
	if len(payloads) > 0 {
		events, err := event.FromPayloads(payloads)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		return events, nil
	}

	if len(h.cfg.Feeds) == 0 {
		return nil, errors.NewInvalidRequest("no events given and no feeds configured")
	}
	if h.loader == nil {
		return nil, errors.NewInternal(stderrors.New("feed loader not configured"))
	}
	return h.loader.LoadUpcoming(ctx), nil
}

// HandleEventList handles the event_list tool call.
func (h *Handlers) HandleEventList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EventListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Events(h.db, ops.EventsInput{
		Household: input.Household,
		Limit:     input.Limit,
		Offset:    input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEventGet handles the event_get tool call.
func (h *Handlers) HandleEventGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EventGetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Event(h.db, ops.EventInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCacheFlush handles the cache_flush tool call.
func (h *Handlers) HandleCacheFlush(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CacheFlushRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Flush(h.db, ops.FlushInput{Household: input.Household})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult converts any error into an MCP error payload with IsError set,
// so clients see a tool failure rather than a protocol error. Internal error
// details are not exposed; they may carry file paths or SQL text.
func errorResult(err error) *mcp.CallToolResult {
	errorObj := map[string]any{
		"code":    errors.ErrInternal,
		"message": "an internal error occurred",
		"status":  500,
	}

	var prepdErr *errors.PrepdError
	if stderrors.As(err, &prepdErr) {
		message := prepdErr.Message
		if wrapped := err.Error(); wrapped != prepdErr.Error() {
			// Keep context added by wrapping callers.
			message = wrapped
		}

		errorObj["code"] = prepdErr.Code
		errorObj["message"] = message
		errorObj["status"] = prepdErr.Status
		if prepdErr.Code != errors.ErrInternal && prepdErr.Details != nil {
			errorObj["details"] = prepdErr.Details
		}
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Argument names mirror the ops layer inputs so CLI flags
// and tool arguments stay interchangeable.

var taskListToolDef = mcp.NewTool("task_list",
	mcp.WithDescription("List prep tasks for a household, bucketed by urgency: overdue, this_week, next_week, later. Pending tasks only unless include_done is set."),
	mcp.WithString("household",
		mcp.Description("Household name. Defaults to \"default\"."),
	),
	mcp.WithNumber("days",
		mcp.Description("Board window in days ahead of now. Defaults to 30."),
	),
	mcp.WithBoolean("include_done",
		mcp.Description("Also list completed and dismissed tasks."),
	),
)

var taskCompleteToolDef = mcp.NewTool("task_complete",
	mcp.WithDescription("Mark a prep task completed."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Task id from task_list."),
	),
)

var taskDismissToolDef = mcp.NewTool("task_dismiss",
	mcp.WithDescription("Dismiss a prep task that is not worth doing. Dismissed tasks stay recorded but leave the board."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Task id from task_list."),
	),
)

var eventAnalyzeToolDef = mcp.NewTool("event_analyze",
	mcp.WithDescription("Analyze upcoming calendar events into prep tasks. Analyzes the events argument when given, otherwise loads the configured ICS feeds. Previously analyzed events are served from cache unless force is set."),
	mcp.WithString("household",
		mcp.Description("Household name. Defaults to \"default\"."),
	),
	mcp.WithArray("events",
		mcp.Description("Events to analyze instead of the configured feeds."),
		mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":          map[string]any{"type": "string", "description": "Stable event id. Generated when omitted."},
				"title":       map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
				"location":    map[string]any{"type": "string"},
				"start":       map[string]any{"type": "string", "description": "RFC 3339 timestamp, or YYYY-MM-DD for an all-day event."},
				"end":         map[string]any{"type": "string"},
				"all_day":     map[string]any{"type": "boolean"},
			},
			"required": []string{"start"},
		}),
	),
	mcp.WithBoolean("force",
		mcp.Description("Re-analyze events that already have a cached analysis."),
	),
	mcp.WithNumber("limit",
		mcp.Description("Max events to analyze this call. 0 means no cap."),
	),
)

var eventListToolDef = mcp.NewTool("event_list",
	mcp.WithDescription("List analyzed events for a household, newest first, with task counts."),
	mcp.WithString("household",
		mcp.Description("Household name. Defaults to \"default\"."),
	),
	mcp.WithNumber("limit",
		mcp.Description("Page size. Defaults to 20, max 100."),
	),
	mcp.WithNumber("offset",
		mcp.Description("Rows to skip."),
	),
)

var eventGetToolDef = mcp.NewTool("event_get",
	mcp.WithDescription("Get one analyzed event with its full analysis and tasks."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Analyzed event id from event_list or event_analyze."),
	),
)

var cacheFlushToolDef = mcp.NewTool("cache_flush",
	mcp.WithDescription("Delete every analyzed event and task for a household. The next event_analyze re-analyzes from scratch."),
	mcp.WithString("household",
		mcp.Description("Household name. Defaults to \"default\"."),
	),
)

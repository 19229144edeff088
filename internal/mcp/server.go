package mcp

import (
	"database/sql"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/prepd/prepd/internal/config"
	"github.com/prepd/prepd/internal/dispatch"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"task", "event"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"task_list": {
		def:     taskListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTaskList },
	},
	"task_complete": {
		def:     taskCompleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTaskComplete },
	},
	"task_dismiss": {
		def:     taskDismissToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTaskDismiss },
	},
	"event_analyze": {
		def:     eventAnalyzeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventAnalyze },
	},
	"event_list": {
		def:     eventListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventList },
	},
	"event_get": {
		def:     eventGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventGet },
	},
	"cache_flush": {
		def:     cacheFlushToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCacheFlush },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "task_list" → "task").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates an MCP server with the prepd tools registered. Tools
// listed in cfg.DisabledTools or belonging to cfg.DisabledTypes are excluded
// from registration.
func NewServer(db *sql.DB, cfg *config.Config, analyzer dispatch.Analyzer, loader EventLoader, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"prepd",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, analyzer, loader)

	// Expand disabled types first, then add individually disabled tools.
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, analyzer dispatch.Analyzer, loader EventLoader, version string) error {
	return server.ServeStdio(NewServer(db, cfg, analyzer, loader, version))
}

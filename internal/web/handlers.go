package web

import (
	"database/sql"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/prepd/prepd/internal/config"
	"github.com/prepd/prepd/internal/errors"
	"github.com/prepd/prepd/internal/ops"
)

// Handlers contains HTTP route handlers for the web dashboard.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// HandleTasks handles GET /tasks, the bucketed task board.
func (h *Handlers) HandleTasks(w http.ResponseWriter, r *http.Request) {
	household := r.URL.Query().Get("household")
	if household == "" {
		household = "default"
	}

	input := ops.TasksInput{
		Household:   household,
		WindowDays:  parseIntParam(r, "days", 0),
		IncludeDone: parseBoolParam(r, "all"),
	}

	result, err := ops.Tasks(h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "tasks", TasksPageData{
		PageData: PageData{
			Title:   "Tasks",
			Version: h.renderer.version,
			Nav:     "tasks",
		},
		Sections:    taskSections(result.Buckets),
		Counts:      result.Counts,
		WindowDays:  result.WindowDays,
		Total:       result.Total,
		Household:   household,
		IncludeDone: input.IncludeDone,
	})
}

// HandleEvents handles GET /events, the analyzed-event listing.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	household := r.URL.Query().Get("household")
	if household == "" {
		household = "default"
	}

	input := ops.EventsInput{
		Household: household,
		Limit:     parseIntParam(r, "limit", 20),
		Offset:    parseIntParam(r, "offset", 0),
	}

	result, err := ops.Events(h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "events", EventsPageData{
		PageData: PageData{
			Title:   "Events",
			Version: h.renderer.version,
			Nav:     "events",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		Household:  household,
	})
}

// HandleEventDetail handles GET /events/{id}, one analyzed event with its
// tasks and the model's reasoning rendered as markdown.
func (h *Handlers) HandleEventDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("event ID is required"))
		return
	}

	result, err := ops.Event(h.db, ops.EventInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	var reasoning template.HTML
	if result.Record.Reasoning != nil {
		reasoning = renderMarkdown(*result.Record.Reasoning)
	}

	h.renderer.renderPage(w, "detail", DetailPageData{
		PageData: PageData{
			Title:   result.Record.EventTitle,
			Version: h.renderer.version,
			Nav:     "events",
		},
		Record:        result.Record,
		Tasks:         result.Tasks,
		ReasoningHTML: reasoning,
	})
}

// HandleTaskComplete handles POST /tasks/{id}/complete.
func (h *Handlers) HandleTaskComplete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("task ID is required"))
		return
	}

	result, err := ops.Complete(h.db, ops.CompleteInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, boardPath(r.FormValue("household")), http.StatusFound)
}

// HandleTaskDismiss handles POST /tasks/{id}/dismiss.
func (h *Handlers) HandleTaskDismiss(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("task ID is required"))
		return
	}

	result, err := ops.Dismiss(h.db, ops.DismissInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, boardPath(r.FormValue("household")), http.StatusFound)
}

// HandleFlush handles POST /flush, deleting a household's analyzed events and
// tasks. Requires confirm=true so a stray click cannot wipe the cache.
func (h *Handlers) HandleFlush(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	household := r.FormValue("household")

	result, err := ops.Flush(h.db, ops.FlushInput{Household: household})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, eventsPath(household), http.StatusFound)
}

// boardPath returns the task board URL, carrying a non-default household filter.
func boardPath(household string) string {
	if household == "" || household == "default" {
		return "/tasks"
	}
	return "/tasks?household=" + url.QueryEscape(household)
}

// eventsPath returns the events list URL, carrying a non-default household filter.
func eventsPath(household string) string {
	if household == "" || household == "default" {
		return "/events"
	}
	return "/events?household=" + url.QueryEscape(household)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

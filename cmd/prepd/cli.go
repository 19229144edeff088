package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/prepd/prepd/internal/config"
	"github.com/prepd/prepd/internal/dispatch"
	"github.com/prepd/prepd/internal/errors"
	"github.com/prepd/prepd/internal/event"
	"github.com/prepd/prepd/internal/ops"
	"github.com/prepd/prepd/internal/web"
)

// eventLoader is the slice of the feed loader the CLI needs. Tests swap in
// a stub; *ics.FeedLoader satisfies it.
type eventLoader interface {
	LoadUpcoming(ctx context.Context) []event.CalendarEvent
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, analyzer dispatch.Analyzer, loader eventLoader) *cli.App {
	app := &cli.App{
		Name:    "prepd",
		Usage:   "Event prep assistant for household calendars",
		Version: Version,
		Commands: []*cli.Command{
			analyzeCmd(db, cfg, analyzer, loader),
			tasksCmd(db),
			completeCmd(db),
			dismissCmd(db),
			eventsCmd(db),
			showCmd(db),
			flushCmd(db),
			exportCmd(db, cfg),
			importCmd(db, cfg),
			serveCmd(db, cfg, analyzer, loader),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// analyzeCmd creates the analyze command.
func analyzeCmd(db *sql.DB, cfg *config.Config, analyzer dispatch.Analyzer, loader eventLoader) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Analyze upcoming events and materialize prep tasks (reads an events JSON array from stdin, or fetches configured feeds)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "household", Value: "default", Usage: "Household the events belong to"},
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Re-analyze events that already have a stored analysis"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Analyze at most this many events"},
		},
		Action: func(c *cli.Context) error {
			var events []event.CalendarEvent

			if stdinHasData() {
				decoded, err := event.DecodePayloads(os.Stdin)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				events = decoded
			} else {
				if len(cfg.Feeds) == 0 {
					return outputError(errors.NewInvalidRequest("no events on stdin and no feeds configured"))
				}
				events = loader.LoadUpcoming(c.Context)
			}

			output, err := ops.Analyze(c.Context, db, cfg, analyzer, ops.AnalyzeInput{
				Household: c.String("household"),
				Events:    events,
				Force:     c.Bool("force"),
				Limit:     c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// tasksCmd creates the tasks command.
func tasksCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "Show the prep task board bucketed by due date",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "household", Value: "default", Usage: "Household name"},
			&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Usage: "Due-date window in days (default 30)"},
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include completed and dismissed tasks"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Tasks(db, ops.TasksInput{
				Household:   c.String("household"),
				WindowDays:  c.Int("days"),
				IncludeDone: c.Bool("all"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// completeCmd creates the complete command.
func completeCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "complete",
		Usage:     "Mark a prep task completed",
		ArgsUsage: "<task-id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Complete(db, ops.CompleteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// dismissCmd creates the dismiss command.
func dismissCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "dismiss",
		Usage:     "Dismiss a prep task that does not apply",
		ArgsUsage: "<task-id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Dismiss(db, ops.DismissInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// eventsCmd creates the events command.
func eventsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "List analyzed events for a household",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "household", Value: "default", Usage: "Household name"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Events(db, ops.EventsInput{
				Household: c.String("household"),
				Limit:     c.Int("limit"),
				Offset:    c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one analyzed event with its prep tasks",
		ArgsUsage: "<event-id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Event(db, ops.EventInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// flushCmd creates the flush command.
func flushCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "flush",
		Usage: "Delete every analyzed event and task for a household",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "household", Value: "default", Usage: "Household name"},
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm the deletion"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return outputError(errors.NewInvalidRequest("flush deletes all analyzed events and tasks; pass --yes to confirm"))
			}

			output, err := ops.Flush(db, ops.FlushInput{Household: c.String("household")})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export analyzed events and tasks to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.prepd/exports/<household>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "household", Usage: "Export only this household (default: every household)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, db, cfg, ops.ExportInput{
				Path:      c.String("path"),
				Household: c.String("household"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import analyzed events and tasks from a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace|skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(db, cfg, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config, analyzer dispatch.Analyzer, loader eventLoader) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Interface to bind (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port to listen on (default from config)"},
			&cli.StringFlag{Name: "refresh", Usage: "Cron schedule for feed refresh (default from config)"},
		},
		Action: func(c *cli.Context) error {
			bind := cfg.WebBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := cfg.WebPort
			if c.IsSet("port") {
				port = c.Int("port")
			}

			spec := cfg.RefreshCron
			if c.IsSet("refresh") {
				spec = c.String("refresh")
			}
			if spec != "" {
				refresher := web.NewRefresher(db, cfg, analyzer, loader)
				stop, err := refresher.Start(spec)
				if err != nil {
					return outputError(err)
				}
				defer stop()
				// Cron waits for the first tick; prime the board now.
				go refresher.RunOnce(context.Background())
			}

			if err := web.Run(web.NewServer(db, cfg, Version, bind, port)); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var prepdErr *errors.PrepdError
	if stderrors.As(err, &prepdErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", prepdErr.Code, prepdErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

package ops

import (
	"database/sql"
	"time"

	"github.com/prepd/prepd/internal/analysis"
	"github.com/prepd/prepd/internal/db"
)

// TasksInput contains parameters for the Tasks operation.
type TasksInput struct {
	Household   string    // optional, defaults to "default"
	WindowDays  int       // default: 30
	IncludeDone bool      // include completed and dismissed tasks
	Now         time.Time // board reference time; zero means time.Now()
}

// TaskBuckets groups tasks by urgency relative to the board reference time.
type TaskBuckets struct {
	Overdue  []analysis.Task `json:"overdue"`
	ThisWeek []analysis.Task `json:"this_week"`
	NextWeek []analysis.Task `json:"next_week"`
	Later    []analysis.Task `json:"later"`
}

// BucketCounts carries the per-bucket sizes.
type BucketCounts struct {
	Overdue  int `json:"overdue"`
	ThisWeek int `json:"this_week"`
	NextWeek int `json:"next_week"`
	Later    int `json:"later"`
}

// TasksOutput contains the result of the Tasks operation.
type TasksOutput struct {
	Buckets    TaskBuckets  `json:"buckets"`
	Counts     BucketCounts `json:"counts"`
	WindowDays int          `json:"window_days"`
	Total      int          `json:"total"`
}

// Tasks returns the task board: tasks due inside the lookahead window,
// bucketed into overdue (due before now), this week (within 7 days), next
// week (7 to 14 days), and later. Buckets keep the overall order: ascending
// due date, high-priority tasks first within a day. Only pending tasks
// appear unless IncludeDone is set.
func Tasks(database *sql.DB, input TasksInput) (*TasksOutput, error) {
	norm := analysis.NormalizeHousehold(input.Household)

	window := input.WindowDays
	if window <= 0 {
		window = DefaultTaskWindowDays
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	cutoff := now.Add(time.Duration(window) * 24 * time.Hour).Unix()
	tasks, err := db.ListTasksDueBefore(database, norm, cutoff, input.IncludeDone)
	if err != nil {
		return nil, err
	}

	out := &TasksOutput{
		Buckets: TaskBuckets{
			Overdue:  []analysis.Task{},
			ThisWeek: []analysis.Task{},
			NextWeek: []analysis.Task{},
			Later:    []analysis.Task{},
		},
		WindowDays: window,
		Total:      len(tasks),
	}

	nowUnix := now.Unix()
	weekOut := now.Add(7 * 24 * time.Hour).Unix()
	fortnightOut := now.Add(14 * 24 * time.Hour).Unix()

	for _, t := range tasks {
		switch {
		case t.DueDate < nowUnix:
			out.Buckets.Overdue = append(out.Buckets.Overdue, t)
		case t.DueDate < weekOut:
			out.Buckets.ThisWeek = append(out.Buckets.ThisWeek, t)
		case t.DueDate < fortnightOut:
			out.Buckets.NextWeek = append(out.Buckets.NextWeek, t)
		default:
			out.Buckets.Later = append(out.Buckets.Later, t)
		}
	}

	out.Counts = BucketCounts{
		Overdue:  len(out.Buckets.Overdue),
		ThisWeek: len(out.Buckets.ThisWeek),
		NextWeek: len(out.Buckets.NextWeek),
		Later:    len(out.Buckets.Later),
	}

	return out, nil
}

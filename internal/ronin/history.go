package ronin

import (
	"database/sql"
	"time"
)

// Trigger identifies what caused a sync run.
type Trigger string

const (
	TriggerOnce  Trigger = "once"
	TriggerPoll  Trigger = "poll"
	TriggerEvent Trigger = "event"
)

// Run statuses recorded in history.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// ChangeSummary counts the classified changes that triggered a run.
type ChangeSummary struct {
	Created  int
	Deleted  int
	Modified int
	Moved    int
}

// Total returns the number of changed paths.
func (c ChangeSummary) Total() int {
	return c.Created + c.Deleted + c.Modified + c.Moved
}

// SyncRun is the history record of one transfer invocation.
type SyncRun struct {
	ID         string
	Trigger    Trigger
	Strategy   string
	Source     string
	Target     string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	ExitCode   sql.NullInt64
	Status     string
	Error      string
	Changes    ChangeSummary
}

// HistoryStore persists sync runs.
type HistoryStore interface {
	// StartRun records a run that has just begun.
	StartRun(run *SyncRun) error

	// FinishRun records the outcome of a previously started run.
	FinishRun(run *SyncRun) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*SyncRun, error)

	// Close releases the underlying storage.
	Close() error
}

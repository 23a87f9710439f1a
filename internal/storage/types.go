package storage

import (
	"errors"
	"time"

	"tenderwatch/internal/schedule"
)

// ErrNotFound is returned when a definition id does not exist.
var ErrNotFound = errors.New("definition not found")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//
// If Driver is empty, sqlite is assumed.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Definition is one persisted recurring search.
//
// Custom is nil unless Frequency is schedule.Custom, and non-nil when it is.
type Definition struct {
	ID            int64
	OwnerID       int64
	Keywords      string
	Frequency     schedule.Frequency
	Custom        *schedule.CustomSpec
	Active        bool
	NextExecution time.Time
	LastExecution *time.Time
	CreatedAt     time.Time
}

// RunOutcome records one scheduled execution. The run_outcomes table is
// append-only; the stats projection reads it, nothing rewrites it.
type RunOutcome struct {
	DefinitionID     int64
	StartedAt        time.Time
	FinishedAt       time.Time
	ResultsCount     int
	SourcesSucceeded []string
	SourcesFailed    []string
	Error            string
}

// Counts is the definition census used by the stats projection.
type Counts struct {
	Total    int
	Active   int
	Inactive int
}

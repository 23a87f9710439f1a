package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"tenderwatch/internal/schedule"
	logx "tenderwatch/pkg/logx"
)

// Store is the persistence API consumed by the scheduler and stats tracker.
type Store interface {
	// CreateDefinition inserts def and fills its ID and CreatedAt.
	CreateDefinition(ctx context.Context, def *Definition) error
	GetDefinition(ctx context.Context, id int64) (Definition, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]Definition, error)

	// DueDefinitions returns active definitions with next execution at or
	// before now.
	DueDefinitions(ctx context.Context, now time.Time) ([]Definition, error)

	// UpdateAfterRun atomically advances last/next execution, but only while
	// the definition still exists and is still active. It reports whether the
	// update was applied, so a run finishing after a deactivate or delete
	// cannot resurrect the definition.
	UpdateAfterRun(ctx context.Context, id int64, last, next time.Time) (bool, error)

	// UpdateSchedule edits the recurrence of a definition and stores the
	// recomputed next execution time.
	UpdateSchedule(ctx context.Context, id int64, freq schedule.Frequency, custom *schedule.CustomSpec, next time.Time) error

	SetActive(ctx context.Context, id int64, active bool) error
	DeleteDefinition(ctx context.Context, id int64) error

	AppendOutcome(ctx context.Context, o RunOutcome) error
	RecentOutcomes(ctx context.Context, limit int) ([]RunOutcome, error)

	CountsByFrequency(ctx context.Context) (map[schedule.Frequency]int, error)
	DefinitionCounts(ctx context.Context) (Counts, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

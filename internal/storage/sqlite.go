package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"tenderwatch/internal/schedule"
	logx "tenderwatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var definitionColumns = []string{
	"id", "owner_id", "keywords", "frequency", "week_days", "hours",
	"active", "next_execution_at", "last_execution_at", "created_at",
}

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Pragmas are best effort; a store on an odd filesystem still opens.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	if cfg.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			st.log.Warn("pragma failed", logx.String("pragma", p), logx.Err(err))
		}
	}

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	st.log.Debug("sqlite store ready", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) CreateDefinition(ctx context.Context, def *Definition) error {
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now()
	}
	var weekDays, hours any
	if def.Custom != nil {
		weekDays = encodeIntSet(def.Custom.WeekDays)
		hours = encodeIntSet(def.Custom.Hours)
	}
	query, args, err := qb.Insert("scheduled_searches").
		Columns("owner_id", "keywords", "frequency", "week_days", "hours",
			"active", "next_execution_at", "last_execution_at", "created_at").
		Values(def.OwnerID, def.Keywords, string(def.Frequency), weekDays, hours,
			def.Active, toMillis(def.NextExecution), nil, toMillis(def.CreatedAt)).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	def.ID, err = res.LastInsertId()
	return err
}

func (s *sqliteStore) GetDefinition(ctx context.Context, id int64) (Definition, error) {
	query, args, err := qb.Select(definitionColumns...).
		From("scheduled_searches").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return Definition{}, err
	}
	def, err := scanDefinition(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Definition{}, ErrNotFound
	}
	return def, err
}

func (s *sqliteStore) ListByOwner(ctx context.Context, ownerID int64) ([]Definition, error) {
	query, args, err := qb.Select(definitionColumns...).
		From("scheduled_searches").
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryDefinitions(ctx, query, args)
}

func (s *sqliteStore) DueDefinitions(ctx context.Context, now time.Time) ([]Definition, error) {
	query, args, err := qb.Select(definitionColumns...).
		From("scheduled_searches").
		Where(sq.Eq{"active": true}).
		Where(sq.LtOrEq{"next_execution_at": toMillis(now)}).
		OrderBy("next_execution_at").
		ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryDefinitions(ctx, query, args)
}

func (s *sqliteStore) queryDefinitions(ctx context.Context, query string, args []any) ([]Definition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (s *sqliteStore) UpdateAfterRun(ctx context.Context, id int64, last, next time.Time) (bool, error) {
	query, args, err := qb.Update("scheduled_searches").
		Set("last_execution_at", toMillis(last)).
		Set("next_execution_at", toMillis(next)).
		Where(sq.Eq{"id": id, "active": true}).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqliteStore) UpdateSchedule(ctx context.Context, id int64, freq schedule.Frequency, custom *schedule.CustomSpec, next time.Time) error {
	var weekDays, hours any
	if custom != nil {
		weekDays = encodeIntSet(custom.WeekDays)
		hours = encodeIntSet(custom.Hours)
	}
	query, args, err := qb.Update("scheduled_searches").
		Set("frequency", string(freq)).
		Set("week_days", weekDays).
		Set("hours", hours).
		Set("next_execution_at", toMillis(next)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) SetActive(ctx context.Context, id int64, active bool) error {
	query, args, err := qb.Update("scheduled_searches").
		Set("active", active).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) DeleteDefinition(ctx context.Context, id int64) error {
	query, args, err := qb.Delete("scheduled_searches").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) AppendOutcome(ctx context.Context, o RunOutcome) error {
	query, args, err := qb.Insert("run_outcomes").
		Columns("definition_id", "started_at", "finished_at", "results_count",
			"sources_succeeded", "sources_failed", "err").
		Values(o.DefinitionID, toMillis(o.StartedAt), toMillis(o.FinishedAt),
			o.ResultsCount, strings.Join(o.SourcesSucceeded, ","),
			strings.Join(o.SourcesFailed, ","), nullStr(o.Error)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *sqliteStore) RecentOutcomes(ctx context.Context, limit int) ([]RunOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	query, args, err := qb.Select("definition_id", "started_at", "finished_at",
		"results_count", "sources_succeeded", "sources_failed", "err").
		From("run_outcomes").
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []RunOutcome
	for rows.Next() {
		var (
			o                 RunOutcome
			started, finished int64
			succeeded, failed sql.NullString
			outcomeErr        sql.NullString
		)
		if err := rows.Scan(&o.DefinitionID, &started, &finished, &o.ResultsCount,
			&succeeded, &failed, &outcomeErr); err != nil {
			return nil, err
		}
		o.StartedAt = fromMillis(started)
		o.FinishedAt = fromMillis(finished)
		o.SourcesSucceeded = splitNames(succeeded.String)
		o.SourcesFailed = splitNames(failed.String)
		o.Error = outcomeErr.String
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

func (s *sqliteStore) CountsByFrequency(ctx context.Context) (map[schedule.Frequency]int, error) {
	query, _, err := qb.Select("frequency", "COUNT(*)").
		From("scheduled_searches").
		GroupBy("frequency").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[schedule.Frequency]int{}
	for rows.Next() {
		var freq string
		var n int
		if err := rows.Scan(&freq, &n); err != nil {
			return nil, err
		}
		counts[schedule.Frequency(freq)] = n
	}
	return counts, rows.Err()
}

func (s *sqliteStore) DefinitionCounts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(active), 0) FROM scheduled_searches`,
	).Scan(&c.Total, &c.Active)
	if err != nil {
		return Counts{}, err
	}
	c.Inactive = c.Total - c.Active
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (Definition, error) {
	var (
		def             Definition
		freq            string
		weekDays, hours sql.NullString
		next, created   int64
		last            sql.NullInt64
	)
	err := row.Scan(&def.ID, &def.OwnerID, &def.Keywords, &freq, &weekDays, &hours,
		&def.Active, &next, &last, &created)
	if err != nil {
		return Definition{}, err
	}
	def.Frequency = schedule.Frequency(freq)
	if def.Frequency == schedule.Custom {
		def.Custom = &schedule.CustomSpec{
			WeekDays: decodeIntSet(weekDays.String),
			Hours:    decodeIntSet(hours.String),
		}
	}
	def.NextExecution = fromMillis(next)
	def.CreatedAt = fromMillis(created)
	if last.Valid {
		t := fromMillis(last.Int64)
		def.LastExecution = &t
	}
	return def, nil
}

// Timestamps are stored as Unix milliseconds so range queries compare
// correctly on the integer column.
func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func encodeIntSet(vals []int) string {
	parts := make([]string, 0, len(vals))
	for _, v := range vals {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ",")
}

func decodeIntSet(s string) []int {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func splitNames(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

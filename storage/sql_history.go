package storage

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"hotel-monitor/models"
	"hotel-monitor/utils"
)

// ErrHistoryDisabled is returned when no history database is configured
var ErrHistoryDisabled = errors.New("history database not configured")

var placeholderRegex = regexp.MustCompile(`\$\d+`)

type dialect struct {
	driver    string
	idColumn  string
	positions bool // $1-style placeholders
}

var (
	postgresDialect = dialect{driver: "postgres", idColumn: "SERIAL PRIMARY KEY", positions: true}
	sqliteDialect   = dialect{driver: "sqlite3", idColumn: "INTEGER PRIMARY KEY AUTOINCREMENT"}
)

// rebind rewrites $N placeholders for drivers that expect "?"
func (d dialect) rebind(query string) string {
	if d.positions {
		return query
	}
	return placeholderRegex.ReplaceAllString(query, "?")
}

// parseDatabaseURL picks the driver from the URL scheme
func parseDatabaseURL(raw string) (dialect, string, error) {
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return postgresDialect, raw, nil
	case strings.HasPrefix(raw, "sqlite://"):
		return sqliteDialect, strings.TrimPrefix(raw, "sqlite://"), nil
	case strings.HasSuffix(raw, ".db"), strings.HasSuffix(raw, ".sqlite"):
		return sqliteDialect, raw, nil
	}
	return dialect{}, "", errors.Newf("unsupported database URL %q", raw)
}

// SQLHistory stores run history in PostgreSQL or SQLite
type SQLHistory struct {
	db      *sql.DB
	dialect dialect
	logger  *utils.Logger
}

// NewSQLHistory opens the database named by databaseURL and pings it
func NewSQLHistory(databaseURL string, logger *utils.Logger) (*SQLHistory, error) {
	d, dsn, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open DB")
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Minute * 5)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping DB")
	}

	logger.Info("Connected to %s history database", d.driver)
	return &SQLHistory{db: db, dialect: d, logger: logger}, nil
}

// CreateTable creates the history tables if they don't exist, with indexes
func (h *SQLHistory) CreateTable(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id      TEXT PRIMARY KEY,
			started_at  TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			dates       INTEGER   NOT NULL DEFAULT 0,
			available   INTEGER   NOT NULL DEFAULT 0,
			failed      INTEGER   NOT NULL DEFAULT 0,
			events      INTEGER   NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS observations (
			id           ` + h.dialect.idColumn + `,
			run_id       TEXT      NOT NULL,
			checked_at   TIMESTAMP NOT NULL,
			checkin_date TEXT      NOT NULL,
			is_available BOOLEAN   NOT NULL,
			price        INTEGER,
			currency     TEXT      NOT NULL DEFAULT '',
			error        TEXT      NOT NULL DEFAULT '',
			UNIQUE (run_id, checkin_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_date ON observations (checkin_date, checked_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs (started_at)`,
	}
	for _, stmt := range stmts {
		if _, err := h.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to create history tables")
		}
	}
	h.logger.Debug("History tables are ready")
	return nil
}

// RecordRun inserts the run and its observations in a single transaction
func (h *SQLHistory) RecordRun(ctx context.Context, report *models.RunReport) (err error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	sum := summarizeRun(report)
	_, err = tx.ExecContext(ctx, h.dialect.rebind(`
		INSERT INTO runs (run_id, started_at, finished_at, dates, available, failed, events)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO NOTHING
	`), sum.RunID, sum.StartedAt.UTC(), sum.FinishedAt.UTC(), sum.Dates, sum.Available, sum.Failed, sum.Events)
	if err != nil {
		return errors.Wrap(err, "failed to insert run")
	}

	stmt, err := tx.PrepareContext(ctx, h.dialect.rebind(`
		INSERT INTO observations (run_id, checked_at, checkin_date, is_available, price, currency, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, checkin_date) DO NOTHING
	`))
	if err != nil {
		return errors.Wrap(err, "failed to prepare statement")
	}
	defer stmt.Close()

	for _, date := range report.Snapshot.Dates() {
		rec := report.Snapshot[date]
		var price sql.NullInt64
		if rec.Price != nil {
			price = sql.NullInt64{Int64: int64(*rec.Price), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx,
			report.RunID,
			report.FinishedAt.UTC(),
			date,
			rec.IsAvailable,
			price,
			string(rec.Currency),
			rec.Error,
		); err != nil {
			return errors.Wrapf(err, "failed to insert observation for %s", date)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	h.logger.Info("Recorded run %s (%d dates) in history", report.RunID, len(report.Snapshot))
	return nil
}

// PriceHistory returns the newest observations of one date, oldest first
func (h *SQLHistory) PriceHistory(ctx context.Context, date string, limit int) ([]PricePoint, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := h.db.QueryContext(ctx, h.dialect.rebind(`
		SELECT run_id, checked_at, checkin_date, is_available, price, currency, error
		FROM observations
		WHERE checkin_date = $1
		ORDER BY checked_at DESC
		LIMIT $2
	`), date, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query price history")
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var (
			p     PricePoint
			price sql.NullInt64
			cur   string
		)
		if err := rows.Scan(&p.RunID, &p.CheckedAt, &p.Date, &p.IsAvailable, &price, &cur, &p.Error); err != nil {
			return nil, errors.Wrap(err, "failed to scan observation")
		}
		if price.Valid {
			p.Price = models.IntPtr(int(price.Int64))
		}
		p.Currency = models.Currency(cur)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read observations")
	}

	// oldest first reads naturally as a trend
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// RecentRuns returns the newest runs first
func (h *SQLHistory) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx, h.dialect.rebind(`
		SELECT run_id, started_at, finished_at, dates, available, failed, events
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1
	`), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query runs")
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.Dates, &r.Available, &r.Failed, &r.Events); err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "failed to read runs")
}

// Close closes the database connection
func (h *SQLHistory) Close() {
	if h.db != nil {
		_ = h.db.Close()
	}
}

func summarizeRun(report *models.RunReport) RunSummary {
	s := RunSummary{
		RunID:      report.RunID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Dates:      len(report.Snapshot),
		Failed:     report.Failed,
		Events:     len(report.Events),
	}
	for _, rec := range report.Snapshot {
		if rec.IsAvailable {
			s.Available++
		}
	}
	return s
}

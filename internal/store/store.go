package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Points awarded to a reporter.
const (
	PointsReportSubmitted = 20
	PointsReportResolved  = 50
)

var (
	// ErrNotFound is returned for unknown report or user IDs.
	ErrNotFound = errors.New("store: not found")
	// ErrInvalidStatus is returned for a status outside the report lifecycle.
	ErrInvalidStatus = errors.New("store: invalid status")
)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDFunc overrides report ID generation.
func WithIDFunc(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// Store persists reports and reporter statistics in a SQL database.
// Safe for concurrent use.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
	newID  func() string
}

// Open connects to the database and creates the schema if needed.
// driver is "sqlite" (dsn is a file path) or "postgres" (dsn is a
// connection URL).
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case "sqlite":
		db, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err == nil {
			// One writer avoids SQLITE_BUSY between concurrent transactions.
			db.SetMaxOpenConns(1)
		}
	case "postgres":
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}

	s := &Store{db: db, driver: driver, now: time.Now, newID: newReportID}
	for _, opt := range opts {
		opt(s)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", driver, err)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// sqliteDSN turns a file path into a modernc DSN with WAL and a busy timeout.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		role            TEXT NOT NULL DEFAULT 'user',
		total_reports   INTEGER NOT NULL DEFAULT 0,
		resolved_issues INTEGER NOT NULL DEFAULT 0,
		points          INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL REFERENCES users(id),
		user_name      TEXT NOT NULL,
		title          TEXT NOT NULL,
		description    TEXT NOT NULL,
		category       TEXT NOT NULL,
		severity       TEXT NOT NULL,
		confidence     INTEGER NOT NULL,
		summary        TEXT NOT NULL,
		analysis_error TEXT NOT NULL DEFAULT '',
		photo_url      TEXT NOT NULL DEFAULT '',
		location_json  TEXT,
		status         TEXT NOT NULL,
		upvotes        INTEGER NOT NULL DEFAULT 0,
		created_at     BIGINT NOT NULL,
		updated_at     BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_user ON reports(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: initialize schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timestamps are stored as Unix nanoseconds so ordering is identical on
// every driver.
func toDB(t time.Time) int64   { return t.UTC().UnixNano() }
func fromDB(n int64) time.Time { return time.Unix(0, n).UTC() }

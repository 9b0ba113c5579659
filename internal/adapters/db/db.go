// Package db opens the SQL database backing the row and leaderboard stores.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Driver names a supported database.
type Driver string

// Supported drivers.
const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ErrUnsupportedDriver is returned for driver names other than sqlite and postgres.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Open opens and pings the database, then ensures the schema exists.
// An empty dsn selects a local default for the driver.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "file:reviewrank.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/reviewrank?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// a single connection keeps in-memory databases shared and serializes writers
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := EnsureSchema(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	schema := schemaSQLite
	if driver == DriverPostgres {
		schema = schemaPostgres
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS score_rows (
  score_set TEXT NOT NULL,
  position INTEGER NOT NULL,
  batch_id TEXT NOT NULL,
  application_id TEXT NOT NULL DEFAULT '',
  application_slug TEXT NOT NULL DEFAULT '',
  application_title TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  reviewer_email TEXT NOT NULL DEFAULT '',
  reviewer_first TEXT NOT NULL DEFAULT '',
  reviewer_last TEXT NOT NULL DEFAULT '',
  scoring_criterion TEXT NOT NULL DEFAULT '',
  score REAL NOT NULL DEFAULT 0,
  max_score REAL NOT NULL DEFAULT 0,
  weighted_score REAL NOT NULL DEFAULT 0,
  weighted_max_score REAL NOT NULL DEFAULT 0,
  score_set_name TEXT NOT NULL DEFAULT '',
  score_set_slug TEXT NOT NULL DEFAULT '',
  applicant_first TEXT NOT NULL DEFAULT '',
  applicant_last TEXT NOT NULL DEFAULT '',
  applicant_email TEXT NOT NULL DEFAULT '',
  loaded_at INTEGER NOT NULL,
  PRIMARY KEY (score_set, position)
);

CREATE TABLE IF NOT EXISTS leaderboard_entries (
  slug TEXT NOT NULL,
  score_set_slug TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  tags_json TEXT NOT NULL DEFAULT '[]',
  total_score REAL NOT NULL DEFAULT 0,
  breakdown_json TEXT NOT NULL DEFAULT '[]',
  municipality TEXT NOT NULL DEFAULT '',
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (slug, score_set_slug)
);

CREATE INDEX IF NOT EXISTS idx_leaderboard_rank ON leaderboard_entries (score_set_slug, total_score DESC, slug);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS score_rows (
  score_set TEXT NOT NULL,
  position INTEGER NOT NULL,
  batch_id TEXT NOT NULL,
  application_id TEXT NOT NULL DEFAULT '',
  application_slug TEXT NOT NULL DEFAULT '',
  application_title TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  reviewer_email TEXT NOT NULL DEFAULT '',
  reviewer_first TEXT NOT NULL DEFAULT '',
  reviewer_last TEXT NOT NULL DEFAULT '',
  scoring_criterion TEXT NOT NULL DEFAULT '',
  score DOUBLE PRECISION NOT NULL DEFAULT 0,
  max_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  weighted_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  weighted_max_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  score_set_name TEXT NOT NULL DEFAULT '',
  score_set_slug TEXT NOT NULL DEFAULT '',
  applicant_first TEXT NOT NULL DEFAULT '',
  applicant_last TEXT NOT NULL DEFAULT '',
  applicant_email TEXT NOT NULL DEFAULT '',
  loaded_at BIGINT NOT NULL,
  PRIMARY KEY (score_set, position)
);

CREATE TABLE IF NOT EXISTS leaderboard_entries (
  slug TEXT NOT NULL,
  score_set_slug TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  tags_json TEXT NOT NULL DEFAULT '[]',
  total_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  breakdown_json TEXT NOT NULL DEFAULT '[]',
  municipality TEXT NOT NULL DEFAULT '',
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (slug, score_set_slug)
);

CREATE INDEX IF NOT EXISTS idx_leaderboard_rank ON leaderboard_entries (score_set_slug, total_score DESC, slug);
`

package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

// Database is the Postgres-backed store for ledger, streak, and insight records
type Database struct {
	db *sql.DB
}

// New opens a Postgres connection and initializes the schema
func New(databaseURL string) (*Database, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &Database{db: db}
	if err := d.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return d, nil
}

// NewFromDB wraps an existing connection (used by tests)
func NewFromDB(db *sql.DB) (*Database, error) {
	d := &Database{db: db}
	if err := d.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return d, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// DB exposes the underlying connection for collaborators that persist
// their own tables (the logging manager).
func (d *Database) DB() *sql.DB {
	return d.db
}

// initSchema creates the tables
func (d *Database) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS progress_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		exercise_id TEXT NOT NULL,
		body_area TEXT NOT NULL,
		completed_at TIMESTAMP NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		difficulty_level TEXT NOT NULL,
		session_notes TEXT,
		mood INTEGER,
		energy_level INTEGER,
		biometrics_json TEXT
	);

	CREATE TABLE IF NOT EXISTS streaks (
		user_id TEXT NOT NULL,
		streak_type TEXT NOT NULL,
		current_count INTEGER NOT NULL DEFAULT 0,
		best_count INTEGER NOT NULL DEFAULT 0,
		last_activity_date TIMESTAMP NOT NULL,
		started_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, streak_type)
	);

	CREATE TABLE IF NOT EXISTS insights (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		insight_type TEXT NOT NULL,
		content_json TEXT NOT NULL,
		generated_at TIMESTAMP NOT NULL,
		viewed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_progress_user_completed ON progress_entries(user_id, completed_at DESC);
	CREATE INDEX IF NOT EXISTS idx_progress_user_area ON progress_entries(user_id, body_area);
	CREATE INDEX IF NOT EXISTS idx_insights_user_generated ON insights(user_id, generated_at DESC);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// rebind converts ? placeholders to $N for PostgreSQL.
func rebind(query string) string {
	n := 1
	var out strings.Builder
	for _, ch := range query {
		if ch == '?' {
			fmt.Fprintf(&out, "$%d", n)
			n++
		} else {
			out.WriteRune(ch)
		}
	}
	return out.String()
}

func sqlNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

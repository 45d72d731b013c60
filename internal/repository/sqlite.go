// Package repository implements persistence for the travel service on SQLite.
package repository

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore holds the travel database and the service's audit tables.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dsn, migrates the schema and seeds travel data into an
// empty database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := store.seed(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed database: %w", err)
	}

	return store, nil
}

// DB exposes the underlying handle for components sharing the database,
// such as the SQLite checkpoint saver.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		// Travel data
		`CREATE TABLE IF NOT EXISTS flights (
			flight_id INTEGER PRIMARY KEY,
			flight_no TEXT NOT NULL,
			scheduled_departure DATETIME NOT NULL,
			scheduled_arrival DATETIME NOT NULL,
			departure_airport TEXT NOT NULL,
			arrival_airport TEXT NOT NULL,
			status TEXT NOT NULL,
			aircraft_code TEXT NOT NULL,
			actual_departure DATETIME,
			actual_arrival DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flights_route ON flights(departure_airport, arrival_airport, scheduled_departure)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			ticket_no TEXT PRIMARY KEY,
			book_ref TEXT NOT NULL,
			passenger_id TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ticket_flights (
			ticket_no TEXT NOT NULL,
			flight_id INTEGER NOT NULL,
			fare_conditions TEXT NOT NULL,
			amount REAL NOT NULL,
			FOREIGN KEY (ticket_no) REFERENCES tickets(ticket_no),
			FOREIGN KEY (flight_id) REFERENCES flights(flight_id)
		)`,
		`CREATE TABLE IF NOT EXISTS boarding_passes (
			ticket_no TEXT NOT NULL,
			flight_id INTEGER NOT NULL,
			boarding_no INTEGER NOT NULL,
			seat_no TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS hotels (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			location TEXT NOT NULL,
			price_tier TEXT NOT NULL,
			checkin_date TEXT NOT NULL,
			checkout_date TEXT NOT NULL,
			booked INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS car_rentals (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			location TEXT NOT NULL,
			price_tier TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			booked INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS trip_recommendations (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			location TEXT NOT NULL,
			keywords TEXT NOT NULL,
			details TEXT NOT NULL,
			booked INTEGER NOT NULL DEFAULT 0
		)`,
		// Service audit
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			passenger_id TEXT NOT NULL,
			thread_id TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			error TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, ts)`,
		`CREATE TABLE IF NOT EXISTS approvals (
			approval_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			checkpoint_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			node TEXT NOT NULL,
			tool_calls TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			decided_at DATETIME,
			reason TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id),
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_approvals_session ON approvals(session_id, status)`,
		`CREATE TABLE IF NOT EXISTS tool_executions (
			thread_id TEXT NOT NULL,
			tool_call_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			step INTEGER NOT NULL,
			status TEXT NOT NULL,
			args TEXT,
			result TEXT,
			error TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at DATETIME,
			PRIMARY KEY (thread_id, tool_call_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/xiaot623/gogo/travel/internal/domain"
)

// SQLiteSaver persists checkpoints in a SQLite table so paused threads
// survive a restart.
type SQLiteSaver struct {
	db *sql.DB
}

// NewSQLiteSaver creates the checkpoints table on db if needed.
func NewSQLiteSaver(db *sql.DB) (*SQLiteSaver, error) {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			checkpoint_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			parent_id TEXT,
			step INTEGER NOT NULL,
			state TEXT NOT NULL,
			next_node TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (thread_id, step)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_thread ON checkpoints(thread_id, step)`,
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return nil, fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return &SQLiteSaver{db: db}, nil
}

// Put inserts cp. The insert fails when cp.Step is not above the thread's
// latest step.
func (s *SQLiteSaver) Put(ctx context.Context, cp *domain.Checkpoint) error {
	if cp == nil || cp.ThreadID == "" {
		return fmt.Errorf("checkpoint with thread id is required")
	}
	state, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (checkpoint_id, thread_id, parent_id, step, state, next_node, created_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?
		 WHERE NOT EXISTS (SELECT 1 FROM checkpoints WHERE thread_id = ? AND step >= ?)`,
		cp.ID, cp.ThreadID, nullString(cp.ParentID), cp.Step, string(state), nullString(cp.Next), cp.CreatedAt,
		cp.ThreadID, cp.Step)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %v", ErrStepConflict, err)
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: thread %s, step %d", ErrStepConflict, cp.ThreadID, cp.Step)
	}
	return nil
}

// Get returns the latest checkpoint of a thread, or nil.
func (s *SQLiteSaver) Get(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	rows, err := s.query(ctx, threadID, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// List returns up to limit checkpoints, newest first.
func (s *SQLiteSaver) List(ctx context.Context, threadID string, limit int) ([]*domain.Checkpoint, error) {
	return s.query(ctx, threadID, limit)
}

// Delete removes every checkpoint of a thread.
func (s *SQLiteSaver) Delete(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID)
	return err
}

func (s *SQLiteSaver) query(ctx context.Context, threadID string, limit int) ([]*domain.Checkpoint, error) {
	query := `SELECT checkpoint_id, thread_id, parent_id, step, state, next_node, created_at
		FROM checkpoints WHERE thread_id = ? ORDER BY step DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Checkpoint
	for rows.Next() {
		var cp domain.Checkpoint
		var parentID, next sql.NullString
		var state string
		if err := rows.Scan(&cp.ID, &cp.ThreadID, &parentID, &cp.Step, &state, &next, &cp.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(state), &cp.State); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state of checkpoint %s: %w", cp.ID, err)
		}
		cp.ParentID = parentID.String
		cp.Next = next.String
		out = append(out, &cp)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/gogo/travel/internal/domain"
)

// CreateSession creates a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, passenger_id, thread_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		session.SessionID, session.UserID, session.PassengerID, session.ThreadID, session.CreatedAt)
	return err
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, passenger_id, thread_id, created_at FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&session.SessionID, &session.UserID, &session.PassengerID, &session.ThreadID, &session.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateRun creates a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, session_id, kind, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.SessionID, run.Kind, run.Status, run.StartedAt)
	return err
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	var run domain.Run
	var errData sql.NullString
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, session_id, kind, status, started_at, ended_at, error FROM runs WHERE run_id = ?`,
		runID).Scan(&run.RunID, &run.SessionID, &run.Kind, &run.Status, &run.StartedAt, &endedAt, &errData)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	if errData.Valid {
		run.Error = json.RawMessage(errData.String)
	}
	return &run, nil
}

// UpdateRunStatus updates the status of a run.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ? WHERE run_id = ?`,
		status, runID)
	return err
}

// UpdateRunCompleted moves a run to a terminal state.
func (s *SQLiteStore) UpdateRunCompleted(ctx context.Context, runID string, status domain.RunStatus, errData []byte) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, ended_at = ?, error = ? WHERE run_id = ?`,
		status, time.Now(), nullStringBytes(errData), runID)
	return err
}

// ListRuns returns the runs of a session, oldest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, sessionID string) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, session_id, kind, status, started_at, ended_at, error FROM runs WHERE session_id = ? ORDER BY started_at ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Run
	for rows.Next() {
		var run domain.Run
		var errData sql.NullString
		var endedAt sql.NullTime
		if err := rows.Scan(&run.RunID, &run.SessionID, &run.Kind, &run.Status, &run.StartedAt, &endedAt, &errData); err != nil {
			return nil, err
		}
		if endedAt.Valid {
			run.EndedAt = &endedAt.Time
		}
		if errData.Valid {
			run.Error = json.RawMessage(errData.String)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// CreateEvent creates a new event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, run_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.RunID, event.Ts, event.Type, nullStringBytes(event.Payload))
	return err
}

// GetEvents retrieves events for a run after afterTs, optionally filtered by type.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, run_id, ts, type, payload FROM events WHERE run_id = ? AND ts > ?`
	args := []interface{}{runID, afterTs}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += fmt.Sprintf(" AND type IN (%s)", strings.Join(placeholders, ","))
	}

	query += ` ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.RunID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CreateApproval creates a new approval.
func (s *SQLiteStore) CreateApproval(ctx context.Context, approval *domain.Approval) error {
	calls, err := json.Marshal(approval.ToolCalls)
	if err != nil {
		return fmt.Errorf("failed to marshal tool calls: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO approvals (approval_id, session_id, run_id, checkpoint_id, step, node, tool_calls, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		approval.ApprovalID, approval.SessionID, approval.RunID, approval.CheckpointID, approval.Step, approval.Node, string(calls), approval.Status, approval.CreatedAt)
	return err
}

const approvalColumns = `approval_id, session_id, run_id, checkpoint_id, step, node, tool_calls, status, created_at, decided_at, reason`

// GetApproval retrieves an approval by ID.
func (s *SQLiteStore) GetApproval(ctx context.Context, approvalID string) (*domain.Approval, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE approval_id = ?`, approvalID)
	return scanApproval(row)
}

// GetPendingApproval returns the newest pending approval of a session, or nil.
func (s *SQLiteStore) GetPendingApproval(ctx context.Context, sessionID string) (*domain.Approval, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE session_id = ? AND status = ? ORDER BY step DESC LIMIT 1`,
		sessionID, domain.ApprovalStatusPending)
	return scanApproval(row)
}

// DecideApproval moves a pending approval to status. It reports false when
// the approval was already decided, which makes the decision at-most-once.
func (s *SQLiteStore) DecideApproval(ctx context.Context, approvalID string, status domain.ApprovalStatus, reason string) (bool, error) {
	return s.execAffected(ctx,
		`UPDATE approvals SET status = ?, decided_at = ?, reason = ? WHERE approval_id = ? AND status = ?`,
		status, time.Now(), nullString(reason), approvalID, domain.ApprovalStatusPending)
}

// ReopenApproval moves a decided approval back to pending after the decision
// could not be carried out. It reports false when the approval was pending.
func (s *SQLiteStore) ReopenApproval(ctx context.Context, approvalID string) (bool, error) {
	return s.execAffected(ctx,
		`UPDATE approvals SET status = ?, decided_at = NULL, reason = NULL WHERE approval_id = ? AND status != ?`,
		domain.ApprovalStatusPending, approvalID, domain.ApprovalStatusPending)
}

func scanApproval(sc scanner) (*domain.Approval, error) {
	var ap domain.Approval
	var calls string
	var decidedAt sql.NullTime
	var reason sql.NullString
	err := sc.Scan(&ap.ApprovalID, &ap.SessionID, &ap.RunID, &ap.CheckpointID, &ap.Step, &ap.Node, &calls,
		&ap.Status, &ap.CreatedAt, &decidedAt, &reason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(calls), &ap.ToolCalls); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool calls: %w", err)
	}
	if decidedAt.Valid {
		ap.DecidedAt = &decidedAt.Time
	}
	ap.Reason = reason.String
	return &ap, nil
}

// BeginToolExecution claims a tool call for execution. When the call was
// claimed before, the existing ledger row is returned with started=false and
// the caller must not execute the tool again.
func (s *SQLiteStore) BeginToolExecution(ctx context.Context, exec *domain.ToolExecution) (existing *domain.ToolExecution, started bool, err error) {
	started, err = s.execAffected(ctx,
		`INSERT OR IGNORE INTO tool_executions (thread_id, tool_call_id, tool_name, step, status, args, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		exec.ThreadID, exec.ToolCallID, exec.ToolName, exec.Step, domain.ToolExecutionRunning, nullStringBytes(exec.Args), exec.CreatedAt)
	if err != nil || started {
		return nil, started, err
	}
	existing, err = s.GetToolExecution(ctx, exec.ThreadID, exec.ToolCallID)
	return existing, false, err
}

// CompleteToolExecution records the outcome of a claimed tool call.
func (s *SQLiteStore) CompleteToolExecution(ctx context.Context, threadID, toolCallID string, status domain.ToolExecutionStatus, result, errMsg string) (bool, error) {
	return s.execAffected(ctx,
		`UPDATE tool_executions SET status = ?, result = ?, error = ?, completed_at = ? WHERE thread_id = ? AND tool_call_id = ? AND completed_at IS NULL`,
		status, nullString(result), nullString(errMsg), time.Now(), threadID, toolCallID)
}

// GetToolExecution retrieves a ledger row.
func (s *SQLiteStore) GetToolExecution(ctx context.Context, threadID, toolCallID string) (*domain.ToolExecution, error) {
	var te domain.ToolExecution
	var args, result, errMsg sql.NullString
	var completedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT thread_id, tool_call_id, tool_name, step, status, args, result, error, created_at, completed_at FROM tool_executions WHERE thread_id = ? AND tool_call_id = ?`,
		threadID, toolCallID).Scan(&te.ThreadID, &te.ToolCallID, &te.ToolName, &te.Step, &te.Status, &args, &result, &errMsg, &te.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if args.Valid {
		te.Args = json.RawMessage(args.String)
	}
	te.Result = result.String
	te.Error = errMsg.String
	if completedAt.Valid {
		te.CompletedAt = &completedAt.Time
	}
	return &te, nil
}

// CountToolExecutions counts completed executions of a tool on a thread.
func (s *SQLiteStore) CountToolExecutions(ctx context.Context, threadID, toolName string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tool_executions WHERE thread_id = ? AND tool_name = ? AND completed_at IS NOT NULL`,
		threadID, toolName).Scan(&n)
	return n, err
}

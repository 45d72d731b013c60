package domain

import (
	"encoding/json"
	"time"
)

// Session is one chat conversation bound to a checkpoint thread.
type Session struct {
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	PassengerID string    `json:"passenger_id"`
	ThreadID    string    `json:"thread_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Run represents a single graph invocation: a user turn or an approval resume.
type Run struct {
	RunID     string          `json:"run_id"`
	SessionID string          `json:"session_id"`
	Kind      RunKind         `json:"kind"`
	Status    RunStatus       `json:"status"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
}

// Event represents a trace event for replay.
type Event struct {
	EventID string          `json:"event_id"`
	RunID   string          `json:"run_id"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Approval records a pause before a sensitive tool node and its outcome.
type Approval struct {
	ApprovalID   string         `json:"approval_id"`
	SessionID    string         `json:"session_id"`
	RunID        string         `json:"run_id"`
	CheckpointID string         `json:"checkpoint_id"`
	Step         int64          `json:"step"`
	Node         string         `json:"node"`
	ToolCalls    []ToolCall     `json:"tool_calls"`
	Status       ApprovalStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	DecidedAt    *time.Time     `json:"decided_at,omitempty"`
	Reason       string         `json:"reason,omitempty"`
}

// ToolExecution is a ledger row guarding at-most-once tool execution per thread.
type ToolExecution struct {
	ThreadID    string              `json:"thread_id"`
	ToolCallID  string              `json:"tool_call_id"`
	ToolName    string              `json:"tool_name"`
	Step        int64               `json:"step"`
	Status      ToolExecutionStatus `json:"status"`
	Args        json.RawMessage     `json:"args,omitempty"`
	Result      string              `json:"result,omitempty"`
	Error       string              `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

package domain

// CreateSessionRequest creates a new chat session.
type CreateSessionRequest struct {
	UserID      string `json:"user_id,omitempty"`
	PassengerID string `json:"passenger_id,omitempty"`
}

// SendMessageRequest carries one user chat message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// ApprovalDecisionRequest answers a pending approval.
type ApprovalDecisionRequest struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason,omitempty"`
}

// PendingAction describes a sensitive tool call awaiting a decision.
type PendingAction struct {
	ApprovalID string     `json:"approval_id"`
	Node       string     `json:"node"`
	Dialog     string     `json:"dialog"`
	ToolCalls  []ToolCall `json:"tool_calls"`
}

// TurnResult is what a caller sees after a message or a decision.
type TurnResult struct {
	RunID   string         `json:"run_id,omitempty"`
	Status  TurnStatus     `json:"status"`
	Reply   string         `json:"reply"`
	Pending *PendingAction `json:"pending,omitempty"`
}

// StateView summarizes the latest checkpoint of a session.
type StateView struct {
	SessionID    string         `json:"session_id"`
	ThreadID     string         `json:"thread_id"`
	CheckpointID string         `json:"checkpoint_id,omitempty"`
	Step         int64          `json:"step"`
	Status       TurnStatus     `json:"status"`
	Next         string         `json:"next,omitempty"`
	DialogStack  []DialogState  `json:"dialog_stack"`
	Messages     []Message      `json:"messages"`
	Pending      *PendingAction `json:"pending,omitempty"`
}

// CheckpointSummary is one entry of a thread's checkpoint history.
type CheckpointSummary struct {
	CheckpointID string `json:"checkpoint_id"`
	Step         int64  `json:"step"`
	Next         string `json:"next,omitempty"`
	Messages     int    `json:"messages"`
	Dialog       string `json:"dialog"`
}

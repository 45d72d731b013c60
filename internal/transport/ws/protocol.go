package ws

import "github.com/xiaot623/gogo/travel/internal/domain"

// Message types from client to server
const (
	TypeHello            = "hello"
	TypeUserMessage      = "user_message"
	TypeApprovalDecision = "approval_decision"
)

// Message types from server to client
const (
	TypeHelloAck         = "hello_ack"
	TypeAssistantMessage = "assistant_message"
	TypeApprovalRequired = "approval_required"
	TypeDone             = "done"
	TypeError            = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	RunID     string `json:"run_id,omitempty"`
}

// HelloMessage binds a connection to a new or existing session.
type HelloMessage struct {
	BaseMessage
	UserID      string `json:"user_id,omitempty"`
	PassengerID string `json:"passenger_id,omitempty"`
}

// HelloAckMessage confirms the session binding.
type HelloAckMessage struct {
	BaseMessage
	PassengerID string   `json:"passenger_id"`
	Examples    []string `json:"examples,omitempty"`
}

// UserMessage carries one chat turn.
type UserMessage struct {
	BaseMessage
	Content string `json:"content"`
}

// ApprovalDecisionMessage answers a pending approval.
type ApprovalDecisionMessage struct {
	BaseMessage
	Decision string `json:"decision"` // "approve" or "deny"
	Reason   string `json:"reason,omitempty"`
}

// AssistantMessage carries the reply of a turn.
type AssistantMessage struct {
	BaseMessage
	Content string `json:"content"`
}

// ApprovalRequiredMessage announces a paused sensitive action.
type ApprovalRequiredMessage struct {
	BaseMessage
	ApprovalID string            `json:"approval_id"`
	Dialog     string            `json:"dialog,omitempty"`
	ToolCalls  []domain.ToolCall `json:"tool_calls"`
}

// DoneMessage ends a turn.
type DoneMessage struct {
	BaseMessage
	Status domain.TurnStatus `json:"status"`
}

// ErrorMessage is sent when a request cannot be served.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeSessionNotFound = "session_not_found"
	ErrorCodeApprovalPending = "approval_pending"
	ErrorCodeInternalError   = "internal_error"
)

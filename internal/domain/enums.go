// Package domain defines the core domain models for the travel service.
package domain

// Role tags the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// DialogState identifies which assistant currently owns the conversation.
type DialogState string

const (
	DialogPrimary       DialogState = "assistant"
	DialogUpdateFlight  DialogState = "update_flight"
	DialogBookCarRental DialogState = "book_car_rental"
	DialogBookHotel     DialogState = "book_hotel"
	DialogBookExcursion DialogState = "book_excursion"
)

// TurnStatus is the externally visible state of a conversation thread.
type TurnStatus string

const (
	TurnStatusRunning           TurnStatus = "RUNNING"
	TurnStatusPausedForApproval TurnStatus = "PAUSED_FOR_APPROVAL"
	TurnStatusComplete          TurnStatus = "COMPLETE"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusCreated               RunStatus = "CREATED"
	RunStatusRunning               RunStatus = "RUNNING"
	RunStatusPausedWaitingApproval RunStatus = "PAUSED_WAITING_APPROVAL"
	RunStatusDone                  RunStatus = "DONE"
	RunStatusFailed                RunStatus = "FAILED"
)

// RunKind distinguishes a user turn from an approval resume.
type RunKind string

const (
	RunKindMessage  RunKind = "message"
	RunKindApproval RunKind = "approval"
)

// EventType represents the type of an event.
type EventType string

const (
	EventTypeRunStarted       EventType = "run_started"
	EventTypeUserInput        EventType = "user_input"
	EventTypeNodeStarted      EventType = "node_started"
	EventTypeNodeDone         EventType = "node_done"
	EventTypeToolResult       EventType = "tool_result"
	EventTypeApprovalRequired EventType = "approval_required"
	EventTypeApprovalDecision EventType = "approval_decision"
	EventTypeRunDone          EventType = "run_done"
	EventTypeRunFailed        EventType = "run_failed"
)

// ApprovalStatus represents the status of an approval.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
	// ApprovalStatusSuperseded marks a pending approval whose checkpoint is
	// no longer the latest of its thread.
	ApprovalStatusSuperseded ApprovalStatus = "SUPERSEDED"
)

// Decision is the caller's answer to a pending approval.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

// ToolExecutionStatus tracks a ledger entry for a tool call.
type ToolExecutionStatus string

const (
	ToolExecutionRunning   ToolExecutionStatus = "RUNNING"
	ToolExecutionSucceeded ToolExecutionStatus = "SUCCEEDED"
	ToolExecutionFailed    ToolExecutionStatus = "FAILED"
)

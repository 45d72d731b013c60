package domain

import "errors"

var (
	// ErrOrchestration marks output of the graph that has an unexpected shape.
	ErrOrchestration = errors.New("orchestration error")
	// ErrNoPendingApproval is returned when a decision arrives for a session
	// that is not paused.
	ErrNoPendingApproval = errors.New("no pending approval")
	// ErrApprovalPending is returned when a new message arrives while the
	// session still waits for a decision.
	ErrApprovalPending = errors.New("approval pending")
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidDecision is returned for decisions other than approve or deny.
	ErrInvalidDecision = errors.New("invalid decision")
	// ErrInvalidRequest is returned for malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")
)

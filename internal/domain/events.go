package domain

// Event payloads, stored as JSON in Event.Payload.

type RunStartedPayload struct {
	SessionID string  `json:"session_id"`
	ThreadID  string  `json:"thread_id"`
	Kind      RunKind `json:"kind"`
}

type UserInputPayload struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

type NodePayload struct {
	Node       string `json:"node"`
	Kind       string `json:"kind"`
	Step       int64  `json:"step"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Dialog     string `json:"dialog,omitempty"`
	Error      string `json:"error,omitempty"`
}

type ToolResultPayload struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Step       int64  `json:"step"`
	Replayed   bool   `json:"replayed,omitempty"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
}

type ApprovalRequiredPayload struct {
	ApprovalID   string     `json:"approval_id"`
	CheckpointID string     `json:"checkpoint_id"`
	Node         string     `json:"node"`
	ToolCalls    []ToolCall `json:"tool_calls"`
}

type ApprovalDecisionPayload struct {
	ApprovalID string         `json:"approval_id"`
	Decision   ApprovalStatus `json:"decision"`
	Reason     string         `json:"reason,omitempty"`
}

type RunDonePayload struct {
	Status       TurnStatus `json:"status"`
	CheckpointID string     `json:"checkpoint_id"`
	Reply        string     `json:"reply,omitempty"`
}

type RunFailedPayload struct {
	Error string `json:"error"`
}

package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ToolCall is a structured request from a model to invoke a tool.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Message is one entry of the conversation log.
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// HasToolCalls reports whether the message requests any tool.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// NewUserMessage builds a user message with a fresh id.
func NewUserMessage(content string) Message {
	return Message{ID: newMessageID(), Role: RoleUser, Content: content}
}

// NewAssistantMessage builds an assistant message with a fresh id.
func NewAssistantMessage(content string, calls ...ToolCall) Message {
	return Message{ID: newMessageID(), Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolMessage builds a tool response bound to the originating call.
func NewToolMessage(toolCallID, toolName, content string) Message {
	return Message{
		ID:         newMessageID(),
		Role:       RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		Name:       toolName,
	}
}

func newMessageID() string {
	return "msg_" + uuid.New().String()[:8]
}

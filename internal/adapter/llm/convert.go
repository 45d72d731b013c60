package llm

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/tools"
)

// ToChatMessages renders a system prompt followed by the conversation.
func ToChatMessages(system string, msgs []domain.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, ChatMessage{Role: "system", Content: system})
	}
	for _, m := range msgs {
		cm := ChatMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args := string(tc.Args)
			if args == "" {
				args = "{}"
			}
			cm.ToolCalls = append(cm.ToolCalls, ToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: ToolCallFunction{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		out = append(out, cm)
	}
	return out
}

// ToTools declares tool definitions as OpenAI functions.
func ToTools(defs []tools.Definition) []Tool {
	out := make([]Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, Tool{
			Type: "function",
			Function: ToolFunction{
				Name:        string(d.Name),
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}

// FromChatMessage converts a model reply into an assistant message. Arguments
// that are not valid JSON are kept as a JSON string so the tool node can
// report the mistake back to the model. Calls without an id get a fresh one;
// tool results and the execution ledger are keyed by it.
func FromChatMessage(cm *ChatMessage) domain.Message {
	var calls []domain.ToolCall
	for _, tc := range cm.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		} else if !json.Valid(args) {
			quoted, _ := json.Marshal(tc.Function.Arguments)
			args = quoted
		}
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.New().String()
		}
		calls = append(calls, domain.ToolCall{ID: id, Name: tc.Function.Name, Args: args})
	}
	return domain.NewAssistantMessage(cm.Content, calls...)
}

package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/graph"
	"github.com/xiaot623/gogo/travel/internal/tools"
)

const (
	entryTemplate = "The assistant is now the %s. Reflect on the above conversation between the host assistant and the user. " +
		"The user's intent is unsatisfied. Use the provided tools to assist the user. Remember, you are %s, " +
		"and the booking, update, other other action is not complete until after you have successfully invoked the appropriate tool. " +
		"If the user changes their mind or needs help for other tasks, call the CompleteOrEscalate function to let the primary host assistant take control. " +
		"Do not mention who you are - just act as the proxy for the assistant."

	leaveMessage = "Resuming dialog with the host assistant. Please reflect on the past conversation and assist the user as needed."

	ignoredMessage = "Ignored: only one request can be handed over at a time."

	denialTemplate = "API call denied by user. Reasoning: '%s'. Continue assisting, accounting for the user's input."
)

// EntryNode returns a node that hands the dialog to a specialized assistant.
// The first tool call gets the handoff instructions; any further calls in the
// same message are answered so no call id is left open.
func EntryNode(assistantName string, dialog domain.DialogState) graph.NodeFunc {
	return func(ctx context.Context, state domain.State) (domain.Update, error) {
		last, ok := state.LastMessage()
		if !ok || !last.HasToolCalls() {
			return domain.Update{}, fmt.Errorf("%w: entering %s without a transfer call", domain.ErrOrchestration, dialog)
		}
		first := last.ToolCalls[0]
		msgs := []domain.Message{
			domain.NewToolMessage(first.ID, first.Name, fmt.Sprintf(entryTemplate, assistantName, assistantName)),
		}
		for _, tc := range last.ToolCalls[1:] {
			msgs = append(msgs, domain.NewToolMessage(tc.ID, tc.Name, ignoredMessage))
		}
		return domain.Update{Messages: msgs, Push: dialog}, nil
	}
}

// LeaveSkill pops the active frame and returns control to the primary
// assistant.
func LeaveSkill(ctx context.Context, state domain.State) (domain.Update, error) {
	update := domain.Update{Pop: true}
	if last, ok := state.LastMessage(); ok {
		for _, tc := range last.ToolCalls {
			update.Messages = append(update.Messages, domain.NewToolMessage(tc.ID, tc.Name, leaveMessage))
		}
	}
	return update, nil
}

// Executor runs tools by name.
type Executor interface {
	Execute(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// FetchUserInfo returns a node that loads the passenger's flights into the
// state so every prompt can show them.
func FetchUserInfo(exec Executor) graph.NodeFunc {
	return func(ctx context.Context, state domain.State) (domain.Update, error) {
		info, err := exec.Execute(ctx, string(tools.FetchUserFlightInformation), nil)
		if err != nil {
			return domain.Update{}, fmt.Errorf("failed to fetch user info: %w", err)
		}
		return domain.Update{UserInfo: &info}, nil
	}
}

// DenialMessages answers paused tool calls the user refused, in place of
// running them.
func DenialMessages(calls []domain.ToolCall, reason string) []domain.Message {
	msgs := make([]domain.Message, 0, len(calls))
	for _, tc := range calls {
		msgs = append(msgs, domain.NewToolMessage(tc.ID, tc.Name, fmt.Sprintf(denialTemplate, reason)))
	}
	return msgs
}

package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/travel/internal/adapter/llm"
	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/log"
	"github.com/xiaot623/gogo/travel/internal/metrics"
	"github.com/xiaot623/gogo/travel/internal/prompts"
	"github.com/xiaot623/gogo/travel/internal/tools"
)

const (
	maxReprompts = 3
	repromptText = "Respond with a real output."
)

// Assistant is a model-backed node: it renders its system prompt, offers its
// tools and appends the model's reply to the conversation.
type Assistant struct {
	name    string
	prompt  *prompts.Prompt
	client  llm.LLMClient
	model   string
	tools   []llm.Tool
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAssistant creates an assistant node named name.
func NewAssistant(name string, prompt *prompts.Prompt, client llm.LLMClient, model string, defs []tools.Definition, m *metrics.Metrics) *Assistant {
	return &Assistant{
		name:    name,
		prompt:  prompt,
		client:  client,
		model:   model,
		tools:   llm.ToTools(defs),
		metrics: m,
		now:     time.Now,
	}
}

// Run asks the model for the next message. An empty reply is retried with a
// nudge a few times before giving up.
func (a *Assistant) Run(ctx context.Context, state domain.State) (domain.Update, error) {
	system, err := a.prompt.Render(prompts.Data{UserInfo: state.UserInfo, Time: a.now()})
	if err != nil {
		return domain.Update{}, fmt.Errorf("failed to render prompt: %w", err)
	}

	messages := llm.ToChatMessages(system, state.Messages)
	for attempt := 0; attempt <= maxReprompts; attempt++ {
		resp, err := a.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
			Model:    a.model,
			Messages: messages,
			Tools:    a.tools,
		})
		a.metrics.ObserveLLM(a.name, err)
		if err != nil {
			return domain.Update{}, fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
			return domain.Update{}, fmt.Errorf("chat completion returned no message")
		}

		reply := llm.FromChatMessage(resp.Choices[0].Message)
		if reply.HasToolCalls() || reply.Content != "" {
			return domain.Update{Messages: []domain.Message{reply}}, nil
		}
		log.Debugf("assistant %s got an empty reply, re-prompting (%d/%d)", a.name, attempt+1, maxReprompts)
		messages = append(messages, llm.ChatMessage{Role: string(domain.RoleUser), Content: repromptText})
	}
	return domain.Update{}, fmt.Errorf("assistant %s produced no output after %d attempts", a.name, maxReprompts+1)
}

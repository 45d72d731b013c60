package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/graph"
	"github.com/xiaot623/gogo/travel/internal/log"
	"github.com/xiaot623/gogo/travel/internal/metrics"
)

// Ledger claims tool calls so each one runs at most once per thread.
type Ledger interface {
	BeginToolExecution(ctx context.Context, exec *domain.ToolExecution) (*domain.ToolExecution, bool, error)
	CompleteToolExecution(ctx context.Context, threadID, toolCallID string, status domain.ToolExecutionStatus, result, errMsg string) (bool, error)
}

// ToolResult describes one answered tool call.
type ToolResult struct {
	ThreadID   string
	Step       int64
	ToolCallID string
	Tool       string
	Content    string
	Err        error
	// Replayed is set when the answer came from the ledger.
	Replayed bool
	Duration time.Duration
}

// ToolObserver is told about every answered tool call.
type ToolObserver interface {
	ToolFinished(ctx context.Context, res ToolResult)
}

// ToolNode executes the tool calls of the last assistant message. Tool
// failures become corrective tool messages; the node itself only fails when
// the state has no calls to answer.
type ToolNode struct {
	exec      Executor
	ledger    Ledger
	metrics   *metrics.Metrics
	observers []ToolObserver
}

// ToolNodeOption configures a ToolNode.
type ToolNodeOption func(*ToolNode)

// WithLedger enables at-most-once execution.
func WithLedger(l Ledger) ToolNodeOption {
	return func(n *ToolNode) { n.ledger = l }
}

// WithToolMetrics records tool counters.
func WithToolMetrics(m *metrics.Metrics) ToolNodeOption {
	return func(n *ToolNode) { n.metrics = m }
}

// WithToolObserver registers an observer.
func WithToolObserver(o ToolObserver) ToolNodeOption {
	return func(n *ToolNode) { n.observers = append(n.observers, o) }
}

// NewToolNode creates a tool node over exec.
func NewToolNode(exec Executor, opts ...ToolNodeOption) *ToolNode {
	n := &ToolNode{exec: exec}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ErrorMessage is the tool reply for a failed call.
func ErrorMessage(err error) string {
	return fmt.Sprintf("Error: %v\n please fix your mistakes.", err)
}

// Run answers every pending call in order.
func (n *ToolNode) Run(ctx context.Context, state domain.State) (domain.Update, error) {
	calls := state.PendingToolCalls()
	if len(calls) == 0 {
		return domain.Update{}, fmt.Errorf("%w: tool node reached without tool calls", domain.ErrOrchestration)
	}

	threadID, step := graph.ThreadID(ctx), graph.Step(ctx)
	msgs := make([]domain.Message, 0, len(calls))
	for _, tc := range calls {
		res := n.call(ctx, threadID, step, tc)
		content := res.Content
		if res.Err != nil {
			content = ErrorMessage(res.Err)
		}
		msgs = append(msgs, domain.NewToolMessage(tc.ID, tc.Name, content))

		for _, o := range n.observers {
			o.ToolFinished(ctx, res)
		}
	}
	return domain.Update{Messages: msgs}, nil
}

func (n *ToolNode) call(ctx context.Context, threadID string, step int64, tc domain.ToolCall) ToolResult {
	res := ToolResult{ThreadID: threadID, Step: step, ToolCallID: tc.ID, Tool: tc.Name}

	if n.ledger != nil && threadID != "" {
		prior, started, err := n.ledger.BeginToolExecution(ctx, &domain.ToolExecution{
			ThreadID:   threadID,
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			Step:       step,
			Args:       tc.Args,
			CreatedAt:  time.Now(),
		})
		if err != nil {
			log.Errorf("tool %s (%s): failed to claim execution: %v", tc.Name, tc.ID, err)
			res.Err = fmt.Errorf("could not record the tool call, it was not executed: %w", err)
			n.metrics.ObserveTool(tc.Name, "ledger_error", 0)
			return res
		}
		if !started {
			if prior != nil && prior.ToolName != tc.Name {
				log.Errorf("tool %s (%s): call id already used by %s on thread %s", tc.Name, tc.ID, prior.ToolName, threadID)
				res.Err = fmt.Errorf("tool call id %q was already used for %s, this call was not executed", tc.ID, prior.ToolName)
				n.metrics.ObserveTool(tc.Name, "conflict", 0)
				return res
			}
			return n.replay(res, prior)
		}
	}

	start := time.Now()
	out, err := n.exec.Execute(ctx, tc.Name, tc.Args)
	res.Duration = time.Since(start)
	res.Content, res.Err = out, err

	status, errMsg := domain.ToolExecutionSucceeded, ""
	outcome := "ok"
	if err != nil {
		status, errMsg, outcome = domain.ToolExecutionFailed, err.Error(), "error"
		log.Warnf("tool %s (%s) failed: %v", tc.Name, tc.ID, err)
	}
	n.metrics.ObserveTool(tc.Name, outcome, res.Duration)

	if n.ledger != nil && threadID != "" {
		// The side effect already happened; keep the answer even if the ledger write fails.
		if _, lerr := n.ledger.CompleteToolExecution(context.WithoutCancel(ctx), threadID, tc.ID, status, out, errMsg); lerr != nil {
			log.Errorf("tool %s (%s): failed to record result: %v", tc.Name, tc.ID, lerr)
		}
	}
	return res
}

func (n *ToolNode) replay(res ToolResult, prior *domain.ToolExecution) ToolResult {
	res.Replayed = true
	n.metrics.ObserveTool(res.Tool, "replayed", 0)
	log.Infof("tool %s (%s) already executed on thread %s, replaying recorded result", res.Tool, res.ToolCallID, res.ThreadID)

	switch {
	case prior == nil || prior.CompletedAt == nil:
		res.Err = errors.New("this tool call was already started and will not be run again")
	case prior.Status == domain.ToolExecutionSucceeded:
		res.Content = prior.Result
	default:
		res.Err = errors.New(prior.Error)
	}
	return res
}

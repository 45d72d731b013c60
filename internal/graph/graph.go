// Package graph implements a small stateful scheduler over named nodes with
// static and conditional edges, interrupt-before pauses and checkpointing.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/travel/internal/domain"
)

// Virtual node names.
const (
	Start = "__start__"
	End   = "__end__"
)

// NodeKind tags what a node does. The scheduler treats all kinds alike; the
// tag is used for observation and rendering.
type NodeKind string

const (
	KindFunction  NodeKind = "function"
	KindAssistant NodeKind = "assistant"
	KindTool      NodeKind = "tool"
	KindEntry     NodeKind = "entry"
	KindExit      NodeKind = "exit"
)

// NodeFunc runs one node against the current state.
type NodeFunc func(ctx context.Context, state domain.State) (domain.Update, error)

// RouteFunc picks the next node from the state produced by a node.
type RouteFunc func(state domain.State) string

// Saver persists checkpoints keyed by thread id. Implementations must be safe
// for concurrent use by different threads.
type Saver interface {
	// Put stores a new checkpoint for cp.ThreadID.
	Put(ctx context.Context, cp *domain.Checkpoint) error
	// Get returns the latest checkpoint of a thread, or nil if there is none.
	Get(ctx context.Context, threadID string) (*domain.Checkpoint, error)
	// List returns up to limit checkpoints, newest first. limit <= 0 means all.
	List(ctx context.Context, threadID string, limit int) ([]*domain.Checkpoint, error)
	// Delete removes every checkpoint of a thread.
	Delete(ctx context.Context, threadID string) error
}

// NodeEvent describes one node execution.
type NodeEvent struct {
	ThreadID string
	Node     string
	Kind     NodeKind
	Step     int64
	Update   domain.Update
	Err      error
	Duration time.Duration
}

// Observer is notified around every node execution.
type Observer interface {
	NodeStarted(ctx context.Context, ev NodeEvent)
	NodeFinished(ctx context.Context, ev NodeEvent)
}

var (
	// ErrRecursionLimit is returned when one invocation runs too many nodes.
	ErrRecursionLimit = errors.New("graph: recursion limit reached")
	// ErrNotPaused is returned when resuming a thread with no pending node.
	ErrNotPaused = errors.New("graph: thread is not paused")
	// ErrPaused is returned when starting a new turn on a paused thread.
	ErrPaused = errors.New("graph: thread is paused awaiting input")
	// ErrStaleCheckpoint is returned when the caller resumes from a
	// checkpoint that is no longer the latest one.
	ErrStaleCheckpoint = errors.New("graph: checkpoint is not the latest")
)

// NodeError wraps a failure raised inside a node.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

type ctxKey int

const (
	threadKey ctxKey = iota
	stepKey
)

// ThreadID returns the thread id of the running invocation.
func ThreadID(ctx context.Context) string {
	v, _ := ctx.Value(threadKey).(string)
	return v
}

// Step returns the step number of the running node.
func Step(ctx context.Context) int64 {
	v, _ := ctx.Value(stepKey).(int64)
	return v
}

func withStep(ctx context.Context, threadID string, step int64) context.Context {
	ctx = context.WithValue(ctx, threadKey, threadID)
	return context.WithValue(ctx, stepKey, step)
}

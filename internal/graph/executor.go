package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/log"
)

// Graph is a compiled, executable graph. It is safe for concurrent use; calls
// for the same thread id are serialized.
type Graph struct {
	nodes           map[string]*node
	order           []string
	edges           map[string]string
	branches        map[string]*branch
	interruptBefore map[string]bool
	recursionLimit  int
	saver           Saver
	observers       []Observer

	locks sync.Map // thread id -> *sync.Mutex
}

// Result is the outcome of one invocation.
type Result struct {
	Checkpoint *domain.Checkpoint
}

// Status maps the checkpoint to the thread's externally visible state.
func (r *Result) Status() domain.TurnStatus {
	if r.Checkpoint.Paused() {
		return domain.TurnStatusPausedForApproval
	}
	return domain.TurnStatusComplete
}

// State returns the state stored by the final checkpoint.
func (r *Result) State() domain.State {
	return r.Checkpoint.State
}

// Next returns the paused node, or "" when the turn completed.
func (r *Result) Next() string {
	return r.Checkpoint.Next
}

// Invoke starts a new turn on a thread: input messages are appended to the
// stored state and execution begins at Start.
func (g *Graph) Invoke(ctx context.Context, threadID string, input ...domain.Message) (*Result, error) {
	unlock := g.lock(threadID)
	defer unlock()

	parent, err := g.saver.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if parent.Paused() {
		return nil, ErrPaused
	}

	var state domain.State
	if parent != nil {
		state = parent.State
	}
	state = state.Apply(domain.Update{Messages: input})

	first, err := g.successor(Start, state)
	if err != nil {
		return nil, err
	}
	return g.run(ctx, threadID, parent, state, first, false)
}

// Resume continues a paused thread. checkpointID, when non-empty, must name
// the latest checkpoint; otherwise ErrStaleCheckpoint is returned and nothing
// runs.
//
// With no input the paused node runs. With input the messages are appended in
// place of running the paused node and execution continues at its static
// successor.
func (g *Graph) Resume(ctx context.Context, threadID, checkpointID string, input ...domain.Message) (*Result, error) {
	unlock := g.lock(threadID)
	defer unlock()

	parent, err := g.saver.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if !parent.Paused() {
		return nil, ErrNotPaused
	}
	if checkpointID != "" && parent.ID != checkpointID {
		return nil, ErrStaleCheckpoint
	}

	if len(input) == 0 {
		return g.run(ctx, threadID, parent, parent.State, parent.Next, true)
	}

	state := parent.State.Apply(domain.Update{Messages: input})
	next, err := g.successor(parent.Next, state)
	if err != nil {
		return nil, err
	}
	return g.run(ctx, threadID, parent, state, next, false)
}

// GetState returns the latest checkpoint of a thread, or nil.
func (g *Graph) GetState(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	return g.saver.Get(ctx, threadID)
}

// History returns up to limit checkpoints of a thread, newest first.
func (g *Graph) History(ctx context.Context, threadID string, limit int) ([]*domain.Checkpoint, error) {
	return g.saver.List(ctx, threadID, limit)
}

// InterruptBefore reports whether the graph pauses before node.
func (g *Graph) InterruptBefore(node string) bool {
	return g.interruptBefore[node]
}

func (g *Graph) run(ctx context.Context, threadID string, parent *domain.Checkpoint, state domain.State, current string, resumed bool) (*Result, error) {
	var step int64
	if parent != nil {
		step = parent.Step
	}

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if current == End {
			return g.save(ctx, threadID, parent, step, state, "")
		}
		if g.interruptBefore[current] && !(resumed && i == 0) {
			return g.save(ctx, threadID, parent, step, state, current)
		}
		if i >= g.recursionLimit {
			g.saveAfterFailure(ctx, threadID, parent, step, state)
			return nil, fmt.Errorf("%w (%d steps)", ErrRecursionLimit, g.recursionLimit)
		}

		n := g.nodes[current]
		step++
		update, err := g.exec(withStep(ctx, threadID, step), threadID, n, step, state)
		if err != nil {
			g.saveAfterFailure(ctx, threadID, parent, step, state)
			return nil, &NodeError{Node: n.name, Err: err}
		}
		state = state.Apply(update)

		next, err := g.successor(current, state)
		if err != nil {
			g.saveAfterFailure(ctx, threadID, parent, step, state)
			return nil, err
		}
		current = next
	}
}

func (g *Graph) exec(ctx context.Context, threadID string, n *node, step int64, state domain.State) (domain.Update, error) {
	ev := NodeEvent{ThreadID: threadID, Node: n.name, Kind: n.kind, Step: step}
	for _, o := range g.observers {
		o.NodeStarted(ctx, ev)
	}

	start := time.Now()
	update, err := n.fn(ctx, state)

	ev.Update = update
	ev.Err = err
	ev.Duration = time.Since(start)
	for _, o := range g.observers {
		o.NodeFinished(ctx, ev)
	}
	return update, err
}

func (g *Graph) successor(from string, state domain.State) (string, error) {
	if to, ok := g.edges[from]; ok {
		return to, nil
	}
	br, ok := g.branches[from]
	if !ok {
		return "", fmt.Errorf("%w: node %s has no outgoing transition", domain.ErrOrchestration, from)
	}
	to := br.route(state)
	if to != End && g.nodes[to] == nil {
		return "", fmt.Errorf("%w: node %s routed to unknown node %q", domain.ErrOrchestration, from, to)
	}
	if br.targets != nil && !br.targets[to] {
		return "", fmt.Errorf("%w: node %s routed to undeclared target %q", domain.ErrOrchestration, from, to)
	}
	return to, nil
}

func (g *Graph) save(ctx context.Context, threadID string, parent *domain.Checkpoint, step int64, state domain.State, next string) (*Result, error) {
	cp := &domain.Checkpoint{
		ThreadID:  threadID,
		ID:        uuid.New().String(),
		Step:      step + 1,
		State:     state.Clone(),
		Next:      next,
		CreatedAt: time.Now(),
	}
	if parent != nil {
		cp.ParentID = parent.ID
	}
	if err := g.saver.Put(ctx, cp); err != nil {
		return nil, fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return &Result{Checkpoint: cp}, nil
}

// saveAfterFailure keeps what the turn produced before the failure so the
// thread stays usable. The checkpoint is never paused.
func (g *Graph) saveAfterFailure(ctx context.Context, threadID string, parent *domain.Checkpoint, step int64, state domain.State) {
	if _, err := g.save(context.WithoutCancel(ctx), threadID, parent, step, state, ""); err != nil {
		log.Errorf("thread %s: failed to save state after failure at step %d: %v", threadID, step, err)
	}
}

func (g *Graph) lock(threadID string) func() {
	v, _ := g.locks.LoadOrStore(threadID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

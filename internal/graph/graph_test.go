package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xiaot623/gogo/travel/internal/checkpoint"
	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/log"
)

func say(text string) NodeFunc {
	return func(ctx context.Context, state domain.State) (domain.Update, error) {
		return domain.Update{Messages: []domain.Message{domain.NewAssistantMessage(text)}}, nil
	}
}

func lastContent(s domain.State) string {
	m, _ := s.LastMessage()
	return m.Content
}

// approvalGraph: start -> plan -> (danger | End), danger -> review -> End.
// danger is guarded by an interrupt.
func approvalGraph(t *testing.T, executed *int32, opts ...Option) *Graph {
	t.Helper()
	b := NewBuilder().
		AddNode("plan", KindAssistant, say("planning")).
		AddNode("danger", KindTool, func(ctx context.Context, state domain.State) (domain.Update, error) {
			atomic.AddInt32(executed, 1)
			return domain.Update{Messages: []domain.Message{domain.NewToolMessage("c1", "danger", "done")}}, nil
		}).
		AddNode("review", KindAssistant, func(ctx context.Context, state domain.State) (domain.Update, error) {
			return domain.Update{Messages: []domain.Message{domain.NewAssistantMessage("reviewed: " + lastContent(state))}}, nil
		}).
		AddEdge(Start, "plan").
		AddConditionalEdges("plan", func(state domain.State) string {
			for _, m := range state.Messages {
				if m.Role == domain.RoleUser && strings.Contains(m.Content, "danger") {
					return "danger"
				}
			}
			return End
		}, "danger", End).
		AddEdge("danger", "review").
		AddEdge("review", End)

	all := append([]Option{WithSaver(checkpoint.NewMemorySaver()), WithInterruptBefore("danger")}, opts...)
	g, err := b.Compile(all...)
	require.NoError(t, err)
	return g
}

func TestCompileAggregatesErrors(t *testing.T) {
	_, err := NewBuilder().
		AddNode("a", KindFunction, say("a")).
		AddNode("a", KindFunction, say("again")).
		AddNode(End, KindFunction, say("reserved")).
		AddNode("b", KindFunction, say("b")).
		AddEdge("a", "missing").
		Compile(WithInterruptBefore("ghost"))

	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "already registered")
	assert.Contains(t, msg, "invalid node name")
	assert.Contains(t, msg, "checkpoint saver is required")
	assert.Contains(t, msg, "no transition from __start__")
	assert.Contains(t, msg, "node b: no outgoing transition")
	assert.Contains(t, msg, "unknown node missing")
	assert.Contains(t, msg, "interrupt before unknown node ghost")
}

func TestInvokeRunsToCompletion(t *testing.T) {
	var executed int32
	g := approvalGraph(t, &executed)
	ctx := context.Background()

	res, err := g.Invoke(ctx, "t1", domain.NewUserMessage("hello"))
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusComplete, res.Status())
	assert.Equal(t, "planning", lastContent(res.State()))
	assert.Len(t, res.State().Messages, 2)
	assert.Zero(t, atomic.LoadInt32(&executed))

	// A second turn builds on the stored state.
	res, err = g.Invoke(ctx, "t1", domain.NewUserMessage("again"))
	require.NoError(t, err)
	assert.Len(t, res.State().Messages, 4)
}

func TestInterruptBeforePausesAndApproveRunsOnce(t *testing.T) {
	var executed int32
	g := approvalGraph(t, &executed)
	ctx := context.Background()

	res, err := g.Invoke(ctx, "t1", domain.NewUserMessage("do the danger thing"))
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusPausedForApproval, res.Status())
	assert.Equal(t, "danger", res.Next())
	assert.Zero(t, atomic.LoadInt32(&executed))

	stored, err := g.GetState(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, res.Checkpoint.ID, stored.ID)

	_, err = g.Invoke(ctx, "t1", domain.NewUserMessage("ignored"))
	assert.ErrorIs(t, err, ErrPaused)

	resumed, err := g.Resume(ctx, "t1", res.Checkpoint.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusComplete, resumed.Status())
	assert.Equal(t, int32(1), atomic.LoadInt32(&executed))
	assert.Equal(t, "reviewed: done", lastContent(resumed.State()))
	assert.Greater(t, resumed.Checkpoint.Step, res.Checkpoint.Step)

	// Resuming the same pause again must not run the node.
	_, err = g.Resume(ctx, "t1", res.Checkpoint.ID)
	assert.ErrorIs(t, err, ErrNotPaused)
	assert.Equal(t, int32(1), atomic.LoadInt32(&executed))
}

func TestResumeWithInputSkipsPausedNode(t *testing.T) {
	var executed int32
	g := approvalGraph(t, &executed)
	ctx := context.Background()

	res, err := g.Invoke(ctx, "t1", domain.NewUserMessage("danger please"))
	require.NoError(t, err)
	require.True(t, res.Checkpoint.Paused())

	denial := domain.NewToolMessage("c1", "danger", "denied by user")
	resumed, err := g.Resume(ctx, "t1", res.Checkpoint.ID, denial)
	require.NoError(t, err)

	assert.Zero(t, atomic.LoadInt32(&executed))
	assert.Equal(t, domain.TurnStatusComplete, resumed.Status())
	assert.Equal(t, "reviewed: denied by user", lastContent(resumed.State()))
}

func TestResumeStaleCheckpoint(t *testing.T) {
	var executed int32
	g := approvalGraph(t, &executed)
	ctx := context.Background()

	res, err := g.Invoke(ctx, "t1", domain.NewUserMessage("danger"))
	require.NoError(t, err)

	_, err = g.Resume(ctx, "t1", "not-the-latest")
	assert.ErrorIs(t, err, ErrStaleCheckpoint)
	assert.Zero(t, atomic.LoadInt32(&executed))

	_, err = g.Resume(ctx, "other-thread", res.Checkpoint.ID)
	assert.ErrorIs(t, err, ErrNotPaused)
}

func TestConcurrentResumeExecutesOnce(t *testing.T) {
	var executed int32
	g := approvalGraph(t, &executed)
	ctx := context.Background()

	res, err := g.Invoke(ctx, "t1", domain.NewUserMessage("danger"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var succeeded int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Resume(ctx, "t1", res.Checkpoint.ID); err == nil {
				atomic.AddInt32(&succeeded, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&succeeded))
	assert.Equal(t, int32(1), atomic.LoadInt32(&executed))
}

func TestThreadsAreIsolated(t *testing.T) {
	var executed int32
	g := approvalGraph(t, &executed)
	ctx := context.Background()

	paused, err := g.Invoke(ctx, "a", domain.NewUserMessage("danger"))
	require.NoError(t, err)
	assert.True(t, paused.Checkpoint.Paused())

	done, err := g.Invoke(ctx, "b", domain.NewUserMessage("hi"))
	require.NoError(t, err)
	assert.False(t, done.Checkpoint.Paused())

	stillPaused, err := g.GetState(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "danger", stillPaused.Next)
}

func TestRecursionLimit(t *testing.T) {
	g, err := NewBuilder().
		AddNode("loop", KindFunction, say("again")).
		AddEdge(Start, "loop").
		AddEdge("loop", "loop").
		Compile(WithSaver(checkpoint.NewMemorySaver()), WithRecursionLimit(5))
	require.NoError(t, err)

	_, err = g.Invoke(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrRecursionLimit)

	// The thread is left unpaused and usable.
	cp, err := g.GetState(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, cp.Paused())
	assert.Len(t, cp.State.Messages, 5)
}

func TestNodeErrorKeepsPriorState(t *testing.T) {
	boom := errors.New("model unavailable")
	g, err := NewBuilder().
		AddNode("first", KindFunction, say("one")).
		AddNode("fail", KindAssistant, func(ctx context.Context, state domain.State) (domain.Update, error) {
			return domain.Update{}, boom
		}).
		AddEdge(Start, "first").
		AddEdge("first", "fail").
		AddEdge("fail", End).
		Compile(WithSaver(checkpoint.NewMemorySaver()))
	require.NoError(t, err)

	_, err = g.Invoke(context.Background(), "t1", domain.NewUserMessage("hi"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "fail", nodeErr.Node)

	cp, err := g.GetState(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "one", lastContent(cp.State))
}

// brokenSaver fails every write.
type brokenSaver struct {
	*checkpoint.MemorySaver
}

func (brokenSaver) Put(ctx context.Context, cp *domain.Checkpoint) error {
	return errors.New("disk full")
}

func TestFailedSaveAfterNodeErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	prev := log.Default
	log.Default = zap.New(core).Sugar()
	t.Cleanup(func() { log.Default = prev })

	boom := errors.New("model unavailable")
	g, err := NewBuilder().
		AddNode("fail", KindAssistant, func(ctx context.Context, state domain.State) (domain.Update, error) {
			return domain.Update{}, boom
		}).
		AddEdge(Start, "fail").
		AddEdge("fail", End).
		Compile(WithSaver(brokenSaver{checkpoint.NewMemorySaver()}))
	require.NoError(t, err)

	_, err = g.Invoke(context.Background(), "t1", domain.NewUserMessage("hi"))
	assert.ErrorIs(t, err, boom)

	entries := logs.FilterMessageSnippet("failed to save state after failure").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "thread t1")
	assert.Contains(t, entries[0].Message, "disk full")
}

func TestUndeclaredRouteIsOrchestrationError(t *testing.T) {
	g, err := NewBuilder().
		AddNode("a", KindFunction, say("a")).
		AddNode("b", KindFunction, say("b")).
		AddEdge(Start, "a").
		AddConditionalEdges("a", func(domain.State) string { return "b" }, End).
		AddEdge("b", End).
		Compile(WithSaver(checkpoint.NewMemorySaver()))
	require.NoError(t, err)

	_, err = g.Invoke(context.Background(), "t1")
	assert.ErrorIs(t, err, domain.ErrOrchestration)
}

type recordingObserver struct {
	mu    sync.Mutex
	nodes []string
	steps []int64
}

func (r *recordingObserver) NodeStarted(ctx context.Context, ev NodeEvent) {}

func (r *recordingObserver) NodeFinished(ctx context.Context, ev NodeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append(r.nodes, ev.Node)
	r.steps = append(r.steps, Step(ctx))
}

func TestObserverSeesEveryNode(t *testing.T) {
	var executed int32
	obs := &recordingObserver{}
	g := approvalGraph(t, &executed, WithObserver(obs))
	ctx := context.Background()

	res, err := g.Invoke(ctx, "t1", domain.NewUserMessage("danger"))
	require.NoError(t, err)
	_, err = g.Resume(ctx, "t1", res.Checkpoint.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"plan", "danger", "review"}, obs.nodes)
	for i := 1; i < len(obs.steps); i++ {
		assert.Greater(t, obs.steps[i], obs.steps[i-1])
	}
}

func TestMermaid(t *testing.T) {
	var executed int32
	g := approvalGraph(t, &executed)
	out := g.Mermaid()
	assert.Contains(t, out, "__start__ --> plan;")
	assert.Contains(t, out, "plan -.-> danger;")
	assert.Contains(t, out, "danger(danger ⏸);")
	assert.Contains(t, out, "review --> __end__;")
}

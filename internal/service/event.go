package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/travel/internal/assistant"
	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/graph"
	"github.com/xiaot623/gogo/travel/internal/log"
	"github.com/xiaot623/gogo/travel/internal/metrics"
)

type runIDKey struct{}

func withRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run a graph execution belongs to.
func RunID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey{}).(string)
	return v
}

// recordEvent records an event to the store.
func recordEvent(ctx context.Context, store EventStore, runID string, eventType domain.EventType, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &domain.Event{
		EventID: "evt_" + uuid.New().String()[:8],
		RunID:   runID,
		Ts:      time.Now().UnixMilli(),
		Type:    eventType,
		Payload: payloadBytes,
	}

	return store.CreateEvent(context.WithoutCancel(ctx), event)
}

func (s *Service) recordEvent(ctx context.Context, runID string, eventType domain.EventType, payload interface{}) {
	if err := recordEvent(ctx, s.store, runID, eventType, payload); err != nil {
		log.Errorf("failed to record %s event for run %s: %v", eventType, runID, err)
	}
}

// Recorder turns graph and tool callbacks into run events and metrics. The
// run is taken from the context the service invokes the graph with.
type Recorder struct {
	store   EventStore
	metrics *metrics.Metrics
}

var (
	_ graph.Observer         = (*Recorder)(nil)
	_ assistant.ToolObserver = (*Recorder)(nil)
)

// NewRecorder creates a recorder writing to store.
func NewRecorder(store EventStore, m *metrics.Metrics) *Recorder {
	return &Recorder{store: store, metrics: m}
}

// NodeStarted implements graph.Observer.
func (r *Recorder) NodeStarted(ctx context.Context, ev graph.NodeEvent) {
	log.Debugf("thread %s step %d: %s started", ev.ThreadID, ev.Step, ev.Node)
	r.record(ctx, domain.EventTypeNodeStarted, domain.NodePayload{
		Node: ev.Node,
		Kind: string(ev.Kind),
		Step: ev.Step,
	})
}

// NodeFinished implements graph.Observer.
func (r *Recorder) NodeFinished(ctx context.Context, ev graph.NodeEvent) {
	r.metrics.ObserveNode(ev.Node, string(ev.Kind), ev.Err, ev.Duration)

	payload := domain.NodePayload{
		Node:       ev.Node,
		Kind:       string(ev.Kind),
		Step:       ev.Step,
		DurationMs: ev.Duration.Milliseconds(),
		Dialog:     string(ev.Update.Push),
	}
	if ev.Err != nil {
		payload.Error = ev.Err.Error()
		log.Warnf("thread %s step %d: %s failed: %v", ev.ThreadID, ev.Step, ev.Node, ev.Err)
	}
	r.record(ctx, domain.EventTypeNodeDone, payload)
}

// ToolFinished implements assistant.ToolObserver.
func (r *Recorder) ToolFinished(ctx context.Context, res assistant.ToolResult) {
	payload := domain.ToolResultPayload{
		ToolCallID: res.ToolCallID,
		ToolName:   res.Tool,
		Step:       res.Step,
		Replayed:   res.Replayed,
		Result:     res.Content,
	}
	if res.Err != nil {
		payload.Error = res.Err.Error()
	}
	r.record(ctx, domain.EventTypeToolResult, payload)
}

func (r *Recorder) record(ctx context.Context, eventType domain.EventType, payload interface{}) {
	runID := RunID(ctx)
	if runID == "" {
		return
	}
	if err := recordEvent(ctx, r.store, runID, eventType, payload); err != nil {
		log.Errorf("failed to record %s event for run %s: %v", eventType, runID, err)
	}
}

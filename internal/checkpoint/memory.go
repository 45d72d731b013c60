// Package checkpoint provides graph.Saver implementations.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xiaot623/gogo/travel/internal/domain"
)

// ErrStepConflict is returned when a checkpoint does not advance the thread's
// step counter.
var ErrStepConflict = errors.New("checkpoint step does not advance thread")

// MemorySaver keeps checkpoints in process memory. State is lost on restart.
type MemorySaver struct {
	mu      sync.RWMutex
	threads map[string][]*domain.Checkpoint
}

// NewMemorySaver creates an empty in-memory saver.
func NewMemorySaver() *MemorySaver {
	return &MemorySaver{threads: make(map[string][]*domain.Checkpoint)}
}

// Put stores a copy of cp.
func (m *MemorySaver) Put(ctx context.Context, cp *domain.Checkpoint) error {
	if cp == nil || cp.ThreadID == "" {
		return fmt.Errorf("checkpoint with thread id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.threads[cp.ThreadID]
	if n := len(history); n > 0 && history[n-1].Step >= cp.Step {
		return fmt.Errorf("%w: thread %s at step %d, got %d", ErrStepConflict, cp.ThreadID, history[n-1].Step, cp.Step)
	}
	m.threads[cp.ThreadID] = append(history, clone(cp))
	return nil
}

// Get returns a copy of the latest checkpoint, or nil.
func (m *MemorySaver) Get(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.threads[threadID]
	if len(history) == 0 {
		return nil, nil
	}
	return clone(history[len(history)-1]), nil
}

// List returns copies of up to limit checkpoints, newest first.
func (m *MemorySaver) List(ctx context.Context, threadID string, limit int) ([]*domain.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.threads[threadID]
	var out []*domain.Checkpoint
	for i := len(history) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, clone(history[i]))
	}
	return out, nil
}

// Delete drops a thread.
func (m *MemorySaver) Delete(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
	return nil
}

func clone(cp *domain.Checkpoint) *domain.Checkpoint {
	out := *cp
	out.State = cp.State.Clone()
	return &out
}

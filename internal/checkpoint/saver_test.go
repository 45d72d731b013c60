package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/graph"
)

var (
	_ graph.Saver = (*MemorySaver)(nil)
	_ graph.Saver = (*SQLiteSaver)(nil)
)

func newSQLiteSaver(t *testing.T) *SQLiteSaver {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQLiteSaver(db)
	require.NoError(t, err)
	return s
}

func savers(t *testing.T) map[string]graph.Saver {
	return map[string]graph.Saver{
		"memory": NewMemorySaver(),
		"sqlite": newSQLiteSaver(t),
	}
}

func checkpointAt(thread string, step int64, next string) *domain.Checkpoint {
	return &domain.Checkpoint{
		ThreadID: thread,
		ID:       fmt.Sprintf("%s-%d", thread, step),
		Step:     step,
		State: domain.State{
			Messages:    []domain.Message{domain.NewUserMessage(fmt.Sprintf("turn %d", step))},
			DialogStack: []domain.DialogState{domain.DialogBookHotel},
		},
		Next:      next,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSaverRoundTrip(t *testing.T) {
	for name, s := range savers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := s.Get(ctx, "t1")
			require.NoError(t, err)
			assert.Nil(t, got)

			require.NoError(t, s.Put(ctx, checkpointAt("t1", 1, "")))
			require.NoError(t, s.Put(ctx, checkpointAt("t1", 2, "book_hotel_sensitive_tools")))

			got, err = s.Get(ctx, "t1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "t1-2", got.ID)
			assert.True(t, got.Paused())
			assert.Equal(t, domain.DialogBookHotel, got.State.CurrentDialog())
			assert.Equal(t, "turn 2", got.State.Messages[0].Content)

			history, err := s.List(ctx, "t1", 0)
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.Equal(t, int64(2), history[0].Step)
			assert.Equal(t, int64(1), history[1].Step)

			limited, err := s.List(ctx, "t1", 1)
			require.NoError(t, err)
			assert.Len(t, limited, 1)

			require.NoError(t, s.Delete(ctx, "t1"))
			got, err = s.Get(ctx, "t1")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestSaverRejectsNonAdvancingStep(t *testing.T) {
	for name, s := range savers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Put(ctx, checkpointAt("t1", 3, "")))

			dup := checkpointAt("t1", 3, "")
			dup.ID = "other"
			assert.ErrorIs(t, s.Put(ctx, dup), ErrStepConflict)

			older := checkpointAt("t1", 2, "")
			assert.ErrorIs(t, s.Put(ctx, older), ErrStepConflict)

			// Other threads are unaffected.
			assert.NoError(t, s.Put(ctx, checkpointAt("t2", 1, "")))
		})
	}
}

func TestMemorySaverReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySaver()
	cp := checkpointAt("t1", 1, "")
	require.NoError(t, s.Put(ctx, cp))

	cp.State.Messages[0].Content = "mutated"
	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "turn 1", got.State.Messages[0].Content)

	got.State.DialogStack[0] = domain.DialogUpdateFlight
	again, _ := s.Get(ctx, "t1")
	assert.Equal(t, domain.DialogBookHotel, again.State.DialogStack[0])
}

func TestMemorySaverConcurrentThreads(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySaver()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			thread := fmt.Sprintf("t%d", i)
			for step := int64(1); step <= 5; step++ {
				assert.NoError(t, s.Put(ctx, checkpointAt(thread, step, "")))
				_, _ = s.Get(ctx, thread)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		got, err := s.Get(ctx, fmt.Sprintf("t%d", i))
		require.NoError(t, err)
		assert.Equal(t, int64(5), got.Step)
	}
}

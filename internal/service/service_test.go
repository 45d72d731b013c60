package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/travel/internal/adapter/llm"
	"github.com/xiaot623/gogo/travel/internal/assistant"
	"github.com/xiaot623/gogo/travel/internal/checkpoint"
	"github.com/xiaot623/gogo/travel/internal/config"
	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/graph"
	"github.com/xiaot623/gogo/travel/internal/metrics"
	"github.com/xiaot623/gogo/travel/internal/prompts"
	"github.com/xiaot623/gogo/travel/internal/repository"
	"github.com/xiaot623/gogo/travel/internal/retriever"
	"github.com/xiaot623/gogo/travel/internal/testutil"
	"github.com/xiaot623/gogo/travel/internal/tools"
)

func newTestService(t *testing.T) (*Service, *repository.SQLiteStore) {
	t.Helper()
	store := testutil.NewTestSQLiteStore(t)
	set, err := prompts.Load()
	require.NoError(t, err)

	m := metrics.New()
	rec := NewRecorder(store, m)
	catalog := assistant.DefaultCatalog()
	g, err := assistant.BuildGraph(assistant.Config{
		Catalog:       catalog,
		Registry:      tools.NewTravelRegistry(store, retriever.New()),
		Prompts:       set,
		Client:        llm.NewMockClient(),
		Model:         "mock",
		Saver:         checkpoint.NewMemorySaver(),
		Ledger:        store,
		Metrics:       m,
		Observers:     []graph.Observer{rec},
		ToolObservers: []assistant.ToolObserver{rec},
	})
	require.NoError(t, err)

	cfg := &config.Config{PassengerID: repository.SeedPassengerID}
	return New(store, g, catalog, cfg, m), store
}

func newSession(t *testing.T, svc *Service) *domain.Session {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), domain.CreateSessionRequest{})
	require.NoError(t, err)
	return session
}

func send(t *testing.T, svc *Service, sessionID, text string) *domain.TurnResult {
	t.Helper()
	res, err := svc.ProcessMessage(context.Background(), sessionID, text)
	require.NoError(t, err)
	return res
}

func ticketFlight(t *testing.T, store *repository.SQLiteStore) int64 {
	t.Helper()
	id, ok, err := store.GetTicketFlightID(context.Background(), repository.SeedTicketNo)
	require.NoError(t, err)
	require.True(t, ok)
	return id
}

func eventTypes(t *testing.T, svc *Service, runID string) []domain.EventType {
	t.Helper()
	events, err := svc.GetRunEvents(context.Background(), runID, 0, nil, 0)
	require.NoError(t, err)
	out := make([]domain.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestCreateSessionDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	session := newSession(t, svc)

	assert.True(t, strings.HasPrefix(session.SessionID, "sess_"))
	assert.NotEmpty(t, session.ThreadID)
	assert.Equal(t, repository.SeedPassengerID, session.PassengerID)
	assert.Equal(t, defaultUserID, session.UserID)

	got, err := svc.GetSession(context.Background(), session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.ThreadID, got.ThreadID)

	_, err = svc.GetSession(context.Background(), "sess_missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestProcessMessageReadOnly(t *testing.T) {
	svc, _ := newTestService(t)
	session := newSession(t, svc)

	res := send(t, svc, session.SessionID, "At what time is my flight?")

	assert.Equal(t, domain.TurnStatusComplete, res.Status)
	assert.Contains(t, res.Reply, "LX0112")
	assert.Nil(t, res.Pending)

	types := eventTypes(t, svc, res.RunID)
	assert.Equal(t, domain.EventTypeRunStarted, types[0])
	assert.Contains(t, types, domain.EventTypeUserInput)
	assert.Contains(t, types, domain.EventTypeNodeStarted)
	assert.Contains(t, types, domain.EventTypeToolResult)
	assert.Equal(t, domain.EventTypeRunDone, types[len(types)-1])
	assert.NotContains(t, types, domain.EventTypeApprovalRequired)
}

func TestProcessMessageValidation(t *testing.T) {
	svc, _ := newTestService(t)
	session := newSession(t, svc)

	_, err := svc.ProcessMessage(context.Background(), session.SessionID, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.ProcessMessage(context.Background(), "sess_missing", "hi")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func pauseForFlightChange(t *testing.T, svc *Service, sessionID string) *domain.TurnResult {
	t.Helper()
	send(t, svc, sessionID, "Can I change my flight?")
	res := send(t, svc, sessionID, "Move me to flight 19251 please")
	require.Equal(t, domain.TurnStatusPausedForApproval, res.Status)
	return res
}

func TestApproveFlightChange(t *testing.T) {
	svc, store := newTestService(t)
	session := newSession(t, svc)
	ctx := context.Background()

	paused := pauseForFlightChange(t, svc, session.SessionID)
	require.NotNil(t, paused.Pending)
	assert.Equal(t, "update_flight_sensitive_tools", paused.Pending.Node)
	assert.Equal(t, string(domain.DialogUpdateFlight), paused.Pending.Dialog)
	require.Len(t, paused.Pending.ToolCalls, 1)
	assert.Equal(t, string(tools.UpdateTicketToNewFlight), paused.Pending.ToolCalls[0].Name)
	assert.True(t, strings.HasSuffix(paused.Reply, "Please approve or deny the requested action."))
	assert.Contains(t, eventTypes(t, svc, paused.RunID), domain.EventTypeApprovalRequired)

	_, err := svc.ProcessMessage(ctx, session.SessionID, "hello?")
	assert.ErrorIs(t, err, domain.ErrApprovalPending)

	view, err := svc.GetState(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusPausedForApproval, view.Status)
	assert.Equal(t, paused.Pending.ApprovalID, view.Pending.ApprovalID)

	res, err := svc.HandleApproval(ctx, session.SessionID, domain.ApprovalDecisionRequest{Decision: domain.DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusComplete, res.Status)
	assert.Contains(t, res.Reply, "Ticket successfully updated to new flight.")
	assert.Equal(t, int64(19251), ticketFlight(t, store))

	approval, err := store.GetApproval(ctx, paused.Pending.ApprovalID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusApproved, approval.Status)

	again, err := svc.HandleApproval(ctx, session.SessionID, domain.ApprovalDecisionRequest{Decision: domain.DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, "Action processed", again.Reply)

	n, err := store.CountToolExecutions(ctx, session.ThreadID, string(tools.UpdateTicketToNewFlight))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	runs, err := svc.ListRuns(ctx, session.SessionID)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, domain.RunKindApproval, runs[2].Kind)
	assert.Equal(t, domain.RunStatusDone, runs[1].Status)
}

func TestDenyFlightChange(t *testing.T) {
	svc, store := newTestService(t)
	session := newSession(t, svc)
	ctx := context.Background()

	pauseForFlightChange(t, svc, session.SessionID)

	res, err := svc.HandleApproval(ctx, session.SessionID, domain.ApprovalDecisionRequest{
		Decision: domain.DecisionDeny,
		Reason:   "wrong date",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusComplete, res.Status)
	assert.Contains(t, res.Reply, "did not go ahead")
	assert.Equal(t, int64(repository.SeedFlightID), ticketFlight(t, store))

	view, err := svc.GetState(ctx, session.SessionID)
	require.NoError(t, err)
	var denial string
	for _, m := range view.Messages {
		if m.Role == domain.RoleTool && strings.HasPrefix(m.Content, "API call denied by user.") {
			denial = m.Content
		}
	}
	assert.Contains(t, denial, "'wrong date'")

	// The session keeps working after a denial.
	next := send(t, svc, session.SessionID, "thanks, that's all")
	assert.Equal(t, domain.TurnStatusComplete, next.Status)
	view, err = svc.GetState(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Empty(t, view.DialogStack)
}

func TestConcurrentApprovalsRunToolOnce(t *testing.T) {
	svc, store := newTestService(t)
	session := newSession(t, svc)
	ctx := context.Background()

	send(t, svc, session.SessionID, "Could you book a hotel?")
	paused := send(t, svc, session.SessionID, "Book hotel 3")
	require.Equal(t, domain.TurnStatusPausedForApproval, paused.Status)

	var wg sync.WaitGroup
	replies := make([]string, 6)
	for i := range replies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.HandleApproval(ctx, session.SessionID, domain.ApprovalDecisionRequest{Decision: domain.DecisionApprove})
			if assert.NoError(t, err) {
				replies[i] = res.Reply
			}
		}(i)
	}
	wg.Wait()

	var executed int
	for _, r := range replies {
		if strings.Contains(r, "successfully booked") {
			executed++
		}
	}
	assert.Equal(t, 1, executed)

	n, err := store.CountToolExecutions(ctx, session.ThreadID, string(tools.BookHotel))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHandleApprovalEdgeCases(t *testing.T) {
	svc, _ := newTestService(t)
	session := newSession(t, svc)
	ctx := context.Background()

	_, err := svc.HandleApproval(ctx, session.SessionID, domain.ApprovalDecisionRequest{Decision: "maybe"})
	assert.ErrorIs(t, err, domain.ErrInvalidDecision)

	res, err := svc.HandleApproval(ctx, session.SessionID, domain.ApprovalDecisionRequest{Decision: domain.DecisionDeny})
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusComplete, res.Status)
	assert.Equal(t, "Action processed", res.Reply)

	_, err = svc.HandleApproval(ctx, "sess_missing", domain.ApprovalDecisionRequest{Decision: domain.DecisionApprove})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestHistory(t *testing.T) {
	svc, _ := newTestService(t)
	session := newSession(t, svc)

	send(t, svc, session.SessionID, "Could you book a hotel?")
	history, err := svc.History(context.Background(), session.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, string(domain.DialogBookHotel), history[0].Dialog)
	assert.Greater(t, history[0].Messages, 1)
}

// failingEngine fails every turn with err.
type failingEngine struct {
	err error
}

func (f failingEngine) Invoke(ctx context.Context, threadID string, input ...domain.Message) (*graph.Result, error) {
	return nil, f.err
}

func (f failingEngine) Resume(ctx context.Context, threadID, checkpointID string, input ...domain.Message) (*graph.Result, error) {
	return nil, f.err
}

func (f failingEngine) GetState(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	return nil, nil
}

func (f failingEngine) History(ctx context.Context, threadID string, limit int) ([]*domain.Checkpoint, error) {
	return nil, nil
}

func TestTurnErrorsBecomeReplies(t *testing.T) {
	store := testutil.NewTestSQLiteStore(t)
	cfg := &config.Config{PassengerID: repository.SeedPassengerID}

	tests := []struct {
		name  string
		err   error
		reply string
	}{
		{"orchestration", &graph.NodeError{Node: "enter_book_hotel", Err: domain.ErrOrchestration}, "I couldn't process your request. Please try again."},
		{"other", errors.New("model unavailable"), "An error occurred: model unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(store, failingEngine{err: tt.err}, assistant.DefaultCatalog(), cfg, nil)
			session := newSession(t, svc)

			res, err := svc.ProcessMessage(context.Background(), session.SessionID, "hi")
			require.NoError(t, err)
			assert.Equal(t, tt.reply, res.Reply)
			assert.Equal(t, domain.TurnStatusComplete, res.Status)

			run, err := store.GetRun(context.Background(), res.RunID)
			require.NoError(t, err)
			assert.Equal(t, domain.RunStatusFailed, run.Status)
			assert.Contains(t, eventTypes(t, svc, res.RunID), domain.EventTypeRunFailed)
		})
	}
}

func pauseForHotel(t *testing.T, svc *Service, sessionID string) *domain.TurnResult {
	t.Helper()
	send(t, svc, sessionID, "Could you book a hotel?")
	res := send(t, svc, sessionID, "Book hotel 3")
	require.Equal(t, domain.TurnStatusPausedForApproval, res.Status)
	return res
}

func approve(t *testing.T, svc *Service, sessionID string) *domain.TurnResult {
	t.Helper()
	res, err := svc.HandleApproval(context.Background(), sessionID, domain.ApprovalDecisionRequest{Decision: domain.DecisionApprove})
	require.NoError(t, err)
	return res
}

func hotelBookings(t *testing.T, store *repository.SQLiteStore, threadID string) int {
	t.Helper()
	n, err := store.CountToolExecutions(context.Background(), threadID, string(tools.BookHotel))
	require.NoError(t, err)
	return n
}

// cancelledResumeEngine resumes with a cancelled context.
type cancelledResumeEngine struct {
	Engine
}

func (e cancelledResumeEngine) Resume(ctx context.Context, threadID, checkpointID string, input ...domain.Message) (*graph.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	cancel()
	return e.Engine.Resume(ctx, threadID, checkpointID, input...)
}

func TestFailedResumeKeepsApprovalPending(t *testing.T) {
	svc, store := newTestService(t)
	session := newSession(t, svc)
	ctx := context.Background()
	paused := pauseForHotel(t, svc, session.SessionID)

	cancelled := New(store, cancelledResumeEngine{Engine: svc.engine}, svc.catalog, svc.config, svc.metrics)
	res := approve(t, cancelled, session.SessionID)
	assert.Equal(t, "Error processing approval: context canceled", res.Reply)
	assert.Equal(t, domain.TurnStatusPausedForApproval, res.Status)
	require.NotNil(t, res.Pending)
	assert.Equal(t, paused.Pending.ApprovalID, res.Pending.ApprovalID)
	assert.Equal(t, "book_hotel_sensitive_tools", res.Pending.Node)

	approval, err := store.GetApproval(ctx, paused.Pending.ApprovalID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusPending, approval.Status)
	assert.Nil(t, approval.DecidedAt)

	run, err := store.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)

	_, err = svc.ProcessMessage(ctx, session.SessionID, "hello?")
	assert.ErrorIs(t, err, domain.ErrApprovalPending)

	view, err := svc.GetState(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusPausedForApproval, view.Status)
	require.NotNil(t, view.Pending)
	assert.Equal(t, paused.Pending.ApprovalID, view.Pending.ApprovalID)

	done := approve(t, svc, session.SessionID)
	assert.Equal(t, domain.TurnStatusComplete, done.Status)
	assert.Contains(t, done.Reply, "successfully booked")
	assert.Equal(t, 1, hotelBookings(t, store, session.ThreadID))

	approval, err = store.GetApproval(ctx, paused.Pending.ApprovalID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusApproved, approval.Status)
}

func TestDecisionRebuildsLostApproval(t *testing.T) {
	svc, store := newTestService(t)
	session := newSession(t, svc)
	ctx := context.Background()
	paused := pauseForHotel(t, svc, session.SessionID)

	// The row was decided but the thread never moved on.
	decided, err := store.DecideApproval(ctx, paused.Pending.ApprovalID, domain.ApprovalStatusRejected, "")
	require.NoError(t, err)
	require.True(t, decided)

	view, err := svc.GetState(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusPausedForApproval, view.Status)
	require.NotNil(t, view.Pending)
	assert.Empty(t, view.Pending.ApprovalID)
	assert.Equal(t, "book_hotel_sensitive_tools", view.Pending.Node)

	res := approve(t, svc, session.SessionID)
	assert.Equal(t, domain.TurnStatusComplete, res.Status)
	assert.Contains(t, res.Reply, "successfully booked")
	assert.Equal(t, 1, hotelBookings(t, store, session.ThreadID))

	types := eventTypes(t, svc, paused.RunID)
	var required int
	for _, et := range types {
		if et == domain.EventTypeApprovalRequired {
			required++
		}
	}
	assert.Equal(t, 2, required)

	run, err := store.GetRun(ctx, paused.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusDone, run.Status)

	pending, err := store.GetPendingApproval(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Nil(t, pending)

	again := approve(t, svc, session.SessionID)
	assert.Equal(t, "Action processed", again.Reply)
	assert.Equal(t, 1, hotelBookings(t, store, session.ThreadID))
}

func TestDecisionSupersedesApprovalOfOlderCheckpoint(t *testing.T) {
	svc, store := newTestService(t)
	session := newSession(t, svc)
	ctx := context.Background()
	paused := pauseForHotel(t, svc, session.SessionID)

	_, err := store.DecideApproval(ctx, paused.Pending.ApprovalID, domain.ApprovalStatusRejected, "")
	require.NoError(t, err)
	stale := &domain.Approval{
		ApprovalID:   "ap_stale",
		SessionID:    session.SessionID,
		RunID:        paused.RunID,
		CheckpointID: "cp_gone",
		Node:         "book_hotel_sensitive_tools",
		Status:       domain.ApprovalStatusPending,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.CreateApproval(ctx, stale))

	res := approve(t, svc, session.SessionID)
	assert.Contains(t, res.Reply, "successfully booked")

	got, err := store.GetApproval(ctx, "ap_stale")
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusSuperseded, got.Status)
	assert.Equal(t, 1, hotelBookings(t, store, session.ThreadID))
}

// flakyStore fails selected writes while its flags are set.
type flakyStore struct {
	*repository.SQLiteStore
	failRuns      atomic.Bool
	failApprovals atomic.Bool
}

func (s *flakyStore) CreateRun(ctx context.Context, run *domain.Run) error {
	if s.failRuns.Load() {
		return errors.New("database is locked")
	}
	return s.SQLiteStore.CreateRun(ctx, run)
}

func (s *flakyStore) CreateApproval(ctx context.Context, approval *domain.Approval) error {
	if s.failApprovals.Load() {
		return errors.New("database is locked")
	}
	return s.SQLiteStore.CreateApproval(ctx, approval)
}

func TestRunStartFailureReopensApproval(t *testing.T) {
	base, store := newTestService(t)
	flaky := &flakyStore{SQLiteStore: store}
	svc := New(flaky, base.engine, base.catalog, base.config, base.metrics)
	session := newSession(t, svc)
	ctx := context.Background()
	paused := pauseForHotel(t, svc, session.SessionID)

	flaky.failRuns.Store(true)
	_, err := svc.HandleApproval(ctx, session.SessionID, domain.ApprovalDecisionRequest{Decision: domain.DecisionApprove})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create run")

	approval, err := store.GetApproval(ctx, paused.Pending.ApprovalID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusPending, approval.Status)
	assert.Equal(t, 0, hotelBookings(t, store, session.ThreadID))

	flaky.failRuns.Store(false)
	res := approve(t, svc, session.SessionID)
	assert.Contains(t, res.Reply, "successfully booked")
	assert.Equal(t, 1, hotelBookings(t, store, session.ThreadID))
}

func TestApprovalWriteFailureLeavesThreadPaused(t *testing.T) {
	base, store := newTestService(t)
	flaky := &flakyStore{SQLiteStore: store}
	svc := New(flaky, base.engine, base.catalog, base.config, base.metrics)
	session := newSession(t, svc)
	ctx := context.Background()

	send(t, svc, session.SessionID, "Could you book a hotel?")
	flaky.failApprovals.Store(true)
	res := send(t, svc, session.SessionID, "Book hotel 3")
	assert.Equal(t, "An error occurred: database is locked", res.Reply)
	assert.Equal(t, domain.TurnStatusPausedForApproval, res.Status)
	require.NotNil(t, res.Pending)
	assert.Empty(t, res.Pending.ApprovalID)
	assert.Equal(t, "book_hotel_sensitive_tools", res.Pending.Node)
	assert.Equal(t, string(domain.DialogBookHotel), res.Pending.Dialog)

	pending, err := store.GetPendingApproval(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Nil(t, pending)

	_, err = svc.ProcessMessage(ctx, session.SessionID, "hello?")
	assert.ErrorIs(t, err, domain.ErrApprovalPending)

	flaky.failApprovals.Store(false)
	done := approve(t, svc, session.SessionID)
	assert.Equal(t, domain.TurnStatusComplete, done.Status)
	assert.Contains(t, done.Reply, "successfully booked")
	assert.Equal(t, 1, hotelBookings(t, store, session.ThreadID))
}

// Package service runs chat turns and approvals against the travel graph and
// keeps the audit trail of sessions, runs, events and approvals.
package service

import (
	"context"
	"sync"

	"github.com/xiaot623/gogo/travel/internal/assistant"
	"github.com/xiaot623/gogo/travel/internal/config"
	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/graph"
	"github.com/xiaot623/gogo/travel/internal/metrics"
)

// Store is the persistence the service needs.
type Store interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus) error
	UpdateRunCompleted(ctx context.Context, runID string, status domain.RunStatus, errData []byte) error
	ListRuns(ctx context.Context, sessionID string) ([]domain.Run, error)

	EventStore

	CreateApproval(ctx context.Context, approval *domain.Approval) error
	GetApproval(ctx context.Context, approvalID string) (*domain.Approval, error)
	GetPendingApproval(ctx context.Context, sessionID string) (*domain.Approval, error)
	DecideApproval(ctx context.Context, approvalID string, status domain.ApprovalStatus, reason string) (bool, error)
	ReopenApproval(ctx context.Context, approvalID string) (bool, error)
}

// EventStore persists run events.
type EventStore interface {
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) ([]domain.Event, error)
}

// Engine executes conversation turns. *graph.Graph implements it.
type Engine interface {
	Invoke(ctx context.Context, threadID string, input ...domain.Message) (*graph.Result, error)
	Resume(ctx context.Context, threadID, checkpointID string, input ...domain.Message) (*graph.Result, error)
	GetState(ctx context.Context, threadID string) (*domain.Checkpoint, error)
	History(ctx context.Context, threadID string, limit int) ([]*domain.Checkpoint, error)
}

var _ Engine = (*graph.Graph)(nil)

// Service implements the chat business logic.
type Service struct {
	store   Store
	engine  Engine
	catalog assistant.Catalog
	config  *config.Config
	metrics *metrics.Metrics

	// session_id -> *sync.Mutex
	locks sync.Map
}

// New creates a service.
func New(store Store, engine Engine, catalog assistant.Catalog, cfg *config.Config, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		engine:  engine,
		catalog: catalog,
		config:  cfg,
		metrics: m,
	}
}

// lockSession serializes turns and decisions of one session.
func (s *Service) lockSession(sessionID string) func() {
	v, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Examples are sample questions offered to new users.
var Examples = []string{
	"At what time is my flight?",
	"What car rental options do I have in Basel?",
	"Could you book a hotel?",
	"Can I change my flight?",
	"Can you suggest a weekend getaway near me?",
}

package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/gogo/travel/internal/domain"
)

// GetState summarizes the latest checkpoint of a session.
func (s *Service) GetState(ctx context.Context, sessionID string) (*domain.StateView, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	cp, err := s.engine.GetState(ctx, session.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation state: %w", err)
	}

	view := &domain.StateView{
		SessionID:   session.SessionID,
		ThreadID:    session.ThreadID,
		Status:      domain.TurnStatusComplete,
		DialogStack: []domain.DialogState{},
		Messages:    []domain.Message{},
	}
	if cp == nil {
		return view, nil
	}

	view.CheckpointID = cp.ID
	view.Step = cp.Step
	view.Next = cp.Next
	if cp.State.DialogStack != nil {
		view.DialogStack = cp.State.DialogStack
	}
	if cp.State.Messages != nil {
		view.Messages = cp.State.Messages
	}
	if cp.Paused() {
		view.Status = domain.TurnStatusPausedForApproval
		approval, err := s.store.GetPendingApproval(ctx, session.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get pending approval: %w", err)
		}
		if approval != nil && approval.CheckpointID == cp.ID {
			view.Pending = s.pendingAction(approval)
		} else {
			view.Pending = s.pendingAction(&domain.Approval{Node: cp.Next, ToolCalls: cp.State.PendingToolCalls()})
		}
	}
	return view, nil
}

// History lists up to limit checkpoints of a session, newest first.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]domain.CheckpointSummary, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	cps, err := s.engine.History(ctx, session.ThreadID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	out := make([]domain.CheckpointSummary, 0, len(cps))
	for _, cp := range cps {
		out = append(out, domain.CheckpointSummary{
			CheckpointID: cp.ID,
			Step:         cp.Step,
			Next:         cp.Next,
			Messages:     len(cp.State.Messages),
			Dialog:       string(cp.State.CurrentDialog()),
		})
	}
	return out, nil
}

// GetRunEvents returns the events of a run.
func (s *Service) GetRunEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	events, err := s.store.GetEvents(ctx, runID, afterTs, types, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get run events: %w", err)
	}
	return events, nil
}

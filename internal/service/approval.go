package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/travel/internal/assistant"
	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/graph"
	"github.com/xiaot623/gogo/travel/internal/log"
)

// HandleApproval answers the pending approval of a session. Approving runs
// the paused tool node; denying answers its calls with the reason and hands
// control back to the assistant. A decision with nothing paused, or one that
// lost a race with another decision, is a no-op. A decision that could not be
// carried out leaves the approval pending so it can be answered again.
func (s *Service) HandleApproval(ctx context.Context, sessionID string, req domain.ApprovalDecisionRequest) (*domain.TurnResult, error) {
	var status domain.ApprovalStatus
	switch req.Decision {
	case domain.DecisionApprove:
		status = domain.ApprovalStatusApproved
	case domain.DecisionDeny:
		status = domain.ApprovalStatusRejected
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidDecision, req.Decision)
	}

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockSession(session.SessionID)
	defer unlock()

	cp, err := s.engine.GetState(ctx, session.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation state: %w", err)
	}
	if !cp.Paused() {
		log.Infof("session %s: %v, ignoring %s", sessionID, domain.ErrNoPendingApproval, req.Decision)
		return &domain.TurnResult{Status: domain.TurnStatusComplete, Reply: replyActionProcessed}, nil
	}

	approval, err := s.pendingApproval(ctx, session, cp)
	if err != nil {
		return nil, err
	}

	decided, err := s.store.DecideApproval(ctx, approval.ApprovalID, status, req.Reason)
	if err != nil {
		return nil, fmt.Errorf("failed to update approval status: %w", err)
	}
	if !decided {
		log.Infof("approval %s already decided, ignoring %s", approval.ApprovalID, req.Decision)
		return &domain.TurnResult{Status: domain.TurnStatusComplete, Reply: replyActionProcessed}, nil
	}

	run, err := s.startRun(ctx, session, domain.RunKindApproval)
	if err != nil {
		s.reopenApproval(ctx, session, approval)
		return nil, err
	}
	s.metrics.ObserveApproval(string(req.Decision))
	s.recordEvent(ctx, approval.RunID, domain.EventTypeApprovalDecision, domain.ApprovalDecisionPayload{
		ApprovalID: approval.ApprovalID,
		Decision:   status,
		Reason:     req.Reason,
	})

	var input []domain.Message
	if status == domain.ApprovalStatusRejected {
		input = assistant.DenialMessages(approval.ToolCalls, req.Reason)
	}
	res, err := s.engine.Resume(s.runContext(ctx, session, run), session.ThreadID, approval.CheckpointID, input...)
	switch {
	case errors.Is(err, graph.ErrNotPaused) || errors.Is(err, graph.ErrStaleCheckpoint):
		log.Warnf("approval %s no longer matches thread %s: %v", approval.ApprovalID, session.ThreadID, err)
		s.failRun(ctx, run, err)
		return &domain.TurnResult{RunID: run.RunID, Status: domain.TurnStatusComplete, Reply: replyActionProcessed}, nil
	case err != nil:
		s.reopenApproval(ctx, session, approval)
	default:
		s.completePausedRun(ctx, approval.RunID)
	}
	return s.finishRun(ctx, session, run, res, err, "Error processing approval: ")
}

// pendingApproval returns the pending approval for the paused checkpoint cp.
// When an earlier failure left no such row, one is rebuilt from the
// checkpoint. Must be called with the session lock held.
func (s *Service) pendingApproval(ctx context.Context, session *domain.Session, cp *domain.Checkpoint) (*domain.Approval, error) {
	approval, err := s.store.GetPendingApproval(ctx, session.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending approval: %w", err)
	}
	if approval != nil && approval.CheckpointID == cp.ID {
		return approval, nil
	}
	if approval != nil {
		if _, err := s.store.DecideApproval(ctx, approval.ApprovalID, domain.ApprovalStatusSuperseded, "checkpoint "+approval.CheckpointID+" is no longer current"); err != nil {
			return nil, fmt.Errorf("failed to supersede approval: %w", err)
		}
	}

	runs, err := s.store.ListRuns(ctx, session.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: thread %s is paused without any run", domain.ErrOrchestration, session.ThreadID)
	}

	approval = &domain.Approval{
		ApprovalID:   "ap_" + uuid.New().String()[:8],
		SessionID:    session.SessionID,
		RunID:        runs[len(runs)-1].RunID,
		CheckpointID: cp.ID,
		Step:         cp.Step,
		Node:         cp.Next,
		ToolCalls:    cp.State.PendingToolCalls(),
		Status:       domain.ApprovalStatusPending,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateApproval(ctx, approval); err != nil {
		return nil, fmt.Errorf("failed to create approval: %w", err)
	}
	log.Warnf("session %s: rebuilt approval %s for paused checkpoint %s", session.SessionID, approval.ApprovalID, cp.ID)
	s.recordEvent(ctx, approval.RunID, domain.EventTypeApprovalRequired, domain.ApprovalRequiredPayload{
		ApprovalID:   approval.ApprovalID,
		CheckpointID: cp.ID,
		Node:         cp.Next,
		ToolCalls:    approval.ToolCalls,
	})
	return approval, nil
}

// completePausedRun closes the run that paused for an approval once the
// decision has been carried out.
func (s *Service) completePausedRun(ctx context.Context, runID string) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		log.Errorf("failed to load paused run %s: %v", runID, err)
		return
	}
	if run == nil || run.Status != domain.RunStatusPausedWaitingApproval {
		return
	}
	if err := s.store.UpdateRunCompleted(ctx, runID, domain.RunStatusDone, nil); err != nil {
		log.Errorf("failed to complete paused run %s: %v", runID, err)
	}
}

// reopenApproval puts a decided approval back to pending when its checkpoint
// is still the paused head of the thread.
func (s *Service) reopenApproval(ctx context.Context, session *domain.Session, approval *domain.Approval) {
	ctx = context.WithoutCancel(ctx)
	cp, err := s.engine.GetState(ctx, session.ThreadID)
	if err != nil {
		log.Errorf("approval %s: failed to load conversation state: %v", approval.ApprovalID, err)
		return
	}
	if !cp.Paused() || cp.ID != approval.CheckpointID {
		return
	}
	if _, err := s.store.ReopenApproval(ctx, approval.ApprovalID); err != nil {
		log.Errorf("failed to reopen approval %s: %v", approval.ApprovalID, err)
		return
	}
	log.Warnf("approval %s reopened, thread %s is still paused", approval.ApprovalID, session.ThreadID)
}

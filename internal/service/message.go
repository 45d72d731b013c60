package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/graph"
	"github.com/xiaot623/gogo/travel/internal/log"
	"github.com/xiaot623/gogo/travel/internal/tools"
)

const (
	replyOrchestrationError = "I couldn't process your request. Please try again."
	replyApprovalPrompt     = "Please approve or deny the requested action."
	replyActionProcessed    = "Action processed"
)

// ProcessMessage runs one user turn. Failures inside the turn are reported in
// the reply and leave the session usable; the returned error covers only
// problems with the request itself.
func (s *Service) ProcessMessage(ctx context.Context, sessionID, content string) (*domain.TurnResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", domain.ErrInvalidRequest)
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
	if cp.Paused() {
		return nil, domain.ErrApprovalPending
	}

	run, err := s.startRun(ctx, session, domain.RunKindMessage)
	if err != nil {
		return nil, err
	}

	userMsg := domain.NewUserMessage(content)
	s.recordEvent(ctx, run.RunID, domain.EventTypeUserInput, domain.UserInputPayload{
		MessageID: userMsg.ID,
		Content:   content,
	})

	res, err := s.engine.Invoke(s.runContext(ctx, session, run), session.ThreadID, userMsg)
	if errors.Is(err, graph.ErrPaused) {
		// Another request paused the thread after our check.
		s.failRun(ctx, run, err)
		return nil, domain.ErrApprovalPending
	}
	return s.finishRun(ctx, session, run, res, err, "An error occurred: ")
}

func (s *Service) startRun(ctx context.Context, session *domain.Session, kind domain.RunKind) (*domain.Run, error) {
	run := &domain.Run{
		RunID:     "run_" + uuid.New().String()[:8],
		SessionID: session.SessionID,
		Kind:      kind,
		Status:    domain.RunStatusCreated,
		StartedAt: time.Now(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	s.recordEvent(ctx, run.RunID, domain.EventTypeRunStarted, domain.RunStartedPayload{
		SessionID: session.SessionID,
		ThreadID:  session.ThreadID,
		Kind:      kind,
	})

	if err := s.store.UpdateRunStatus(ctx, run.RunID, domain.RunStatusRunning); err != nil {
		log.Errorf("failed to update run status: %v", err)
	}
	run.Status = domain.RunStatusRunning
	return run, nil
}

func (s *Service) runContext(ctx context.Context, session *domain.Session, run *domain.Run) context.Context {
	ctx = withRunID(ctx, run.RunID)
	return tools.WithPassengerID(ctx, session.PassengerID)
}

// finishRun records the outcome of a graph execution and builds the reply.
func (s *Service) finishRun(ctx context.Context, session *domain.Session, run *domain.Run, res *graph.Result, err error, errPrefix string) (*domain.TurnResult, error) {
	if err != nil {
		s.failRun(ctx, run, err)
		reply := errPrefix + err.Error()
		if errors.Is(err, domain.ErrOrchestration) {
			reply = replyOrchestrationError
		}
		result := &domain.TurnResult{RunID: run.RunID, Status: domain.TurnStatusComplete, Reply: reply}
		s.applyThreadStatus(ctx, session, result)
		return result, nil
	}

	cp := res.Checkpoint
	result := &domain.TurnResult{RunID: run.RunID, Status: res.Status()}

	if !cp.Paused() {
		result.Reply = lastAssistantReply(cp.State)
		s.completeRun(ctx, run, domain.RunStatusDone)
		s.recordEvent(ctx, run.RunID, domain.EventTypeRunDone, domain.RunDonePayload{
			Status:       result.Status,
			CheckpointID: cp.ID,
			Reply:        result.Reply,
		})
		return result, nil
	}

	approval := &domain.Approval{
		ApprovalID:   "ap_" + uuid.New().String()[:8],
		SessionID:    session.SessionID,
		RunID:        run.RunID,
		CheckpointID: cp.ID,
		Step:         cp.Step,
		Node:         cp.Next,
		ToolCalls:    cp.State.PendingToolCalls(),
		Status:       domain.ApprovalStatusPending,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateApproval(ctx, approval); err != nil {
		// The thread stays paused; the next decision rebuilds the approval.
		log.Errorf("failed to create approval for run %s: %v", run.RunID, err)
		s.failRun(ctx, run, err)
		result.Reply = errPrefix + err.Error()
		result.Pending = s.pendingAction(&domain.Approval{Node: cp.Next, ToolCalls: cp.State.PendingToolCalls()})
		return result, nil
	}
	s.recordEvent(ctx, run.RunID, domain.EventTypeApprovalRequired, domain.ApprovalRequiredPayload{
		ApprovalID:   approval.ApprovalID,
		CheckpointID: cp.ID,
		Node:         cp.Next,
		ToolCalls:    approval.ToolCalls,
	})
	if err := s.store.UpdateRunStatus(ctx, run.RunID, domain.RunStatusPausedWaitingApproval); err != nil {
		log.Errorf("failed to update run status: %v", err)
	}
	s.metrics.ObserveTurn(string(run.Kind), string(domain.RunStatusPausedWaitingApproval))

	result.Pending = s.pendingAction(approval)
	result.Reply = replyApprovalPrompt
	if text := lastAssistantReply(cp.State); text != "" {
		result.Reply = text + "\n\n" + replyApprovalPrompt
	}
	return result, nil
}

// applyThreadStatus reports a thread that is still paused after a failed turn
// as paused, so callers keep offering the pending decision.
func (s *Service) applyThreadStatus(ctx context.Context, session *domain.Session, result *domain.TurnResult) {
	ctx = context.WithoutCancel(ctx)
	cp, err := s.engine.GetState(ctx, session.ThreadID)
	if err != nil {
		log.Errorf("session %s: failed to load conversation state: %v", session.SessionID, err)
		return
	}
	if !cp.Paused() {
		return
	}

	result.Status = domain.TurnStatusPausedForApproval
	approval, err := s.store.GetPendingApproval(ctx, session.SessionID)
	if err != nil {
		log.Errorf("session %s: failed to get pending approval: %v", session.SessionID, err)
	}
	if approval == nil || approval.CheckpointID != cp.ID {
		approval = &domain.Approval{Node: cp.Next, ToolCalls: cp.State.PendingToolCalls()}
	}
	result.Pending = s.pendingAction(approval)
}

func (s *Service) completeRun(ctx context.Context, run *domain.Run, status domain.RunStatus) {
	if err := s.store.UpdateRunCompleted(context.WithoutCancel(ctx), run.RunID, status, nil); err != nil {
		log.Errorf("failed to complete run %s: %v", run.RunID, err)
	}
	s.metrics.ObserveTurn(string(run.Kind), string(status))
}

func (s *Service) failRun(ctx context.Context, run *domain.Run, cause error) {
	log.Warnf("run %s failed: %v", run.RunID, cause)
	errData, _ := json.Marshal(domain.RunFailedPayload{Error: cause.Error()})
	if err := s.store.UpdateRunCompleted(context.WithoutCancel(ctx), run.RunID, domain.RunStatusFailed, errData); err != nil {
		log.Errorf("failed to mark run %s failed: %v", run.RunID, err)
	}
	s.recordEvent(ctx, run.RunID, domain.EventTypeRunFailed, domain.RunFailedPayload{Error: cause.Error()})
	s.metrics.ObserveTurn(string(run.Kind), string(domain.RunStatusFailed))
}

func (s *Service) pendingAction(approval *domain.Approval) *domain.PendingAction {
	action := &domain.PendingAction{
		ApprovalID: approval.ApprovalID,
		Node:       approval.Node,
		ToolCalls:  approval.ToolCalls,
	}
	if skill, ok := s.catalog.SkillBySensitiveNode(approval.Node); ok {
		action.Dialog = string(skill.Dialog)
	}
	return action
}

// lastAssistantReply returns the text of the newest assistant message of the
// current turn.
func lastAssistantReply(state domain.State) string {
	for i := len(state.Messages) - 1; i >= 0; i-- {
		m := state.Messages[i]
		if m.Role == domain.RoleUser {
			return ""
		}
		if m.Role == domain.RoleAssistant && m.Content != "" {
			return m.Content
		}
	}
	return ""
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/travel/internal/domain"
)

const defaultUserID = "default_user"

// CreateSession starts a conversation on a fresh thread.
func (s *Service) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.Session, error) {
	session := &domain.Session{
		SessionID:   "sess_" + uuid.New().String()[:8],
		UserID:      req.UserID,
		PassengerID: req.PassengerID,
		ThreadID:    uuid.New().String(),
		CreatedAt:   time.Now(),
	}
	if session.UserID == "" {
		session.UserID = defaultUserID
	}
	if session.PassengerID == "" {
		session.PassengerID = s.config.PassengerID
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSession returns a session or domain.ErrSessionNotFound.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return session, nil
}

// ListRuns returns the runs of a session, oldest first.
func (s *Service) ListRuns(ctx context.Context, sessionID string) ([]domain.Run, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	runs, err := s.store.ListRuns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/marketlens/account-service/internal/domain"
	"github.com/marketlens/account-service/internal/repository"
	"github.com/marketlens/account-service/internal/utils"
)

// sessionService implements SessionService interface
type sessionService struct {
	sessionRepo repository.SessionRepository
	maxSessions int
	duration    time.Duration
	retention   time.Duration
}

// NewSessionService creates a new session service
func NewSessionService(
	sessionRepo repository.SessionRepository,
	maxSessions int,
	duration time.Duration,
	retention time.Duration,
) SessionService {
	return &sessionService{
		sessionRepo: sessionRepo,
		maxSessions: maxSessions,
		duration:    duration,
		retention:   retention,
	}
}

// Establish runs the login decision for the user and carries out its writes.
// On the same-device path the matched session is refreshed in place; on the
// evict path the least-recently-active session is invalidated first. A full
// cap with no same-device match and no forced login returns a
// SessionLimitError carrying the live session list.
func (s *sessionService) Establish(ctx context.Context, user *domain.User, device domain.DeviceInfo, force bool) (*domain.Session, error) {
	now := time.Now()

	active, err := s.sessionRepo.GetActiveByUserID(ctx, user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load active sessions: %w", err)
	}

	plan := PlanLogin(active, device, force, s.maxSessions)

	switch plan.Decision {
	case DecisionAdmitSameDevice:
		if err := s.sessionRepo.Refresh(ctx, plan.Reuse.ID, now, now.Add(s.duration)); err != nil {
			return nil, fmt.Errorf("failed to refresh session: %w", err)
		}
		refreshed := *plan.Reuse
		refreshed.LoginTime = now
		refreshed.LastActivity = now
		refreshed.IsOnline = true
		refreshed.LogoutTime = nil
		refreshed.ExpiresAt = now.Add(s.duration)
		return &refreshed, nil

	case DecisionReject:
		return nil, &domain.SessionLimitError{Sessions: plan.Active}

	case DecisionEvictOldestAndAdmit:
		if err := s.sessionRepo.Deactivate(ctx, plan.Evict.ID); err != nil {
			return nil, fmt.Errorf("failed to evict session: %w", err)
		}
	}

	session, err := s.create(ctx, user, device, now)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// Touch records request activity on a live session and slides its TTL
func (s *sessionService) Touch(ctx context.Context, sessionID string) error {
	now := time.Now()
	if err := s.sessionRepo.Touch(ctx, sessionID, now, now.Add(s.duration)); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// Get loads a session by id
func (s *sessionService) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.sessionRepo.GetByID(ctx, sessionID)
}

// List returns the user's live sessions, oldest activity first
func (s *sessionService) List(ctx context.Context, userID string) ([]*domain.Session, error) {
	sessions, err := s.sessionRepo.GetActiveByUserID(ctx, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Logout ends the session referenced by the presented token
func (s *sessionService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessionRepo.Deactivate(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to logout session: %w", err)
	}
	return nil
}

// Terminate ends a session chosen by the user from their session list. The
// write is scoped to the caller's own sessions; a foreign or unknown id
// surfaces as not found.
func (s *sessionService) Terminate(ctx context.Context, sessionID, userID string) error {
	return s.sessionRepo.DeactivateOwned(ctx, sessionID, userID)
}

// TerminateOthers ends every session of the user except the one to keep
func (s *sessionService) TerminateOthers(ctx context.Context, userID, keepSessionID string) (int64, error) {
	return s.sessionRepo.DeactivateAllExcept(ctx, userID, keepSessionID)
}

// RevokeAll ends every session of the user, the kept-session id being empty
func (s *sessionService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return s.sessionRepo.DeactivateAllExcept(ctx, userID, "")
}

// SweepExpired permanently removes sessions past their TTL or logged out
// longer than the retention window ago. Idempotent; safe to overlap.
func (s *sessionService) SweepExpired(ctx context.Context) (int64, error) {
	return s.sessionRepo.DeleteExpired(ctx, time.Now(), s.retention)
}

func (s *sessionService) create(ctx context.Context, user *domain.User, device domain.DeviceInfo, now time.Time) (*domain.Session, error) {
	id, err := NewSessionID()
	if err != nil {
		return nil, err
	}

	session := &domain.Session{
		ID:           id,
		UserID:       user.ID,
		Email:        user.Email,
		IsActive:     true,
		IsOnline:     true,
		Device:       device,
		LoginTime:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(s.duration),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// NewSessionID returns a high-entropy opaque session id
func NewSessionID() (string, error) {
	id, err := utils.GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return id, nil
}

package repository

import (
	"context"
	"time"

	"github.com/marketlens/account-service/internal/domain"
)

// UserRepository defines methods for user record operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	UpdateLastLogin(ctx context.Context, userID string) error

	// RecordLoginFailure increments the failure counter in a single
	// conditional UPDATE and applies the lock when the threshold is hit.
	// Returns the counter value after the increment and whether the account
	// is now locked.
	RecordLoginFailure(ctx context.Context, userID string, threshold int, lockUntil time.Time) (attempts int, locked bool, err error)

	// ResetLoginFailures clears the counter and any lock state.
	ResetLoginFailures(ctx context.Context, userID string) error

	// ExpirePremium downgrades users whose premium window has elapsed and
	// returns how many were downgraded.
	ExpirePremium(ctx context.Context, now time.Time) (int64, error)
}

// SessionRepository defines methods for session record operations
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)

	// GetActiveByUserID returns sessions with is_active = true and
	// expires_at > now, oldest activity first.
	GetActiveByUserID(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)

	// Refresh re-arms an existing session for same-device reuse: login time,
	// activity, online flag and hard TTL are all reset in place.
	Refresh(ctx context.Context, sessionID string, now, expiresAt time.Time) error

	// Touch records request activity and slides the hard TTL forward.
	Touch(ctx context.Context, sessionID string, now, expiresAt time.Time) error

	// Deactivate ends a session: is_active = false, is_online = false,
	// logout_time = now.
	Deactivate(ctx context.Context, sessionID string) error

	// DeactivateOwned ends a session only if it belongs to userID; returns
	// ErrNotFound otherwise.
	DeactivateOwned(ctx context.Context, sessionID, userID string) error

	// DeactivateAllExcept ends every active session of the user other than
	// keepSessionID and returns how many were ended.
	DeactivateAllExcept(ctx context.Context, userID, keepSessionID string) (int64, error)

	// DeleteExpired permanently removes sessions past their hard TTL or
	// logged out longer than the retention window ago. Returns the number
	// of rows removed.
	DeleteExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}

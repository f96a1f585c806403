package service

import (
	"context"

	"github.com/marketlens/account-service/internal/domain"
)

// AuthService defines the account and authentication operations
type AuthService interface {
	// RequestRegistrationOTP creates or reuses an inactive placeholder
	// record for the email and delivers a fresh code.
	RequestRegistrationOTP(ctx context.Context, name, email string) error

	// CompleteRegistration verifies the pending code, claims the phone
	// number, activates the account and logs the new user in.
	CompleteRegistration(ctx context.Context, email, otp, phone, password string, device domain.DeviceInfo) (*LoginResult, error)

	// Login authenticates credentials and runs the session policy.
	Login(ctx context.Context, email, password string, device domain.DeviceInfo, force bool) (*LoginResult, error)

	// AuthenticateRequest resolves a presented token to a principal:
	// signature, expiry, password-change cutoff and session liveness.
	AuthenticateRequest(ctx context.Context, token string) (*domain.Principal, error)

	// RequestPasswordResetOTP delivers a reset code to an active account.
	RequestPasswordResetOTP(ctx context.Context, email string) error

	// ResetPasswordWithOTP sets a new password after code verification and
	// revokes every session.
	ResetPasswordWithOTP(ctx context.Context, email, otp, newPassword string) error

	// ChangePassword verifies the current password, sets the new one and
	// revokes every other session. The returned token replaces the caller's
	// old one, which dies with the password change.
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword, keepSessionID string) (string, error)

	// GetUser returns the profile projection of an account.
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// SessionService defines session lifecycle operations
type SessionService interface {
	Establish(ctx context.Context, user *domain.User, device domain.DeviceInfo, force bool) (*domain.Session, error)
	Touch(ctx context.Context, sessionID string) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	List(ctx context.Context, userID string) ([]*domain.Session, error)
	Logout(ctx context.Context, sessionID string) error
	Terminate(ctx context.Context, sessionID, userID string) error
	TerminateOthers(ctx context.Context, userID, keepSessionID string) (int64, error)
	RevokeAll(ctx context.Context, userID string) (int64, error)
	SweepExpired(ctx context.Context) (int64, error)
}

// LoginResult is returned by the session-bound login path: a single token
// referencing the established session.
type LoginResult struct {
	Token     string          `json:"token"`
	TokenType string          `json:"token_type"`
	ExpiresIn int             `json:"expires_in"`
	Session   *domain.Session `json:"session"`
	User      *domain.User    `json:"user"`
}

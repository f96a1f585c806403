package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marketlens/account-service/internal/domain"
	"github.com/marketlens/account-service/internal/repository"
	"github.com/marketlens/account-service/internal/utils"
	"go.uber.org/zap"
)

// authService implements AuthService interface
type authService struct {
	userRepo         repository.UserRepository
	sessions         SessionService
	otp              *OTPEngine
	throttle         ResendThrottle
	mailer           Mailer
	jwtManager       *utils.JWTManager
	logger           *zap.Logger
	bcryptCost       int
	maxLoginAttempts int
	lockoutDuration  time.Duration
	otpExpiry        time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo repository.UserRepository,
	sessions SessionService,
	otp *OTPEngine,
	throttle ResendThrottle,
	mailer Mailer,
	jwtManager *utils.JWTManager,
	logger *zap.Logger,
	bcryptCost int,
	maxLoginAttempts int,
	lockoutDuration time.Duration,
	otpExpiry time.Duration,
) AuthService {
	return &authService{
		userRepo:         userRepo,
		sessions:         sessions,
		otp:              otp,
		throttle:         throttle,
		mailer:           mailer,
		jwtManager:       jwtManager,
		logger:           logger,
		bcryptCost:       bcryptCost,
		maxLoginAttempts: maxLoginAttempts,
		lockoutDuration:  lockoutDuration,
		otpExpiry:        otpExpiry,
	}
}

// RequestRegistrationOTP creates or reuses an inactive placeholder record for
// the email and sends a fresh code. An active owner of the email is a
// conflict. A failed email send fails the whole operation: the code is stored
// but unreachable, and re-requesting overwrites it.
func (s *authService) RequestRegistrationOTP(ctx context.Context, name, email string) error {
	email = utils.SanitizeEmail(email)
	if name == "" || !utils.ValidateEmail(email) {
		return fmt.Errorf("name and a valid email are required: %w", domain.ErrValidation)
	}

	if err := s.checkThrottle(ctx, email); err != nil {
		return err
	}

	now := time.Now()
	code, hash, expiresAt, err := s.otp.Issue(now)
	if err != nil {
		return err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if user.IsActive {
			return fmt.Errorf("email %s is already registered: %w", email, domain.ErrConflict)
		}
		user.Name = name
		user.OTPHash = &hash
		user.OTPExpiresAt = &expiresAt
		if err := s.userRepo.Update(ctx, user); err != nil {
			return fmt.Errorf("failed to update pending registration: %w", err)
		}

	case errors.Is(err, repository.ErrNotFound):
		user = &domain.User{
			Name:            name,
			Email:           email,
			Role:            domain.RoleUser,
			IsActive:        false,
			IsEmailVerified: false,
			OTPHash:         &hash,
			OTPExpiresAt:    &expiresAt,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				return fmt.Errorf("email %s is already registered: %w", email, domain.ErrConflict)
			}
			return fmt.Errorf("failed to create pending registration: %w", err)
		}

	default:
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.mailer.SendOTP(ctx, email, name, code, int(s.otpExpiry.Minutes())); err != nil {
		return fmt.Errorf("failed to deliver verification code: %w", err)
	}

	if err := s.throttle.Mark(ctx, email); err != nil {
		s.logger.Warn("failed to mark OTP resend throttle", zap.String("email", email), zap.Error(err))
	}

	return nil
}

// CompleteRegistration verifies the pending code, claims the phone number,
// activates the account and logs the new user in. All precondition checks
// pass before any state is written.
func (s *authService) CompleteRegistration(ctx context.Context, email, otp, phone, password string, device domain.DeviceInfo) (*LoginResult, error) {
	email = utils.SanitizeEmail(email)
	phone = utils.SanitizePhone(phone)

	if !utils.ValidatePhone(phone) {
		return nil, fmt.Errorf("invalid phone number: %w", domain.ErrValidation)
	}
	if !utils.ValidatePassword(password) {
		return nil, fmt.Errorf("password must be at least 8 characters long and contain uppercase, lowercase, and number: %w", domain.ErrValidation)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrAuthentication
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	// An already-active account has no pending registration to complete.
	if user.IsActive {
		return nil, domain.ErrAuthentication
	}

	if !s.otp.Verify(user.OTPHash, user.OTPExpiresAt, otp, time.Now()) {
		return nil, domain.ErrAuthentication
	}

	if owner, err := s.userRepo.GetByPhone(ctx, phone); err == nil {
		if owner.ID != user.ID && owner.IsActive {
			return nil, fmt.Errorf("phone %s is already registered: %w", phone, domain.ErrConflict)
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check phone ownership: %w", err)
	}

	passwordHash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user.Phone = phone
	user.PasswordHash = passwordHash
	user.IsActive = true
	user.IsEmailVerified = true
	user.OTPHash = nil
	user.OTPExpiresAt = nil

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicatePhone) {
			return nil, fmt.Errorf("phone %s is already registered: %w", phone, domain.ErrConflict)
		}
		return nil, fmt.Errorf("failed to activate user: %w", err)
	}

	if err := s.mailer.SendWelcome(ctx, user.Email, user.Name); err != nil {
		s.logger.Warn("failed to send welcome email", zap.String("email", user.Email), zap.Error(err))
	}

	return s.establishLogin(ctx, user, device, false)
}

// Login authenticates credentials, applies lockout policy and runs the
// session policy for the device.
func (s *authService) Login(ctx context.Context, email, password string, device domain.DeviceInfo, force bool) (*LoginResult, error) {
	email = utils.SanitizeEmail(email)
	now := time.Now()

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrAuthentication
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.IsActive || !user.IsEmailVerified {
		return nil, domain.ErrAuthentication
	}

	if user.LockedAt(now) {
		return nil, &domain.LockedError{LockUntil: *user.LockUntil}
	}

	// An elapsed lock is lifted before the attempt is judged, so the next
	// failure starts a fresh count instead of compounding the old one.
	if user.IsLocked {
		if err := s.userRepo.ResetLoginFailures(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to lift elapsed lock: %w", err)
		}
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		lockUntil := now.Add(s.lockoutDuration)
		_, locked, err := s.userRepo.RecordLoginFailure(ctx, user.ID, s.maxLoginAttempts, lockUntil)
		if err != nil {
			return nil, fmt.Errorf("failed to record login failure: %w", err)
		}
		if locked {
			return nil, &domain.LockedError{LockUntil: lockUntil}
		}
		return nil, domain.ErrAuthentication
	}

	if user.LoginAttempts > 0 || user.IsLocked {
		if err := s.userRepo.ResetLoginFailures(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to reset login failures: %w", err)
		}
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	return s.establishLogin(ctx, user, device, force)
}

// AuthenticateRequest resolves a presented token to a principal. Four checks
// must all hold: signature/expiry, the account is still loginable, the token
// postdates the last password change, and the referenced session is live.
// Passing refreshes the session's activity and TTL.
func (s *authService) AuthenticateRequest(ctx context.Context, token string) (*domain.Principal, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, domain.ErrAuthentication
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrAuthentication
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.CanLogin(time.Now()) {
		return nil, domain.ErrAuthentication
	}

	if user.TokenIssuedBeforePasswordChange(claims.IssuedAt()) {
		return nil, domain.ErrAuthentication
	}

	if claims.SessionID == "" {
		return nil, domain.ErrAuthentication
	}

	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrAuthentication
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	if session.UserID != user.ID || !session.Live(time.Now()) {
		return nil, domain.ErrAuthentication
	}

	if err := s.sessions.Touch(ctx, session.ID); err != nil {
		s.logger.Warn("failed to refresh session activity", zap.String("session_id", session.ID), zap.Error(err))
	}

	return &domain.Principal{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: session.ID,
	}, nil
}

// RequestPasswordResetOTP delivers a reset code to an active account
func (s *authService) RequestPasswordResetOTP(ctx context.Context, email string) error {
	email = utils.SanitizeEmail(email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrAuthentication
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.IsActive || !user.IsEmailVerified {
		return domain.ErrAuthentication
	}

	if err := s.checkThrottle(ctx, email); err != nil {
		return err
	}

	code, hash, expiresAt, err := s.otp.Issue(time.Now())
	if err != nil {
		return err
	}

	user.OTPHash = &hash
	user.OTPExpiresAt = &expiresAt
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to store reset code: %w", err)
	}

	if err := s.mailer.SendOTP(ctx, user.Email, user.Name, code, int(s.otpExpiry.Minutes())); err != nil {
		return fmt.Errorf("failed to deliver reset code: %w", err)
	}

	if err := s.throttle.Mark(ctx, email); err != nil {
		s.logger.Warn("failed to mark OTP resend throttle", zap.String("email", email), zap.Error(err))
	}

	return nil
}

// ResetPasswordWithOTP sets a new password after code verification. The
// password-change timestamp invalidates every previously issued token, and
// all sessions are revoked explicitly on top of that.
func (s *authService) ResetPasswordWithOTP(ctx context.Context, email, otp, newPassword string) error {
	email = utils.SanitizeEmail(email)

	if !utils.ValidatePassword(newPassword) {
		return fmt.Errorf("password must be at least 8 characters long and contain uppercase, lowercase, and number: %w", domain.ErrValidation)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrAuthentication
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.IsActive || !s.otp.Verify(user.OTPHash, user.OTPExpiresAt, otp, time.Now()) {
		return domain.ErrAuthentication
	}

	passwordHash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// JWT iat carries whole seconds, so the cutoff must not be finer or a
	// token minted in the same second fails its first request.
	now := time.Now().Truncate(time.Second)
	user.PasswordHash = passwordHash
	user.PasswordChangedAt = &now
	user.OTPHash = nil
	user.OTPExpiresAt = nil
	user.LoginAttempts = 0
	user.IsLocked = false
	user.LockUntil = nil

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	if _, err := s.sessions.RevokeAll(ctx, user.ID); err != nil {
		s.logger.Warn("failed to revoke sessions after password reset", zap.String("user_id", user.ID), zap.Error(err))
	}

	if err := s.mailer.SendPasswordChanged(ctx, user.Email, user.Name); err != nil {
		s.logger.Warn("failed to send password change notice", zap.String("email", user.Email), zap.Error(err))
	}

	return nil
}

// ChangePassword verifies the current password, sets the new one and revokes
// every other session of the user. Tokens minted before the change stop
// validating, so a fresh one is issued for the surviving session.
func (s *authService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, keepSessionID string) (string, error) {
	if !utils.ValidatePassword(newPassword) {
		return "", fmt.Errorf("password must be at least 8 characters long and contain uppercase, lowercase, and number: %w", domain.ErrValidation)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", domain.ErrAuthentication
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if !utils.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return "", domain.ErrAuthentication
	}

	passwordHash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	// Second precision matches the iat of the replacement token below.
	now := time.Now().Truncate(time.Second)
	user.PasswordHash = passwordHash
	user.PasswordChangedAt = &now

	if err := s.userRepo.Update(ctx, user); err != nil {
		return "", fmt.Errorf("failed to change password: %w", err)
	}

	if _, err := s.sessions.TerminateOthers(ctx, userID, keepSessionID); err != nil {
		s.logger.Warn("failed to revoke other sessions after password change", zap.String("user_id", userID), zap.Error(err))
	}

	token, err := s.jwtManager.GenerateSessionToken(user.ID, user.Email, user.Role, keepSessionID)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.mailer.SendPasswordChanged(ctx, user.Email, user.Name); err != nil {
		s.logger.Warn("failed to send password change notice", zap.String("email", user.Email), zap.Error(err))
	}

	return token, nil
}

// GetUser returns the profile projection of an account
func (s *authService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *authService) establishLogin(ctx context.Context, user *domain.User, device domain.DeviceInfo, force bool) (*LoginResult, error) {
	session, err := s.sessions.Establish(ctx, user, device, force)
	if err != nil {
		return nil, err
	}

	token, err := s.jwtManager.GenerateSessionToken(user.ID, user.Email, user.Role, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	return &LoginResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: s.jwtManager.GetSessionTokenExpiry(),
		Session:   session,
		User:      user,
	}, nil
}

func (s *authService) checkThrottle(ctx context.Context, email string) error {
	allowed, wait, err := s.throttle.Allow(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check OTP throttle: %w", err)
	}
	if !allowed {
		return fmt.Errorf("please wait %d seconds before requesting a new code: %w", int(wait.Seconds()), domain.ErrValidation)
	}
	return nil
}

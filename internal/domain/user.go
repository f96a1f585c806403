package domain

import "time"

// Roles assignable to a user.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a user account in the system
type User struct {
	ID           string `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	Phone        string `json:"phone" db:"phone"`
	Role         string `json:"role" db:"role"`
	PasswordHash string `json:"-" db:"password_hash"`

	IsActive        bool `json:"is_active" db:"is_active"`
	IsEmailVerified bool `json:"is_email_verified" db:"is_email_verified"`

	// Pending OTP challenge. Only the SHA-256 hash is stored.
	OTPHash      *string    `json:"-" db:"otp_hash"`
	OTPExpiresAt *time.Time `json:"-" db:"otp_expires_at"`

	LoginAttempts int        `json:"-" db:"login_attempts"`
	IsLocked      bool       `json:"-" db:"is_locked"`
	LockUntil     *time.Time `json:"-" db:"lock_until"`

	IsPremium        bool       `json:"is_premium" db:"is_premium"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at" db:"premium_expires_at"`

	PasswordChangedAt *time.Time `json:"-" db:"password_changed_at"`
	LastLoginAt       *time.Time `json:"last_login_at" db:"last_login_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// CanLogin reports whether the account may authenticate at all: it must be
// active, email-verified and not currently locked.
func (u *User) CanLogin(now time.Time) bool {
	return u.IsActive && u.IsEmailVerified && !u.LockedAt(now)
}

// LockedAt reports whether the lockout is still in force at the given instant.
// A lock whose lock_until has elapsed no longer counts as locked.
func (u *User) LockedAt(now time.Time) bool {
	if !u.IsLocked {
		return false
	}
	return u.LockUntil == nil || now.Before(*u.LockUntil)
}

// TokenIssuedBeforePasswordChange reports whether a token issued at iat
// predates the last password change and must therefore be rejected.
func (u *User) TokenIssuedBeforePasswordChange(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat.Before(*u.PasswordChangedAt)
}

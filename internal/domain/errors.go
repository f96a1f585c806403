package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy shared by services and mapped to HTTP statuses at the
// handler boundary.
var (
	// ErrValidation marks malformed input rejected before any state mutation.
	ErrValidation = errors.New("validation failed")

	// ErrAuthentication marks bad credentials, tokens, OTP codes or dead
	// sessions. The message is deliberately uniform so callers cannot tell
	// which factor failed.
	ErrAuthentication = errors.New("authentication failed")

	// ErrConflict marks duplicate email/phone ownership.
	ErrConflict = errors.New("conflict")

	// ErrNotFound marks an id that does not resolve or does not belong to
	// the caller.
	ErrNotFound = errors.New("not found")
)

// LockedError is the one authentication failure that intentionally reveals
// detail: the instant the lockout ends.
type LockedError struct {
	LockUntil time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.LockUntil.Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error { return ErrAuthentication }

// SessionLimitError is returned when the concurrent-session cap is reached
// by a new device and forced login was not requested. It is a normal decision
// outcome carrying the caller's own active sessions so the client can offer
// "log out of device X" or "force login".
type SessionLimitError struct {
	Sessions []*Session
}

func (e *SessionLimitError) Error() string {
	return fmt.Sprintf("maximum number of active sessions reached (%d)", len(e.Sessions))
}

func (e *SessionLimitError) Unwrap() error { return ErrConflict }

package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/marketlens/account-service/internal/utils"
)

const otpLength = 6

// OTPEngine generates and checks one-time codes. It never touches storage:
// Issue returns the values the caller persists on the user record, Verify is
// a pure predicate over the values the caller loaded. Clearing a used code is
// the caller's responsibility.
type OTPEngine struct {
	expiry time.Duration
}

// NewOTPEngine creates an OTP engine with the given code validity window
func NewOTPEngine(expiry time.Duration) *OTPEngine {
	return &OTPEngine{expiry: expiry}
}

// Issue generates a uniformly random 6-digit code. The plaintext goes out of
// band (email); only the hash and expiry are meant to be stored.
func (e *OTPEngine) Issue(now time.Time) (code, hash string, expiresAt time.Time, err error) {
	digits := make([]byte, otpLength)
	for i := 0; i < otpLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", "", time.Time{}, fmt.Errorf("failed to generate OTP digit: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}

	code = string(digits)
	return code, utils.HashToken(code), now.Add(e.expiry), nil
}

// Verify reports whether the candidate matches the stored challenge. It fails
// when no code is pending, the window has elapsed, or the hash differs.
func (e *OTPEngine) Verify(storedHash *string, expiresAt *time.Time, candidate string, now time.Time) bool {
	if storedHash == nil || expiresAt == nil {
		return false
	}
	if now.After(*expiresAt) {
		return false
	}
	// SHA-256 keeps the plaintext out of the store; it is not meant to
	// resist targeted guessing of the 6-digit space, the expiry window is.
	return utils.HashToken(candidate) == *storedHash
}

package domain

import "time"

// TokenClaims represents verified JWT token claims
type TokenClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id,omitempty"`
	Exp       int64  `json:"exp"`
	Iat       int64  `json:"iat"`
}

// TokenPair represents a pair of access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// IssuedAt returns the token's issue instant.
func (tc TokenClaims) IssuedAt() time.Time {
	return time.Unix(tc.Iat, 0)
}

// IsExpired checks if the token is expired
func (tc TokenClaims) IsExpired() bool {
	return time.Now().Unix() > tc.Exp
}

// Principal is the authenticated identity attached to a request once the
// token signature, session liveness and password-change checks have passed.
type Principal struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

package dto

import "time"

// RegisterOTPRequest starts registration by requesting a verification code
type RegisterOTPRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

// CompleteRegistrationRequest finishes registration with the emailed code
type CompleteRegistrationRequest struct {
	Email    string `json:"email" binding:"required,email"`
	OTP      string `json:"otp" binding:"required,len=6"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	ForceLogin bool   `json:"force_login"`
}

// PasswordResetOTPRequest asks for a password-reset code
type PasswordResetOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest resets the password with the emailed code
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	OTP         string `json:"otp" binding:"required,len=6"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ChangePasswordRequest changes the password of the authenticated user
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// AuthResponse is returned by the session-bound login path
type AuthResponse struct {
	Token     string          `json:"token"`
	TokenType string          `json:"token_type"`
	ExpiresIn int             `json:"expires_in"`
	User      UserInfo        `json:"user"`
	Session   SessionResponse `json:"session"`
}

// UserInfo represents user information in responses
type UserInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	IsPremium bool   `json:"is_premium"`
}

// UserResponse represents a full user profile response
type UserResponse struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	Phone            string  `json:"phone"`
	Role             string  `json:"role"`
	IsEmailVerified  bool    `json:"is_email_verified"`
	IsPremium        bool    `json:"is_premium"`
	PremiumExpiresAt *string `json:"premium_expires_at,omitempty"`
	LastLoginAt      *string `json:"last_login_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// SessionResponse is the session descriptor shown to the user
type SessionResponse struct {
	SessionID    string    `json:"session_id"`
	Platform     string    `json:"platform"`
	Browser      string    `json:"browser"`
	DeviceType   string    `json:"device_type"`
	IPAddress    string    `json:"ip_address"`
	IsOnline     bool      `json:"is_online"`
	IsCurrent    bool      `json:"is_current"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionListResponse wraps the caller's active sessions
type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Count    int               `json:"count"`
}

// SessionLimitResponse is returned when the session cap rejects a login. It
// carries the active sessions so the client can offer "log out of device X"
// or a forced login.
type SessionLimitResponse struct {
	Error    string            `json:"error"`
	Message  string            `json:"message"`
	Sessions []SessionResponse `json:"sessions"`
}

// PasswordChangeResponse carries the replacement token for the session that
// survives a password change.
type PasswordChangeResponse struct {
	Message   string `json:"message"`
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

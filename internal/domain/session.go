package domain

import "time"

// DeviceInfo is the coarse device fingerprint recorded for a session. The
// user-agent and IP pair is what same-device detection compares; the parsed
// fields are for display only.
type DeviceInfo struct {
	UserAgent  string `json:"user_agent" db:"user_agent"`
	IPAddress  string `json:"ip_address" db:"ip_address"`
	Platform   string `json:"platform" db:"platform"`
	Browser    string `json:"browser" db:"browser"`
	DeviceType string `json:"device_type" db:"device_type"`
}

// SameDevice reports whether two fingerprints refer to the same device for
// session-reuse purposes: an exact (user-agent, IP) match.
func (d DeviceInfo) SameDevice(other DeviceInfo) bool {
	return d.UserAgent == other.UserAgent && d.IPAddress == other.IPAddress
}

// Session represents one recorded login instance tied to a device context.
// It is distinct from the signed token that references it.
type Session struct {
	ID     string `json:"session_id" db:"session_id"`
	UserID string `json:"user_id" db:"user_id"`
	Email  string `json:"email" db:"email"`

	IsActive bool `json:"is_active" db:"is_active"`
	IsOnline bool `json:"is_online" db:"is_online"`

	Device DeviceInfo `json:"device_info"`

	LoginTime    time.Time  `json:"login_time" db:"login_time"`
	LastActivity time.Time  `json:"last_activity" db:"last_activity"`
	LogoutTime   *time.Time `json:"logout_time" db:"logout_time"`
	ExpiresAt    time.Time  `json:"expires_at" db:"expires_at"`
}

// Live reports whether the session still admits requests: soft-active and
// not past its hard TTL.
func (s *Session) Live(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketlens/account-service/internal/domain"
	"github.com/marketlens/account-service/internal/repository"
)

// fakeUserRepo is an in-memory UserRepository for service tests.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
		if user.Phone != "" && u.Phone == user.Phone {
			return repository.ErrDuplicatePhone
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Phone == phone {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, u := range r.users {
		if id != user.ID && user.Phone != "" && u.Phone == user.Phone {
			return repository.ErrDuplicatePhone
		}
	}

	user.UpdatedAt = time.Now()
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	u.LastLoginAt = &now
	return nil
}

func (r *fakeUserRepo) RecordLoginFailure(_ context.Context, userID string, threshold int, lockUntil time.Time) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return 0, false, repository.ErrNotFound
	}

	u.LoginAttempts++
	if u.LoginAttempts >= threshold {
		u.IsLocked = true
		until := lockUntil
		u.LockUntil = &until
	}
	return u.LoginAttempts, u.IsLocked, nil
}

func (r *fakeUserRepo) ResetLoginFailures(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.LoginAttempts = 0
	u.IsLocked = false
	u.LockUntil = nil
	return nil
}

func (r *fakeUserRepo) ExpirePremium(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, u := range r.users {
		if u.IsPremium && u.PremiumExpiresAt != nil && u.PremiumExpiresAt.Before(now) {
			u.IsPremium = false
			n++
		}
	}
	return n, nil
}

// fakeSessionRepo is an in-memory SessionRepository for service tests.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; ok {
		return repository.ErrDuplicateSession
	}
	clone := *session
	r.sessions[session.ID] = &clone
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *fakeSessionRepo) GetActiveByUserID(_ context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsActive && s.ExpiresAt.After(now) {
			clone := *s
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.Before(out[j].LastActivity)
	})
	return out, nil
}

func (r *fakeSessionRepo) Refresh(_ context.Context, sessionID string, now, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	s.LoginTime = now
	s.LastActivity = now
	s.IsOnline = true
	s.LogoutTime = nil
	s.ExpiresAt = expiresAt
	return nil
}

func (r *fakeSessionRepo) Touch(_ context.Context, sessionID string, now, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || !s.IsActive {
		return repository.ErrNotFound
	}
	s.LastActivity = now
	s.ExpiresAt = expiresAt
	return nil
}

func (r *fakeSessionRepo) Deactivate(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || !s.IsActive {
		return repository.ErrNotFound
	}
	now := time.Now()
	s.IsActive = false
	s.IsOnline = false
	s.LogoutTime = &now
	return nil
}

func (r *fakeSessionRepo) DeactivateOwned(_ context.Context, sessionID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || !s.IsActive || s.UserID != userID {
		return repository.ErrNotFound
	}
	now := time.Now()
	s.IsActive = false
	s.IsOnline = false
	s.LogoutTime = &now
	return nil
}

func (r *fakeSessionRepo) DeactivateAllExcept(_ context.Context, userID, keepSessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var n int64
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsActive && s.ID != keepSessionID {
			s.IsActive = false
			s.IsOnline = false
			s.LogoutTime = &now
			n++
		}
	}
	return n, nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context, now time.Time, retention time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-retention)
	var n int64
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(now) || (!s.IsActive && s.LogoutTime != nil && s.LogoutTime.Before(cutoff)) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// openThrottle never limits resends.
type openThrottle struct{}

func (openThrottle) Allow(context.Context, string) (bool, time.Duration, error) {
	return true, 0, nil
}

func (openThrottle) Mark(context.Context, string) error { return nil }

// closedThrottle always limits resends.
type closedThrottle struct {
	wait time.Duration
}

func (t closedThrottle) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, t.wait, nil
}

func (closedThrottle) Mark(context.Context, string) error { return nil }

// captureMailer records outbound mail for assertions.
type captureMailer struct {
	mu       sync.Mutex
	otpCodes map[string]string
	welcomes []string
	notices  []string
	fail     bool
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{otpCodes: make(map[string]string)}
}

func (m *captureMailer) SendOTP(_ context.Context, email, _, code string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errSMTPDown
	}
	m.otpCodes[email] = code
	return nil
}

func (m *captureMailer) SendWelcome(_ context.Context, email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomes = append(m.welcomes, email)
	return nil
}

func (m *captureMailer) SendPasswordChanged(_ context.Context, email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, email)
	return nil
}

func (m *captureMailer) lastOTP(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.otpCodes[email]
}

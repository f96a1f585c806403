package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/marketlens/account-service/internal/domain"
	"github.com/marketlens/account-service/pkg/database"
)

const userColumns = `id, name, email, phone, role, password_hash,
		is_active, is_email_verified,
		otp_hash, otp_expires_at,
		login_attempts, is_locked, lock_until,
		is_premium, premium_expires_at,
		password_changed_at, last_login_at, created_at, updated_at`

// userRepository implements UserRepository interface
type userRepository struct {
	db *database.Postgres
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Postgres) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, email, phone, role, password_hash, is_active, is_email_verified,
			otp_hash, otp_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		nullString(user.Phone),
		user.Role,
		user.PasswordHash,
		user.IsActive,
		user.IsEmailVerified,
		user.OTPHash,
		user.OTPExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if dup := mapUserConstraint(err, user); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByEmail retrieves a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)

	user, err := r.scanUser(r.db.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user with email %s not found: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// GetByPhone retrieves a user by phone number
func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE phone = $1`, userColumns)

	user, err := r.scanUser(r.db.DB.QueryRowContext(ctx, query, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user with phone %s not found: %w", phone, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by phone: %w", err)
	}

	return user, nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	user, err := r.scanUser(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

// Update updates the mutable fields of an existing user
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET name = $2, email = $3, phone = $4, role = $5, password_hash = $6,
			is_active = $7, is_email_verified = $8,
			otp_hash = $9, otp_expires_at = $10,
			login_attempts = $11, is_locked = $12, lock_until = $13,
			is_premium = $14, premium_expires_at = $15,
			password_changed_at = $16, updated_at = $17
		WHERE id = $1
	`

	result, err := r.db.DB.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		nullString(user.Phone),
		user.Role,
		user.PasswordHash,
		user.IsActive,
		user.IsEmailVerified,
		user.OTPHash,
		user.OTPExpiresAt,
		user.LoginAttempts,
		user.IsLocked,
		user.LockUntil,
		user.IsPremium,
		user.PremiumExpiresAt,
		user.PasswordChangedAt,
		time.Now(),
	)

	if err != nil {
		if dup := mapUserConstraint(err, user); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with id %s not found: %w", user.ID, ErrNotFound)
	}

	return nil
}

// UpdateLastLogin updates the last login timestamp for a user
func (r *userRepository) UpdateLastLogin(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET last_login_at = $1
		WHERE id = $2
	`

	result, err := r.db.DB.ExecContext(ctx, query, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
	}

	return nil
}

// RecordLoginFailure increments the failure counter and locks the account in
// one statement so concurrent failures cannot lose increments.
func (r *userRepository) RecordLoginFailure(ctx context.Context, userID string, threshold int, lockUntil time.Time) (int, bool, error) {
	query := `
		UPDATE users
		SET login_attempts = login_attempts + 1,
			is_locked = (login_attempts + 1 >= $2),
			lock_until = CASE WHEN login_attempts + 1 >= $2 THEN $3 ELSE lock_until END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING login_attempts, is_locked
	`

	var attempts int
	var locked bool
	err := r.db.DB.QueryRowContext(ctx, query, userID, threshold, lockUntil).Scan(&attempts, &locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
		}
		return 0, false, fmt.Errorf("failed to record login failure: %w", err)
	}

	return attempts, locked, nil
}

// ResetLoginFailures clears the failure counter and lock state
func (r *userRepository) ResetLoginFailures(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET login_attempts = 0, is_locked = FALSE, lock_until = NULL, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}

	return nil
}

// ExpirePremium downgrades users whose premium subscription has lapsed
func (r *userRepository) ExpirePremium(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users
		SET is_premium = FALSE, updated_at = NOW()
		WHERE is_premium = TRUE AND premium_expires_at < $1
	`

	result, err := r.db.DB.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire premium subscriptions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

func (r *userRepository) scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	var phone, otpHash sql.NullString
	var otpExpiresAt, lockUntil, premiumExpiresAt, passwordChangedAt, lastLoginAt sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&phone,
		&user.Role,
		&user.PasswordHash,
		&user.IsActive,
		&user.IsEmailVerified,
		&otpHash,
		&otpExpiresAt,
		&user.LoginAttempts,
		&user.IsLocked,
		&lockUntil,
		&user.IsPremium,
		&premiumExpiresAt,
		&passwordChangedAt,
		&lastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if phone.Valid {
		user.Phone = phone.String
	}
	if otpHash.Valid {
		user.OTPHash = &otpHash.String
	}
	if otpExpiresAt.Valid {
		user.OTPExpiresAt = &otpExpiresAt.Time
	}
	if lockUntil.Valid {
		user.LockUntil = &lockUntil.Time
	}
	if premiumExpiresAt.Valid {
		user.PremiumExpiresAt = &premiumExpiresAt.Time
	}
	if passwordChangedAt.Valid {
		user.PasswordChangedAt = &passwordChangedAt.Time
	}
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}

	return user, nil
}

// mapUserConstraint maps pq unique violations to duplicate sentinels.
func mapUserConstraint(err error, user *domain.User) error {
	pqErr, ok := err.(*pq.Error)
	if !ok || pqErr.Code != "23505" { // unique_violation
		return nil
	}

	if pqErr.Constraint == "users_phone_key" {
		return fmt.Errorf("user with phone %s already exists: %w", user.Phone, ErrDuplicatePhone)
	}
	return fmt.Errorf("user with email %s already exists: %w", user.Email, ErrDuplicateEmail)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/marketlens/account-service/internal/domain"
	"github.com/marketlens/account-service/pkg/database"
)

const sessionColumns = `session_id, user_id, email, is_active, is_online,
		user_agent, ip_address, platform, browser, device_type,
		login_time, last_activity, logout_time, expires_at`

// sessionRepository implements SessionRepository interface
type sessionRepository struct {
	db *database.Postgres
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.Postgres) SessionRepository {
	return &sessionRepository{db: db}
}

// Create creates a new session in the database
func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (session_id, user_id, email, is_active, is_online,
			user_agent, ip_address, platform, browser, device_type,
			login_time, last_activity, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.DB.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Email,
		session.IsActive,
		session.IsOnline,
		session.Device.UserAgent,
		session.Device.IPAddress,
		session.Device.Platform,
		session.Device.Browser,
		session.Device.DeviceType,
		session.LoginTime,
		session.LastActivity,
		session.ExpiresAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("session %s already exists: %w", session.ID, ErrDuplicateSession)
			}
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by its opaque id
func (r *sessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE session_id = $1`, sessionColumns)

	session, err := scanSession(r.db.DB.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s not found: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session by id: %w", err)
	}

	return session, nil
}

// GetActiveByUserID retrieves the user's live sessions, oldest activity first
func (r *sessionRepository) GetActiveByUserID(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sessions
		WHERE user_id = $1 AND is_active = TRUE AND expires_at > $2
		ORDER BY last_activity ASC
	`, sessionColumns)

	rows, err := r.db.DB.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions by user id: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

// Refresh re-arms a session in place for same-device reuse
func (r *sessionRepository) Refresh(ctx context.Context, sessionID string, now, expiresAt time.Time) error {
	query := `
		UPDATE sessions
		SET login_time = $2, last_activity = $2, is_online = TRUE, logout_time = NULL, expires_at = $3
		WHERE session_id = $1
	`

	return r.execOnSession(ctx, query, sessionID, now, expiresAt)
}

// Touch records request activity and slides the hard TTL forward
func (r *sessionRepository) Touch(ctx context.Context, sessionID string, now, expiresAt time.Time) error {
	query := `
		UPDATE sessions
		SET last_activity = $2, is_online = TRUE, expires_at = $3
		WHERE session_id = $1
	`

	return r.execOnSession(ctx, query, sessionID, now, expiresAt)
}

// Deactivate ends a session
func (r *sessionRepository) Deactivate(ctx context.Context, sessionID string) error {
	query := `
		UPDATE sessions
		SET is_active = FALSE, is_online = FALSE, logout_time = NOW()
		WHERE session_id = $1
	`

	return r.execOnSession(ctx, query, sessionID)
}

// DeactivateOwned ends a session only if it belongs to the given user
func (r *sessionRepository) DeactivateOwned(ctx context.Context, sessionID, userID string) error {
	query := `
		UPDATE sessions
		SET is_active = FALSE, is_online = FALSE, logout_time = NOW()
		WHERE session_id = $1 AND user_id = $2
	`

	result, err := r.db.DB.ExecContext(ctx, query, sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to terminate session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("session %s not found for user %s: %w", sessionID, userID, ErrNotFound)
	}

	return nil
}

// DeactivateAllExcept ends every active session of the user except one
func (r *sessionRepository) DeactivateAllExcept(ctx context.Context, userID, keepSessionID string) (int64, error) {
	query := `
		UPDATE sessions
		SET is_active = FALSE, is_online = FALSE, logout_time = NOW()
		WHERE user_id = $1 AND session_id <> $2 AND is_active = TRUE
	`

	result, err := r.db.DB.ExecContext(ctx, query, userID, keepSessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to terminate other sessions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// DeleteExpired permanently removes sessions past their TTL or long logged out
func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE expires_at < $1
			OR (is_active = FALSE AND logout_time IS NOT NULL AND logout_time < $2)
	`

	result, err := r.db.DB.ExecContext(ctx, query, now, now.Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

func (r *sessionRepository) execOnSession(ctx context.Context, query, sessionID string, args ...any) error {
	queryArgs := append([]any{sessionID}, args...)

	result, err := r.db.DB.ExecContext(ctx, query, queryArgs...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("session %s not found: %w", sessionID, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	session := &domain.Session{}
	var logoutTime sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Email,
		&session.IsActive,
		&session.IsOnline,
		&session.Device.UserAgent,
		&session.Device.IPAddress,
		&session.Device.Platform,
		&session.Device.Browser,
		&session.Device.DeviceType,
		&session.LoginTime,
		&session.LastActivity,
		&logoutTime,
		&session.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if logoutTime.Valid {
		session.LogoutTime = &logoutTime.Time
	}

	return session, nil
}

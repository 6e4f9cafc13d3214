package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wnsxk2/jt-log/internal/domain"
	"github.com/wnsxk2/jt-log/internal/repository"
	"github.com/wnsxk2/jt-log/pkg/database"
	apperrors "github.com/wnsxk2/jt-log/pkg/errors"
)

const insertSessionQuery = `
		INSERT INTO sessions (id, user_id, refresh_token_hash, expires_at, user_agent, client_ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

const selectSessionColumns = `
		SELECT id, user_id, refresh_token_hash, expires_at, user_agent, client_ip, created_at
		FROM sessions`

// SessionRepository implements repository.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db database.DBTX
}

// NewSessionRepository creates a new PostgreSQL-backed session repository.
func NewSessionRepository(db database.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

var _ repository.SessionRepository = (*SessionRepository)(nil)

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateSession", insertSessionQuery)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, insertSessionQuery, sessionArgs(s)...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by its identifier.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return r.scanSession(ctx, "GetSessionByID", selectSessionColumns+`
		WHERE id = $1`, id)
}

// GetByTokenHash retrieves a session by refresh token digest.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	return r.scanSession(ctx, "GetSessionByTokenHash", selectSessionColumns+`
		WHERE refresh_token_hash = $1`, tokenHash)
}

// DeleteByID removes a session by its identifier.
func (r *SessionRepository) DeleteByID(ctx context.Context, id string) (err error) {
	query := `DELETE FROM sessions WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteSessionByID", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteByTokenHash removes a session by refresh token digest.
func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) (err error) {
	query := `DELETE FROM sessions WHERE refresh_token_hash = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteSessionByTokenHash", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, tokenHash); err != nil {
		return fmt.Errorf("delete session by token: %w", err)
	}
	return nil
}

// DeleteAllByUserID removes every session of a user.
func (r *SessionRepository) DeleteAllByUserID(ctx context.Context, userID string) (_ int64, err error) {
	query := `DELETE FROM sessions WHERE user_id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteSessionsByUserID", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return ct.RowsAffected(), nil
}

// Rotate deletes session oldID and inserts next in one transaction. A delete
// that matches no row means another rotation already consumed the session;
// the transaction is rolled back and nothing is inserted.
func (r *SessionRepository) Rotate(ctx context.Context, oldID string, next *domain.Session) (err error) {
	deleteQuery := `DELETE FROM sessions WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "RotateSession", deleteQuery+";"+insertSessionQuery)
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	ct, err := tx.Exec(ctx, deleteQuery, oldID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("delete rotated session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return apperrors.NotFound("session", oldID)
	}

	if _, err = tx.Exec(ctx, insertSessionQuery, sessionArgs(next)...); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("insert rotated session: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions whose expiry lies before the given time.
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (_ int64, err error) {
	query := `DELETE FROM sessions WHERE expires_at < $1`

	ctx, end := database.TraceQuery(ctx, "DeleteExpiredSessions", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return ct.RowsAffected(), nil
}

func sessionArgs(s *domain.Session) []any {
	return []any{s.ID, s.UserID, s.RefreshTokenHash, s.ExpiresAt, s.UserAgent, s.ClientIP, s.CreatedAt}
}

func (r *SessionRepository) scanSession(ctx context.Context, op, query string, args ...any) (_ *domain.Session, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var s domain.Session
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&s.ID,
		&s.UserID,
		&s.RefreshTokenHash,
		&s.ExpiresAt,
		&s.UserAgent,
		&s.ClientIP,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return &s, nil
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wnsxk2/jt-log/internal/domain"
	"github.com/wnsxk2/jt-log/internal/repository"
	apperrors "github.com/wnsxk2/jt-log/pkg/errors"
)

// SessionRepository is an in-process repository.SessionRepository. All
// operations, Rotate included, run under one mutex.
type SessionRepository struct {
	mu      sync.Mutex
	byID    map[string]domain.Session
	byToken map[string]string // token digest -> session ID
}

// NewSessionRepository creates an empty in-memory session repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		byID:    make(map[string]domain.Session),
		byToken: make(map[string]string),
	}
}

var _ repository.SessionRepository = (*SessionRepository)(nil)

// Create stores a new session.
func (r *SessionRepository) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byToken[s.RefreshTokenHash]; ok {
		return apperrors.ErrAlreadyExists
	}
	r.putLocked(s)
	return nil
}

// GetByID retrieves a session by its identifier.
func (r *SessionRepository) GetByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &s, nil
}

// GetByTokenHash retrieves a session by refresh token digest.
func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byToken[tokenHash]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	s := r.byID[id]
	return &s, nil
}

// DeleteByID removes a session.
func (r *SessionRepository) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deleteLocked(id)
	return nil
}

// DeleteByTokenHash removes a session by refresh token digest.
func (r *SessionRepository) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byToken[tokenHash]; ok {
		r.deleteLocked(id)
	}
	return nil
}

// DeleteAllByUserID removes every session of a user.
func (r *SessionRepository) DeleteAllByUserID(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.byID {
		if s.UserID == userID {
			r.deleteLocked(id)
			n++
		}
	}
	return n, nil
}

// Rotate replaces session oldID with next.
func (r *SessionRepository) Rotate(_ context.Context, oldID string, next *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[oldID]; !ok {
		return apperrors.NotFound("session", oldID)
	}
	if _, ok := r.byToken[next.RefreshTokenHash]; ok {
		return apperrors.ErrAlreadyExists
	}
	r.deleteLocked(oldID)
	r.putLocked(next)
	return nil
}

// DeleteExpired removes sessions that expired before the given time.
func (r *SessionRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.byID {
		if s.IsExpired(before) {
			r.deleteLocked(id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (r *SessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *SessionRepository) putLocked(s *domain.Session) {
	r.byID[s.ID] = *s
	r.byToken[s.RefreshTokenHash] = s.ID
}

func (r *SessionRepository) deleteLocked(id string) {
	if s, ok := r.byID[id]; ok {
		delete(r.byToken, s.RefreshTokenHash)
		delete(r.byID, id)
	}
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/wnsxk2/jt-log/internal/domain"
	apperrors "github.com/wnsxk2/jt-log/pkg/errors"
)

// Uniqueness violations reported by CreateProfileWithCredential and
// UpdateProfile. Both wrap apperrors.ErrAlreadyExists.
var (
	ErrEmailTaken    = fmt.Errorf("email %w", apperrors.ErrAlreadyExists)
	ErrNicknameTaken = fmt.Errorf("nickname %w", apperrors.ErrAlreadyExists)
)

// IdentityRepository defines persistence for credentials and profiles.
// Lookups that match nothing return an error wrapping apperrors.ErrNotFound.
type IdentityRepository interface {
	// GetCredentialByEmail retrieves the credential registered for email.
	GetCredentialByEmail(ctx context.Context, email string) (*domain.Credential, error)

	// GetProfileByNickname retrieves the profile using nickname.
	GetProfileByNickname(ctx context.Context, nickname string) (*domain.Profile, error)

	// GetProfileByID retrieves the profile of a user.
	GetProfileByID(ctx context.Context, userID string) (*domain.Profile, error)

	// CreateProfileWithCredential stores a profile and its credential
	// atomically: either both exist afterwards or neither does.
	CreateProfileWithCredential(ctx context.Context, profile *domain.Profile, cred *domain.Credential) error

	// UpdateProfile modifies an existing profile.
	UpdateProfile(ctx context.Context, profile *domain.Profile) error
}

// SessionRepository defines persistence for refresh-token sessions.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *domain.Session) error

	// GetByID retrieves a session by its identifier.
	GetByID(ctx context.Context, id string) (*domain.Session, error)

	// GetByTokenHash retrieves the session issued with the refresh token
	// whose digest is tokenHash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)

	// DeleteByID removes a session. Removing an absent session succeeds.
	DeleteByID(ctx context.Context, id string) error

	// DeleteByTokenHash removes the session issued with the given refresh
	// token digest. Removing an absent session succeeds.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteAllByUserID removes every session of a user and returns how
	// many were removed.
	DeleteAllByUserID(ctx context.Context, userID string) (int64, error)

	// Rotate atomically replaces session oldID with next. If oldID no
	// longer exists nothing is written and an error wrapping
	// apperrors.ErrNotFound is returned, so of several concurrent rotations
	// of one session exactly one succeeds.
	Rotate(ctx context.Context, oldID string, next *domain.Session) error

	// DeleteExpired removes sessions that expired before the given time and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

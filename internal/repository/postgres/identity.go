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

// IdentityRepository implements repository.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	db database.DBTX
}

// NewIdentityRepository creates a new PostgreSQL-backed identity repository.
func NewIdentityRepository(db database.DBTX) *IdentityRepository {
	return &IdentityRepository{db: db}
}

var _ repository.IdentityRepository = (*IdentityRepository)(nil)

// GetCredentialByEmail retrieves the credential registered for email.
func (r *IdentityRepository) GetCredentialByEmail(ctx context.Context, email string) (_ *domain.Credential, err error) {
	query := `
		SELECT user_id, email, password_hash, provider, provider_id, created_at, updated_at
		FROM credentials
		WHERE email = $1`

	ctx, end := database.TraceQuery(ctx, "GetCredentialByEmail", query)
	defer func() { end(err) }()

	var c domain.Credential
	err = r.db.QueryRow(ctx, query, email).Scan(
		&c.UserID,
		&c.Email,
		&c.PasswordHash,
		&c.Provider,
		&c.ProviderID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}

	return &c, nil
}

// GetProfileByNickname retrieves the profile using nickname.
func (r *IdentityRepository) GetProfileByNickname(ctx context.Context, nickname string) (*domain.Profile, error) {
	query := `
		SELECT id, nickname, bio, avatar_url, created_at, updated_at
		FROM profiles
		WHERE nickname = $1`

	return r.scanProfile(ctx, "GetProfileByNickname", query, nickname)
}

// GetProfileByID retrieves the profile of a user.
func (r *IdentityRepository) GetProfileByID(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `
		SELECT id, nickname, bio, avatar_url, created_at, updated_at
		FROM profiles
		WHERE id = $1`

	return r.scanProfile(ctx, "GetProfileByID", query, userID)
}

// CreateProfileWithCredential inserts the profile and its credential in one
// transaction.
func (r *IdentityRepository) CreateProfileWithCredential(ctx context.Context, p *domain.Profile, c *domain.Credential) (err error) {
	profileQuery := `
		INSERT INTO profiles (id, nickname, bio, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	credentialQuery := `
		INSERT INTO credentials (user_id, email, password_hash, provider, provider_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, end := database.TraceQuery(ctx, "CreateProfileWithCredential", profileQuery+";"+credentialQuery)
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if _, err = tx.Exec(ctx, profileQuery,
		p.ID, p.Nickname, p.Bio, p.AvatarURL, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		_ = tx.Rollback(ctx)
		return translateIdentityError("insert profile", err)
	}

	if _, err = tx.Exec(ctx, credentialQuery,
		c.UserID, c.Email, c.PasswordHash, c.Provider, c.ProviderID, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		_ = tx.Rollback(ctx)
		return translateIdentityError("insert credential", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpdateProfile modifies an existing profile.
func (r *IdentityRepository) UpdateProfile(ctx context.Context, p *domain.Profile) (err error) {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE profiles
		SET nickname = $1, bio = $2, avatar_url = $3, updated_at = $4
		WHERE id = $5`

	ctx, end := database.TraceQuery(ctx, "UpdateProfile", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, p.Nickname, p.Bio, p.AvatarURL, p.UpdatedAt, p.ID)
	if err != nil {
		return translateIdentityError("update profile", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("profile", p.ID)
	}
	return nil
}

func (r *IdentityRepository) scanProfile(ctx context.Context, op, query string, args ...any) (_ *domain.Profile, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var p domain.Profile
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.Nickname,
		&p.Bio,
		&p.AvatarURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	return &p, nil
}

func translateIdentityError(op string, err error) error {
	constraint, ok := uniqueConstraint(err)
	switch {
	case ok && constraint == constraintEmail:
		return repository.ErrEmailTaken
	case ok && constraint == constraintNickname:
		return repository.ErrNicknameTaken
	case ok:
		return fmt.Errorf("%s: %w", op, apperrors.ErrAlreadyExists)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnsxk2/jt-log/internal/domain"
	"github.com/wnsxk2/jt-log/internal/repository"
	"github.com/wnsxk2/jt-log/pkg/database"
	apperrors "github.com/wnsxk2/jt-log/pkg/errors"
)

func newIdentityTestFixture(t *testing.T) (*IdentityRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewIdentityRepository(mock), mock
}

func sampleIdentity() (*domain.Profile, *domain.Credential) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	hash := "$2a$12$hash"
	p := &domain.Profile{
		ID:        "0b9a7f7e-1111-4c1a-9a63-1b2c3d4e5f60",
		Nickname:  "kim",
		CreatedAt: now,
		UpdatedAt: now,
	}
	c := &domain.Credential{
		UserID:       p.ID,
		Email:        "kim@example.com",
		PasswordHash: &hash,
		Provider:     domain.ProviderEmail,
		ProviderID:   "kim@example.com",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return p, c
}

func credentialRow(c *domain.Credential) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"user_id", "email", "password_hash", "provider", "provider_id", "created_at", "updated_at",
	}).AddRow(c.UserID, c.Email, c.PasswordHash, c.Provider, c.ProviderID, c.CreatedAt, c.UpdatedAt)
}

func profileRow(p *domain.Profile) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "nickname", "bio", "avatar_url", "created_at", "updated_at",
	}).AddRow(p.ID, p.Nickname, p.Bio, p.AvatarURL, p.CreatedAt, p.UpdatedAt)
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

func TestIdentityRepository_GetCredentialByEmail_Success(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	_, c := sampleIdentity()
	mock.ExpectQuery("SELECT .+ FROM credentials WHERE email =").
		WithArgs(c.Email).
		WillReturnRows(credentialRow(c))

	got, err := repo.GetCredentialByEmail(context.Background(), c.Email)
	require.NoError(t, err)
	assert.Equal(t, c.UserID, got.UserID)
	require.NotNil(t, got.PasswordHash)
	assert.Equal(t, *c.PasswordHash, *got.PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepository_GetCredentialByEmail_NotFound(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM credentials WHERE email =").
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetCredentialByEmail(context.Background(), "nobody@example.com")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepository_GetProfileByNickname(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	p, _ := sampleIdentity()
	mock.ExpectQuery("SELECT .+ FROM profiles WHERE nickname =").
		WithArgs(p.Nickname).
		WillReturnRows(profileRow(p))

	got, err := repo.GetProfileByNickname(context.Background(), p.Nickname)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepository_GetProfileByID_DBError(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM profiles WHERE id =").
		WithArgs("u-1").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetProfileByID(context.Background(), "u-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "scan profile")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// CreateProfileWithCredential
// ---------------------------------------------------------------------------

func TestIdentityRepository_Create_CommitsBothRows(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	p, c := sampleIdentity()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO profiles").
		WithArgs(p.ID, p.Nickname, p.Bio, p.AvatarURL, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO credentials").
		WithArgs(c.UserID, c.Email, c.PasswordHash, c.Provider, c.ProviderID, c.CreatedAt, c.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := repo.CreateProfileWithCredential(context.Background(), p, c)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepository_Create_DuplicateNicknameRollsBack(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	p, c := sampleIdentity()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO profiles").
		WithArgs(p.ID, p.Nickname, p.Bio, p.AvatarURL, p.CreatedAt, p.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "profiles_nickname_key"})
	mock.ExpectRollback()

	err := repo.CreateProfileWithCredential(context.Background(), p, c)
	assert.ErrorIs(t, err, repository.ErrNicknameTaken)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepository_Create_DuplicateEmailRollsBackProfile(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	p, c := sampleIdentity()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO profiles").
		WithArgs(p.ID, p.Nickname, p.Bio, p.AvatarURL, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO credentials").
		WithArgs(c.UserID, c.Email, c.PasswordHash, c.Provider, c.ProviderID, c.CreatedAt, c.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "credentials_email_key"})
	mock.ExpectRollback()

	err := repo.CreateProfileWithCredential(context.Background(), p, c)
	assert.ErrorIs(t, err, repository.ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepository_Create_BeginFails(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	p, c := sampleIdentity()
	mock.ExpectBegin().WillReturnError(errors.New("pool closed"))

	err := repo.CreateProfileWithCredential(context.Background(), p, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// UpdateProfile
// ---------------------------------------------------------------------------

func TestIdentityRepository_UpdateProfile_Success(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	p, _ := sampleIdentity()
	p.Bio = "hello"
	mock.ExpectExec("UPDATE profiles").
		WithArgs(p.Nickname, p.Bio, p.AvatarURL, pgxmock.AnyArg(), p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateProfile(context.Background(), p)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepository_UpdateProfile_NotFound(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	p, _ := sampleIdentity()
	mock.ExpectExec("UPDATE profiles").
		WithArgs(p.Nickname, p.Bio, p.AvatarURL, pgxmock.AnyArg(), p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateProfile(context.Background(), p)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepository_UpdateProfile_NicknameTaken(t *testing.T) {
	repo, mock := newIdentityTestFixture(t)
	defer mock.Close()

	p, _ := sampleIdentity()
	mock.ExpectExec("UPDATE profiles").
		WithArgs(p.Nickname, p.Bio, p.AvatarURL, pgxmock.AnyArg(), p.ID).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "profiles_nickname_key"})

	err := repo.UpdateProfile(context.Background(), p)
	assert.ErrorIs(t, err, repository.ErrNicknameTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUniqueConstraint(t *testing.T) {
	name, ok := uniqueConstraint(&pgconn.PgError{Code: "23505", ConstraintName: "x"})
	assert.True(t, ok)
	assert.Equal(t, "x", name)

	_, ok = uniqueConstraint(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)

	_, ok = uniqueConstraint(errors.New("23505"))
	assert.False(t, ok)
}

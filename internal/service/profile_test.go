package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnsxk2/jt-log/internal/domain"
	"github.com/wnsxk2/jt-log/internal/repository/memory"
	apperrors "github.com/wnsxk2/jt-log/pkg/errors"
)

func seedProfiles(t *testing.T, repo *memory.IdentityRepository, nicknames ...string) {
	t.Helper()
	now := time.Now().UTC()
	for _, n := range nicknames {
		id := "u-" + n
		require.NoError(t, repo.CreateProfileWithCredential(context.Background(),
			&domain.Profile{ID: id, Nickname: n, CreatedAt: now, UpdatedAt: now},
			&domain.Credential{UserID: id, Email: n + "@b.com", Provider: domain.ProviderEmail, ProviderID: n + "@b.com"},
		))
	}
}

func strPtr(s string) *string { return &s }

func TestProfileService_GetProfile(t *testing.T) {
	repo := memory.NewIdentityRepository()
	seedProfiles(t, repo, "alice")
	svc := NewProfileService(repo, newTestLogger())

	p, err := svc.GetProfile(context.Background(), "u-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Nickname)

	_, err = svc.GetProfile(context.Background(), "u-missing")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}

func TestProfileService_UpdateProfile(t *testing.T) {
	repo := memory.NewIdentityRepository()
	seedProfiles(t, repo, "alice")
	svc := NewProfileService(repo, newTestLogger())

	p, err := svc.UpdateProfile(context.Background(), "u-alice", UpdateProfileInput{
		Nickname: strPtr("alicia"),
		Bio:      strPtr("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "alicia", p.Nickname)
	assert.Equal(t, "hello", p.Bio)
	assert.Empty(t, p.AvatarURL)

	stored, err := repo.GetProfileByID(context.Background(), "u-alice")
	require.NoError(t, err)
	assert.Equal(t, "alicia", stored.Nickname)
}

func TestProfileService_UpdateProfile_NicknameTaken(t *testing.T) {
	repo := memory.NewIdentityRepository()
	seedProfiles(t, repo, "alice", "bob")
	svc := NewProfileService(repo, newTestLogger())

	_, err := svc.UpdateProfile(context.Background(), "u-alice", UpdateProfileInput{Nickname: strPtr("bob")})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
	assert.Equal(t, MsgNicknameTaken, appErr.Message)
}

func TestProfileService_UpdateProfile_SameNicknameIsFine(t *testing.T) {
	repo := memory.NewIdentityRepository()
	seedProfiles(t, repo, "alice")
	svc := NewProfileService(repo, newTestLogger())

	_, err := svc.UpdateProfile(context.Background(), "u-alice", UpdateProfileInput{Nickname: strPtr("alice")})
	assert.NoError(t, err)
}

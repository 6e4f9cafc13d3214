package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wnsxk2/jt-log/internal/domain"
	"github.com/wnsxk2/jt-log/internal/repository"
	apperrors "github.com/wnsxk2/jt-log/pkg/errors"
)

// ProfileService provides read and update access to user profiles.
type ProfileService struct {
	identities repository.IdentityRepository
	logger     *slog.Logger
	now        func() time.Time
}

// NewProfileService creates a new profile service.
func NewProfileService(identities repository.IdentityRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{identities: identities, logger: logger, now: time.Now}
}

// UpdateProfileInput holds the fields a user may change. Nil fields are left
// untouched.
type UpdateProfileInput struct {
	Nickname  *string
	Bio       *string
	AvatarURL *string
}

// GetProfile returns the profile of userID.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.identities.GetProfileByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("profile", userID)
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// UpdateProfile applies input to the profile of userID.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.Profile, error) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Nickname != nil && *input.Nickname != p.Nickname {
		other, err := s.identities.GetProfileByNickname(ctx, *input.Nickname)
		switch {
		case err == nil && other.ID != userID:
			return nil, apperrors.Conflict(MsgNicknameTaken)
		case err != nil && !errors.Is(err, apperrors.ErrNotFound):
			return nil, fmt.Errorf("check nickname: %w", err)
		}
		p.Nickname = *input.Nickname
	}
	if input.Bio != nil {
		p.Bio = *input.Bio
	}
	if input.AvatarURL != nil {
		p.AvatarURL = *input.AvatarURL
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.identities.UpdateProfile(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNicknameTaken) {
			return nil, apperrors.Conflict(MsgNicknameTaken)
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.logger.InfoContext(ctx, "profile updated",
		slog.String("user_id", userID),
	)
	return p, nil
}

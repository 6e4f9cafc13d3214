package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wnsxk2/jt-log/internal/domain"
	"github.com/wnsxk2/jt-log/internal/repository"
	apperrors "github.com/wnsxk2/jt-log/pkg/errors"
)

// IdentityRepository is an in-process repository.IdentityRepository.
type IdentityRepository struct {
	mu          sync.RWMutex
	credentials map[string]domain.Credential // by email
	profiles    map[string]domain.Profile    // by user ID
}

// NewIdentityRepository creates an empty in-memory identity repository.
func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{
		credentials: make(map[string]domain.Credential),
		profiles:    make(map[string]domain.Profile),
	}
}

var _ repository.IdentityRepository = (*IdentityRepository)(nil)

// GetCredentialByEmail retrieves the credential registered for email.
func (r *IdentityRepository) GetCredentialByEmail(_ context.Context, email string) (*domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.credentials[email]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &c, nil
}

// GetProfileByNickname retrieves the profile using nickname.
func (r *IdentityRepository) GetProfileByNickname(_ context.Context, nickname string) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.profiles {
		if p.Nickname == nickname {
			return &p, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// GetProfileByID retrieves the profile of a user.
func (r *IdentityRepository) GetProfileByID(_ context.Context, userID string) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &p, nil
}

// CreateProfileWithCredential stores both records or neither.
func (r *IdentityRepository) CreateProfileWithCredential(_ context.Context, p *domain.Profile, c *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.credentials[c.Email]; ok {
		return repository.ErrEmailTaken
	}
	if r.nicknameTakenLocked(p.Nickname, "") {
		return repository.ErrNicknameTaken
	}

	r.profiles[p.ID] = *p
	r.credentials[c.Email] = *c
	return nil
}

// UpdateProfile modifies an existing profile.
func (r *IdentityRepository) UpdateProfile(_ context.Context, p *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[p.ID]; !ok {
		return apperrors.NotFound("profile", p.ID)
	}
	if r.nicknameTakenLocked(p.Nickname, p.ID) {
		return repository.ErrNicknameTaken
	}

	p.UpdatedAt = time.Now().UTC()
	r.profiles[p.ID] = *p
	return nil
}

func (r *IdentityRepository) nicknameTakenLocked(nickname, exceptID string) bool {
	for id, p := range r.profiles {
		if id != exceptID && p.Nickname == nickname {
			return true
		}
	}
	return false
}

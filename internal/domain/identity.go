package domain

import "time"

// ProviderEmail is the provider of accounts created through email sign-up.
const ProviderEmail = "email"

// Credential holds the login material of an account. A nil PasswordHash
// marks an account that can only sign in through its social provider.
type Credential struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	PasswordHash *string   `json:"-"`
	Provider     string    `json:"provider"`
	ProviderID   string    `json:"provider_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasPassword reports whether the account can sign in with a password.
func (c *Credential) HasPassword() bool {
	return c.PasswordHash != nil && *c.PasswordHash != ""
}

// Profile is the public face of an account. Its ID is the user ID.
type Profile struct {
	ID        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	Bio       string    `json:"bio,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SignUpResult is returned by a successful sign-up. No tokens are issued.
type SignUpResult struct {
	UserID   string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Session is one signed-in device. It is addressed by the digest of the
// refresh token it was issued with; the raw token is never stored.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RefreshTokenHash string    `json:"-"`
	ExpiresAt        time.Time `json:"expires_at"`
	UserAgent        string    `json:"user_agent,omitempty"`
	ClientIP         string    `json:"client_ip,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// IsExpired reports whether the session's expiry lies before now.
func (s *Session) IsExpired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// SessionMetadata describes the client a session was opened from.
type SessionMetadata struct {
	UserAgent string
	ClientIP  string
}

// HashRefreshToken returns the hex SHA-256 digest used to look sessions up
// by refresh token value.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"-"`
}

// AuthResult is the outcome of a sign-in or refresh. The refresh token is
// delivered to the client as a cookie, never in a body.
type AuthResult struct {
	TokenPair
	UserID           string
	Email            string
	RefreshExpiresAt time.Time
}

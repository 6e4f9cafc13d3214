package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_IsExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"in the past", now.Add(-time.Second), true},
		{"exactly now", now, false},
		{"in the future", now.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, s.IsExpired(now))
		})
	}
}

func TestHashRefreshToken(t *testing.T) {
	h := HashRefreshToken("token-a")

	assert.Len(t, h, 64)
	assert.Equal(t, h, HashRefreshToken("token-a"))
	assert.NotEqual(t, h, HashRefreshToken("token-b"))
	assert.NotContains(t, h, "token-a")
}

func TestCredential_HasPassword(t *testing.T) {
	hash := "$2a$12$abc"
	empty := ""

	assert.True(t, (&Credential{PasswordHash: &hash}).HasPassword())
	assert.False(t, (&Credential{}).HasPassword())
	assert.False(t, (&Credential{PasswordHash: &empty}).HasPassword())
}

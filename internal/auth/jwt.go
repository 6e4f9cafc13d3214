package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is stamped on and required of every token.
const Issuer = "jt-log-auth"

// Token validation failures. Every validation error wraps exactly one of them.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims are the claims carried by both access and refresh tokens. The
// subject is the user ID and the token ID (jti) is random per token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenProfile is the signing secret and lifetime of one kind of token.
type TokenProfile struct {
	Secret string
	TTL    time.Duration
}

// JWTManager mints and verifies access and refresh tokens. The two kinds use
// independent secrets, so a token of one kind never validates as the other.
type JWTManager struct {
	access  tokenKind
	refresh tokenKind
	now     func() time.Time
}

type tokenKind struct {
	name   string
	secret []byte
	ttl    time.Duration
}

// NewJWTManager creates a manager from the access and refresh profiles.
func NewJWTManager(access, refresh TokenProfile) *JWTManager {
	return &JWTManager{
		access:  tokenKind{name: "access", secret: []byte(access.Secret), ttl: access.TTL},
		refresh: tokenKind{name: "refresh", secret: []byte(refresh.Secret), ttl: refresh.TTL},
		now:     time.Now,
	}
}

// AccessTTL returns the lifetime of access tokens.
func (m *JWTManager) AccessTTL() time.Duration { return m.access.ttl }

// RefreshTTL returns the lifetime of refresh tokens.
func (m *JWTManager) RefreshTTL() time.Duration { return m.refresh.ttl }

// GenerateAccessToken signs an access token for the user.
func (m *JWTManager) GenerateAccessToken(userID, email string) (string, time.Time, error) {
	return m.generate(m.access, userID, email)
}

// GenerateRefreshToken signs a refresh token for the user.
func (m *JWTManager) GenerateRefreshToken(userID, email string) (string, time.Time, error) {
	return m.generate(m.refresh, userID, email)
}

func (m *JWTManager) generate(kind tokenKind, userID, email string) (string, time.Time, error) {
	now := m.now().UTC()
	expiresAt := now.Add(kind.ttl)
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(kind.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind.name, err)
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken verifies an access token and returns its claims.
func (m *JWTManager) ValidateAccessToken(token string) (*Claims, error) {
	return m.validate(m.access, token)
}

// ValidateRefreshToken verifies a refresh token and returns its claims.
func (m *JWTManager) ValidateRefreshToken(token string) (*Claims, error) {
	return m.validate(m.refresh, token)
}

func (m *JWTManager) validate(kind tokenKind, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return kind.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && m.signedBy(kind, token) {
			return nil, fmt.Errorf("parse %s token: %w", kind.name, ErrTokenExpired)
		}
		return nil, fmt.Errorf("parse %s token: %w: %v", kind.name, ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("parse %s token: %w: missing subject", kind.name, ErrTokenInvalid)
	}
	return claims, nil
}

// signedBy reports whether token carries a valid signature of kind, ignoring
// its claims. Only genuine tokens may be reported as expired.
func (m *JWTManager) signedBy(kind tokenKind, token string) bool {
	_, err := jwt.Parse(token,
		func(*jwt.Token) (any, error) { return kind.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	return err == nil
}

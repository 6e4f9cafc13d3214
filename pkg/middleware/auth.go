package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/wnsxk2/jt-log/pkg/errors"
	"github.com/wnsxk2/jt-log/pkg/httputil"
	"github.com/wnsxk2/jt-log/pkg/logger"
)

type contextKeyType string

const claimsKey contextKeyType = "auth_claims"

// User-facing messages written by Auth.
const (
	MsgMissingToken = "인증 토큰이 필요합니다."
	MsgInvalidToken = "유효하지 않은 토큰입니다."
	MsgExpiredToken = "액세스 토큰이 만료되었습니다."
)

const bearerScheme = "bearer"

// Claims represents the verified access token claims exposed to handlers.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// TokenValidator verifies a raw access token and returns its claims. An error
// wrapping apperrors.ErrTokenExpired marks a token that was valid but has
// expired; any other error marks the token as invalid.
type TokenValidator func(token string) (*Claims, error)

// Auth verifies the bearer access token of every request and injects the
// claims into the request context. Expired tokens are answered with the
// TOKEN_EXPIRED code so clients know a refresh may succeed; every other
// failure is a plain UNAUTHORIZED.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				httputil.WriteErrorCode(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, MsgMissingToken)
				return
			}

			claims, err := validate(token)
			if err != nil {
				if errors.Is(err, apperrors.ErrTokenExpired) {
					httputil.WriteErrorCode(w, http.StatusUnauthorized, apperrors.CodeTokenExpired, MsgExpiredToken)
					return
				}
				httputil.WriteErrorCode(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, MsgInvalidToken)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = logger.WithUserID(ctx, claims.UserID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", claims.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the verified claims stored by Auth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

// UserIDFromContext extracts the authenticated user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.UserID
	}
	return ""
}

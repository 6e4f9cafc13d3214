package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wnsxk2/jt-log/internal/auth"
	"github.com/wnsxk2/jt-log/internal/domain"
	"github.com/wnsxk2/jt-log/internal/repository"
	apperrors "github.com/wnsxk2/jt-log/pkg/errors"
	"github.com/wnsxk2/jt-log/pkg/tracing"
)

const tracerName = "github.com/wnsxk2/jt-log/internal/service"

// EventPublisher publishes auth domain events. Failures are logged and never
// fail the operation that produced the event.
type EventPublisher interface {
	PublishUserSignedUp(ctx context.Context, userID, email, nickname string) error
	PublishSessionsRevoked(ctx context.Context, userID string, count int64) error
}

// AuthService issues, rotates and revokes credentials.
type AuthService struct {
	identities repository.IdentityRepository
	sessions   repository.SessionRepository
	tokens     *auth.JWTManager
	hasher     *auth.PasswordHasher
	events     EventPublisher
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(
	identities repository.IdentityRepository,
	sessions repository.SessionRepository,
	tokens *auth.JWTManager,
	hasher *auth.PasswordHasher,
	events EventPublisher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		identities: identities,
		sessions:   sessions,
		tokens:     tokens,
		hasher:     hasher,
		events:     events,
		logger:     logger,
		tracer:     tracing.Tracer(tracerName),
		now:        time.Now,
	}
}

// SignUpInput holds the parameters for creating an account.
type SignUpInput struct {
	Email    string
	Password string
	Nickname string
}

// SignInInput holds the parameters for signing in with a password.
type SignInInput struct {
	Email    string
	Password string
}

// SignUp creates a profile and its email credential. No tokens are issued.
func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (_ *domain.SignUpResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.SignUp")
	defer func() { endSpan(span, err) }()

	if input.Email == "" || input.Password == "" || input.Nickname == "" {
		return nil, apperrors.InvalidInput("email, password and nickname are required")
	}

	if _, err := s.identities.GetCredentialByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.Conflict(MsgEmailTaken)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	if _, err := s.identities.GetProfileByNickname(ctx, input.Nickname); err == nil {
		return nil, apperrors.Conflict(MsgNicknameTaken)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check nickname: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	userID := uuid.NewString()
	profile := &domain.Profile{
		ID:        userID,
		Nickname:  input.Nickname,
		CreatedAt: now,
		UpdatedAt: now,
	}
	cred := &domain.Credential{
		UserID:       userID,
		Email:        input.Email,
		PasswordHash: &hash,
		Provider:     domain.ProviderEmail,
		ProviderID:   input.Email,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.identities.CreateProfileWithCredential(ctx, profile, cred); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			return nil, apperrors.Conflict(MsgEmailTaken)
		case errors.Is(err, repository.ErrNicknameTaken):
			return nil, apperrors.Conflict(MsgNicknameTaken)
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	if err := s.events.PublishUserSignedUp(ctx, userID, input.Email, input.Nickname); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.signed_up event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user signed up",
		slog.String("user_id", userID),
	)

	return &domain.SignUpResult{UserID: userID, Email: input.Email, Nickname: input.Nickname}, nil
}

// SignIn verifies a password and opens a new session. Unknown emails and
// wrong passwords fail with the same error.
func (s *AuthService) SignIn(ctx context.Context, input SignInInput, meta domain.SessionMetadata) (_ *domain.AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.SignIn")
	defer func() { endSpan(span, err) }()

	result := resultError
	defer func() { signInTotal.WithLabelValues(result).Inc() }()

	cred, err := s.identities.GetCredentialByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.hasher.CompareDummy(input.Password)
			result = resultInvalidCredentials
			return nil, apperrors.Unauthorized(MsgInvalidCredentials)
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}

	if !cred.HasPassword() {
		result = resultSocialAccount
		return nil, apperrors.Unauthorized(MsgSocialAccount)
	}

	if err := s.hasher.Compare(*cred.PasswordHash, input.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			result = resultInvalidCredentials
			return nil, apperrors.Unauthorized(MsgInvalidCredentials)
		}
		return nil, err
	}

	res, sess, err := s.mint(cred.UserID, cred.Email, meta)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	result = resultSuccess
	s.logger.InfoContext(ctx, "user signed in",
		slog.String("user_id", cred.UserID),
		slog.String("session_id", sess.ID),
	)
	return res, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented
// token's session is consumed: it is replaced by a new session in one atomic
// step, so each refresh token can be redeemed at most once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta domain.SessionMetadata) (_ *domain.AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	defer func() { endSpan(span, err) }()

	result := resultError
	defer func() { refreshTotal.WithLabelValues(result).Inc() }()

	if refreshToken == "" {
		result = resultInvalidToken
		return nil, apperrors.Unauthorized(MsgInvalidRefreshToken)
	}

	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		result = resultInvalidToken
		return nil, apperrors.Unauthorized(MsgInvalidRefreshToken)
	}
	userID := claims.UserID()
	span.SetAttributes(attribute.String("user.id", userID))

	current, err := s.sessions.GetByTokenHash(ctx, domain.HashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// A genuine token without a session was either logged out or
			// already redeemed, possibly by someone else.
			s.logger.WarnContext(ctx, "refresh token has no session, possible token theft",
				slog.String("user_id", userID),
				slog.String("client_ip", meta.ClientIP),
			)
			result = resultSessionNotFound
			return nil, apperrors.Unauthorized(MsgSessionNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if current.IsExpired(s.now()) {
		if err := s.sessions.DeleteByID(ctx, current.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to delete expired session",
				slog.String("session_id", current.ID),
				slog.String("error", err.Error()),
			)
		} else {
			sessionsRevokedTotal.WithLabelValues(reasonExpired).Inc()
		}
		result = resultSessionExpired
		return nil, apperrors.Unauthorized(MsgSessionExpired)
	}

	res, next, err := s.mint(userID, claims.Email, meta)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Rotate(ctx, current.ID, next); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "refresh lost rotation race",
				slog.String("user_id", userID),
				slog.String("session_id", current.ID),
			)
			result = resultRotationConflict
			return nil, apperrors.Unauthorized(MsgSessionNotFound)
		}
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	result = resultSuccess
	s.logger.InfoContext(ctx, "session rotated",
		slog.String("user_id", userID),
		slog.String("session_id", next.ID),
	)
	return res, nil
}

// Logout removes the session of refreshToken. An empty token or a session
// that no longer exists is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Logout")
	defer func() { endSpan(span, err) }()

	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.DeleteByTokenHash(ctx, domain.HashRefreshToken(refreshToken)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	sessionsRevokedTotal.WithLabelValues(reasonLogout).Inc()
	return nil
}

// LogoutAll removes every session of the user and returns how many there were.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (_ int64, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.LogoutAll")
	defer func() { endSpan(span, err) }()

	if userID == "" {
		return 0, apperrors.InvalidInput("user id is required")
	}

	n, err := s.sessions.DeleteAllByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	sessionsRevokedTotal.WithLabelValues(reasonLogoutAll).Add(float64(n))

	if n > 0 {
		if err := s.events.PublishSessionsRevoked(ctx, userID, n); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish session.revoked event",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "user signed out everywhere",
		slog.String("user_id", userID),
		slog.Int64("sessions", n),
	)
	return n, nil
}

// PurgeExpiredSessions removes every session whose expiry has passed.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	sessionsRevokedTotal.WithLabelValues(reasonExpired).Add(float64(n))
	return n, nil
}

// mint signs a token pair for the user and builds the session that will
// hold the refresh token's digest.
func (s *AuthService) mint(userID, email string, meta domain.SessionMetadata) (*domain.AuthResult, *domain.Session, error) {
	access, _, err := s.tokens.GenerateAccessToken(userID, email)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}
	refresh, refreshExpiresAt, err := s.tokens.GenerateRefreshToken(userID, email)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	sess := &domain.Session{
		ID:               uuid.NewString(),
		UserID:           userID,
		RefreshTokenHash: domain.HashRefreshToken(refresh),
		ExpiresAt:        refreshExpiresAt,
		UserAgent:        meta.UserAgent,
		ClientIP:         meta.ClientIP,
		CreatedAt:        s.now().UTC(),
	}
	res := &domain.AuthResult{
		TokenPair:        domain.TokenPair{AccessToken: access, RefreshToken: refresh},
		UserID:           userID,
		Email:            email,
		RefreshExpiresAt: refreshExpiresAt,
	}
	return res, sess, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

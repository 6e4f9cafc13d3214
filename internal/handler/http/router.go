package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wnsxk2/jt-log/internal/auth"
	"github.com/wnsxk2/jt-log/internal/service"
	apperrors "github.com/wnsxk2/jt-log/pkg/errors"
	"github.com/wnsxk2/jt-log/pkg/health"
	"github.com/wnsxk2/jt-log/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the HTTP layer.
const ServiceName = "auth"

// RouterConfig holds everything NewRouter wires together.
type RouterConfig struct {
	AuthService    *service.AuthService
	ProfileService *service.ProfileService
	JWTManager     *auth.JWTManager
	Health         *health.Handler
	RateLimiter    *middleware.RateLimiter
	CORS           middleware.CORSConfig
	PprofCIDRs     []string
	SecureCookies  bool
	Logger         *slog.Logger
}

type interceptor = func(http.Handler) http.Handler

// route is one API endpoint with its interceptors, applied in order.
type route struct {
	method       string
	pattern      string
	interceptors []interceptor
	handler      http.HandlerFunc
}

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, cfg.Logger)

	for _, rt := range apiRoutes(cfg) {
		r.With(rt.interceptors...).Method(rt.method, rt.pattern, rt.handler)
	}

	return r
}

func apiRoutes(cfg RouterConfig) []route {
	cookies := refreshCookies{secure: cfg.SecureCookies, maxAge: cfg.JWTManager.RefreshTTL()}
	authHandler := NewAuthHandler(cfg.AuthService, cookies, cfg.Logger)
	profileHandler := NewProfileHandler(cfg.ProfileService, cfg.Logger)

	var (
		rateLimit = cfg.RateLimiter.Middleware
		jsonBody  = middleware.ContentTypeJSON
		noStore   = middleware.NoStore
		guard     = middleware.Auth(TokenValidator(cfg.JWTManager))
	)

	return []route{
		{http.MethodPost, "/api/auth/sign-up", []interceptor{rateLimit, jsonBody}, authHandler.SignUp},
		{http.MethodPost, "/api/auth/sign-in", []interceptor{rateLimit, jsonBody, noStore}, authHandler.SignIn},
		{http.MethodPost, "/api/auth/refresh", []interceptor{noStore}, authHandler.Refresh},
		{http.MethodPost, "/api/auth/logout", []interceptor{noStore}, authHandler.Logout},
		{http.MethodPost, "/api/auth/logout-all", []interceptor{guard, noStore}, authHandler.LogoutAll},

		{http.MethodGet, "/api/users/me", []interceptor{guard}, profileHandler.GetMe},
		{http.MethodPatch, "/api/users/me", []interceptor{guard, jsonBody}, profileHandler.UpdateMe},
		{http.MethodGet, "/api/users/{userId}", nil, profileHandler.Get},
	}
}

// TokenValidator adapts the JWT manager to the auth middleware. Expired
// access tokens are reported as apperrors.ErrTokenExpired so the middleware
// answers with TOKEN_EXPIRED.
func TokenValidator(m *auth.JWTManager) middleware.TokenValidator {
	return func(token string) (*middleware.Claims, error) {
		claims, err := m.ValidateAccessToken(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				return nil, fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
			}
			return nil, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
		}
		return &middleware.Claims{UserID: claims.UserID(), Email: claims.Email}, nil
	}
}

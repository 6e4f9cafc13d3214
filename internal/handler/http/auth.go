package http

import (
	"log/slog"
	"net/http"

	"github.com/wnsxk2/jt-log/internal/domain"
	"github.com/wnsxk2/jt-log/internal/service"
	"github.com/wnsxk2/jt-log/pkg/httputil"
	"github.com/wnsxk2/jt-log/pkg/logger"
	"github.com/wnsxk2/jt-log/pkg/middleware"
	"github.com/wnsxk2/jt-log/pkg/validator"
)

// Messages returned in success bodies.
const (
	MsgSignedUp  = "회원가입이 완료되었습니다."
	MsgLoggedOut = "로그아웃되었습니다."
)

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service *service.AuthService
	cookies refreshCookies
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, cookies refreshCookies, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, cookies: cookies, logger: logger}
}

// --- Request DTOs ---

// SignUpRequest is the JSON request body for sign-up.
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Nickname string `json:"nickname" validate:"required,max=30"`
}

// SignInRequest is the JSON request body for sign-in.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// --- Response types ---

// SignUpResponse is returned after a successful sign-up.
type SignUpResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Message  string `json:"message"`
}

// TokenResponse carries a new access token. The matching refresh token is
// set as a cookie.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	ID          string `json:"id"`
	Email       string `json:"email"`
}

// MessageResponse carries a single message.
type MessageResponse struct {
	Message string `json:"message"`
}

// LogoutAllResponse reports how many sessions were ended.
type LogoutAllResponse struct {
	Count int64 `json:"count"`
}

// --- Handlers ---

// SignUp handles POST /api/auth/sign-up
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.service.SignUp(r.Context(), service.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		Nickname: req.Nickname,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, SignUpResponse{
		ID:       res.UserID,
		Email:    res.Email,
		Nickname: res.Nickname,
		Message:  MsgSignedUp,
	})
}

// SignIn handles POST /api/auth/sign-in
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.service.SignIn(r.Context(), service.SignInInput{
		Email:    req.Email,
		Password: req.Password,
	}, sessionMetadata(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.writeTokens(w, res)
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Refresh(r.Context(), refreshToken(r), sessionMetadata(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.writeTokens(w, res)
}

// Logout handles POST /api/auth/logout. It always succeeds and always
// clears the cookie; store failures are only logged.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), refreshToken(r)); err != nil {
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "failed to delete session on logout",
			slog.String("error", err.Error()),
		)
	}

	h.cookies.clear(w)
	httputil.WriteData(w, http.StatusCreated, MessageResponse{Message: MsgLoggedOut})
}

// LogoutAll handles POST /api/auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.LogoutAll(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.clear(w)
	httputil.WriteData(w, http.StatusCreated, LogoutAllResponse{Count: n})
}

func (h *AuthHandler) writeTokens(w http.ResponseWriter, res *domain.AuthResult) {
	h.cookies.set(w, res.RefreshToken)
	httputil.WriteData(w, http.StatusCreated, TokenResponse{
		AccessToken: res.AccessToken,
		ID:          res.UserID,
		Email:       res.Email,
	})
}

func sessionMetadata(r *http.Request) domain.SessionMetadata {
	return domain.SessionMetadata{
		UserAgent: r.UserAgent(),
		ClientIP:  middleware.ClientIP(r),
	}
}

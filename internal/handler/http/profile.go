package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wnsxk2/jt-log/internal/service"
	"github.com/wnsxk2/jt-log/pkg/httputil"
	"github.com/wnsxk2/jt-log/pkg/middleware"
	"github.com/wnsxk2/jt-log/pkg/validator"
)

// ProfileHandler handles HTTP requests for user profiles.
type ProfileHandler struct {
	service *service.ProfileService
	logger  *slog.Logger
}

// NewProfileHandler creates a new profile HTTP handler.
func NewProfileHandler(svc *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{service: svc, logger: logger}
}

// UpdateProfileRequest is the JSON request body for profile updates. Absent
// fields are left unchanged.
type UpdateProfileRequest struct {
	Nickname  *string `json:"nickname" validate:"omitempty,min=1,max=30"`
	Bio       *string `json:"bio" validate:"omitempty,max=500"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}

// GetMe handles GET /api/users/me
func (h *ProfileHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	h.writeProfile(w, r, middleware.UserIDFromContext(r.Context()))
}

// UpdateMe handles PATCH /api/users/me
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	p, err := h.service.UpdateProfile(r.Context(), middleware.UserIDFromContext(r.Context()), service.UpdateProfileInput{
		Nickname:  req.Nickname,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, p)
}

// Get handles GET /api/users/{userId}
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.writeProfile(w, r, chi.URLParam(r, "userId"))
}

func (h *ProfileHandler) writeProfile(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

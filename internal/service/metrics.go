package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	resultSuccess            = "success"
	resultInvalidCredentials = "invalid_credentials"
	resultSocialAccount      = "social_account"
	resultInvalidToken       = "invalid_token"
	resultSessionNotFound    = "session_not_found"
	resultSessionExpired     = "session_expired"
	resultRotationConflict   = "rotation_conflict"
	resultError              = "error"
)

// Revocation reasons.
const (
	reasonLogout    = "logout"
	reasonLogoutAll = "logout_all"
	reasonExpired   = "expired"
)

var (
	signInTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_sign_in_total",
			Help: "Sign-in attempts by result.",
		},
		[]string{"result"},
	)

	refreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_refresh_total",
			Help: "Refresh token rotations by result.",
		},
		[]string{"result"},
	)

	sessionsRevokedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_sessions_revoked_total",
			Help: "Sessions removed by reason.",
		},
		[]string{"reason"},
	)
)

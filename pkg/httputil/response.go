package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/wnsxk2/jt-log/pkg/errors"
	"github.com/wnsxk2/jt-log/pkg/logger"
	"github.com/wnsxk2/jt-log/pkg/validator"
)

// Result values carried in every response envelope.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Response is the standard JSON response envelope.
type Response struct {
	Result string         `json:"result"`
	Data   any            `json:"data,omitempty"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes a success envelope wrapping data.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Response{Result: ResultSuccess, Data: data})
}

// WriteErrorCode writes an error envelope with an explicit code and message.
func WriteErrorCode(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, Response{
		Result: ResultError,
		Error:  &ErrorResponse{Code: code, Message: message},
	})
}

// WriteError translates err into the standard error envelope. It is the single
// point where domain errors become HTTP responses. Bodies depend only on the
// error, never on request state, so equal failures produce identical bytes.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	// Prefer the request-scoped logger (correlation_id, user_id, trace ids).
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			logInternal(l, r, err)
		}
		WriteErrorCode(w, appErr.Status, appErr.Code, appErr.Message)
		return
	}

	status := apperrors.HTTPStatus(err)
	code := apperrors.CodeInternal
	message := "an internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		code = apperrors.CodeNotFound
		message = "resource not found"
	case errors.Is(err, apperrors.ErrAlreadyExists), errors.Is(err, apperrors.ErrConflict):
		code = apperrors.CodeConflict
		message = "resource already exists"
	case errors.Is(err, apperrors.ErrInvalidInput):
		code = apperrors.CodeInvalidInput
		message = "invalid input"
	case errors.Is(err, apperrors.ErrTokenExpired):
		code = apperrors.CodeTokenExpired
		message = "token expired"
	case errors.Is(err, apperrors.ErrUnauthorized):
		code = apperrors.CodeUnauthorized
		message = "unauthorized"
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		logInternal(l, r, err)
	}

	WriteErrorCode(w, status, code, message)
}

func logInternal(l *slog.Logger, r *http.Request, err error) {
	l.ErrorContext(r.Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
}

// WriteValidationError writes a standardized validation error response.
// It handles ValidationError from the validator package and returns field-level errors.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Result: ResultError,
			Error: &ErrorResponse{
				Code:    apperrors.CodeValidation,
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	WriteErrorCode(w, http.StatusBadRequest, apperrors.CodeInvalidInput, "invalid request body")
}

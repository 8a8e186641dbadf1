package httpx

import (
	"errors"
	"net/http"

	"github.com/nimbus-stack/nimbus/internal/shared"
)

// Stable error codes exposed to API clients.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeAccessDenied       = "ACCESS_DENIED"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeDuplicateEmail     = "DUPLICATE_EMAIL"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// RespondError maps domain errors to HTTP responses. Internal detail never
// reaches the client; unexpected errors collapse to a generic 500.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		Error(w, http.StatusUnauthorized, CodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, shared.ErrInvalidToken):
		Error(w, http.StatusUnauthorized, CodeInvalidToken, "invalid token")
	case errors.Is(err, shared.ErrForbidden):
		Error(w, http.StatusForbidden, CodeAccessDenied, "access denied")
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, CodeUserNotFound, "user not found")
	case errors.Is(err, shared.ErrDuplicateEmail):
		Error(w, http.StatusConflict, CodeDuplicateEmail, "email already registered")
	case errors.Is(err, shared.ErrRateLimited):
		Error(w, http.StatusTooManyRequests, CodeRateLimited, "too many attempts, try again later")
	default:
		Error(w, http.StatusInternalServerError, CodeInternalError, "internal error")
	}
}

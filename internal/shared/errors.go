package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure, regardless of cause.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates a malformed, tampered or expired token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrDuplicateEmail occurs when signing up with an already registered email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrForbidden indicates the caller lacks the required role.
	ErrForbidden = errors.New("access denied")
	// ErrRateLimited occurs when the login throttle rejects an attempt.
	ErrRateLimited = errors.New("too many attempts")
)

package auth

import "errors"

// Domain errors.
var (
	// ErrInvalidCredentials is returned when the password does not match.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTooManyAttempts is returned while logins are locked out.
	ErrTooManyAttempts = errors.New("auth: too many failed attempts")

	// ErrTokenInvalid is returned for bad, expired or tampered tokens.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrInvalidHash is returned for a malformed operator password hash.
	ErrInvalidHash = errors.New("auth: invalid password hash")

	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("auth: empty password")
)

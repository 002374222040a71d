package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. The same error is
	// returned for an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive indicates the account exists but is disabled.
	ErrAccountInactive = errors.New("account inactive")
	// ErrEmailTaken indicates a registration against an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrPasswordMismatch indicates the confirmation did not match.
	ErrPasswordMismatch = errors.New("password confirmation mismatch")
	// ErrRefreshTokenInvalid covers missing, expired and already-rotated
	// refresh tokens. The cases are never distinguished to the caller.
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	// ErrUnauthorized indicates no verified caller on the request.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates an authenticated caller missing permissions.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates a request payload failed validation.
	ErrValidation = errors.New("validation failed")
	// ErrSystemRole indicates an attempt to rename or delete a system role.
	ErrSystemRole = errors.New("system role is immutable")
	// ErrNameTaken indicates a unique-name collision, e.g. a duplicate role.
	ErrNameTaken = errors.New("name already in use")
)

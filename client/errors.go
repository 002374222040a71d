package client

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned by Login for a bad email/password
	// pair or a deactivated account.
	ErrInvalidCredentials = errors.New("client: invalid credentials")
	// ErrSessionExpired means the refresh token was rejected; the session
	// has been reset to anonymous and the user must sign in again.
	ErrSessionExpired = errors.New("client: session expired")
	// ErrForbidden means the server denied a request for lack of
	// permission. The session stays authenticated.
	ErrForbidden = errors.New("client: forbidden")
)

// APIError carries a non-2xx problem response that has no dedicated
// sentinel.
type APIError struct {
	Status int
	Title  string
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: api error %d %s: %s", e.Status, e.Title, e.Detail)
}

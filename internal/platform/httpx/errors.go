// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-hq/meridian/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Invalid Credentials", "email or password is incorrect")
	case errors.Is(err, shared.ErrAccountInactive):
		Problem(w, http.StatusUnauthorized, "Account Inactive", "this account has been deactivated")
	case errors.Is(err, shared.ErrRefreshTokenInvalid):
		Problem(w, http.StatusUnauthorized, "Refresh Token Invalid", "the refresh token is missing, expired or already used")
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "missing required permission")
	case errors.Is(err, shared.ErrEmailTaken):
		Problem(w, http.StatusConflict, "Email Already Exists", "an account with this email already exists")
	case errors.Is(err, shared.ErrNameTaken):
		Problem(w, http.StatusConflict, "Name Already Exists", "an entry with this name already exists")
	case errors.Is(err, shared.ErrPasswordMismatch):
		Problem(w, http.StatusBadRequest, "Password Mismatch", "password confirmation does not match")
	case errors.Is(err, shared.ErrSystemRole):
		Problem(w, http.StatusBadRequest, "System Role", "system roles cannot be renamed or deleted")
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "resource not found")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

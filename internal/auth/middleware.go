package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridian-hq/meridian/internal/platform/httpx"
	"github.com/meridian-hq/meridian/internal/shared"
)

// Authenticator verifies bearer access tokens and attaches the decoded
// identity to the request context.
type Authenticator struct {
	tokens *TokenManager
	logger *slog.Logger
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(tokens *TokenManager, logger *slog.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, logger: logger}
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := a.identityFromRequest(r)
		if !ok {
			httpx.RespondError(w, shared.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

// Optional attaches the identity when a valid bearer token is present and
// lets the request through either way. Logout uses it: the endpoint must
// work for callers whose access token already expired.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := a.identityFromRequest(r); ok {
			r = r.WithContext(shared.ContextWithIdentity(r.Context(), identity))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) identityFromRequest(r *http.Request) (*shared.Identity, bool) {
	header := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		return nil, false
	}
	claims, err := a.tokens.ParseAccess(raw)
	if err != nil {
		return nil, false
	}
	identity, err := claims.Identity()
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("access token with bad subject", slog.Any("error", err))
		}
		return nil, false
	}
	return identity, true
}

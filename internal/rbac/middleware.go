package rbac

import (
	"log/slog"
	"net/http"

	"github.com/meridian-hq/meridian/internal/observability"
	"github.com/meridian-hq/meridian/internal/platform/httpx"
	"github.com/meridian-hq/meridian/internal/shared"
)

// Guard enforces declared permission requirements at the request boundary.
// It is pure: it trusts the permission snapshot embedded in the verified
// access token and never queries storage.
type Guard struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Require ensures the caller holds every listed permission (AND semantics).
// An empty requirement always allows. A caller holding SUPER_ADMIN is
// allowed unconditionally.
func (g Guard) Require(perms ...string) func(http.Handler) http.Handler {
	return g.check(perms, hasAllPermissions)
}

// RequireAny ensures the caller holds at least one listed permission.
func (g Guard) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return g.check(perms, hasAnyPermission)
}

func (g Guard) check(required []string, match func(*shared.Identity, []string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			identity := shared.IdentityFromContext(r.Context())
			if identity == nil {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			if identity.IsSuperAdmin() || match(identity, required) {
				next.ServeHTTP(w, r)
				return
			}
			if g.Logger != nil {
				g.Logger.Warn("permission denied",
					slog.Int64("user_id", identity.UserID),
					slog.String("path", r.URL.Path),
					slog.Any("required", required))
			}
			g.Metrics.ObserveDenial()
			httpx.RespondError(w, shared.ErrForbidden)
		})
	}
}

func hasAllPermissions(identity *shared.Identity, required []string) bool {
	for _, p := range required {
		if !identity.HasPermission(p) {
			return false
		}
	}
	return true
}

func hasAnyPermission(identity *shared.Identity, required []string) bool {
	for _, p := range required {
		if identity.HasPermission(p) {
			return true
		}
	}
	return false
}

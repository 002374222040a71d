package shared

import "context"

// Identity is the verified caller attached to a request context. It is a
// snapshot decoded from the access token, never a live storage query.
type Identity struct {
	UserID      int64
	Email       string
	Roles       []string
	Permissions []string
}

// IsSuperAdmin reports whether the identity carries the SUPER_ADMIN role.
func (id *Identity) IsSuperAdmin() bool {
	if id == nil {
		return false
	}
	for _, r := range id.Roles {
		if r == RoleSuperAdmin {
			return true
		}
	}
	return false
}

// HasPermission reports whether the identity's permission snapshot contains p.
func (id *Identity) HasPermission(p string) bool {
	if id == nil {
		return false
	}
	for _, granted := range id.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

type identityContextKey struct{}

// ContextWithIdentity stores the verified identity in context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the verified identity from context.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}

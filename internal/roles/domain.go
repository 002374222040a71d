package roles

import "github.com/meridian-hq/meridian/internal/rbac"

// Role and Permission are owned by the rbac package; this module is the
// administrative surface over the same graph.
type (
	Role       = rbac.Role
	Permission = rbac.Permission
)

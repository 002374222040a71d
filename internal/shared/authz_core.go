package shared

// System role names. System roles cannot be renamed or deleted.
const (
	// RoleSuperAdmin bypasses every permission check.
	RoleSuperAdmin = "SUPER_ADMIN"
	// RoleDefault is assigned to every newly registered account.
	RoleDefault = "USER"
)

// Core platform permissions.
const (
	PermUsersView        = "users.view"
	PermUsersEdit        = "users.edit"
	PermUsersManageRoles = "users.manage_roles"

	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermPermissionsView = "permissions.view"

	PermDashboardView = "dashboard.view"

	PermAuditView = "audit.view"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermUsersManageRoles,
		PermRolesView,
		PermRolesEdit,
		PermPermissionsView,
		PermDashboardView,
		PermAuditView,
	}
}

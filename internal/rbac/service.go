package rbac

import (
	"context"
	"sort"
)

// Service computes effective permissions from the role/permission graph.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ResolveForUser returns the user's role names and the effective permission
// set: the union of "resource.action" strings reachable through any assigned
// role. Duplicates collapse; the result is sorted for determinism. A user
// with no roles resolves to empty slices, not an error.
func (s *Service) ResolveForUser(ctx context.Context, userID int64) (roleNames []string, permissions []string, err error) {
	roles, err := s.repo.RolesForUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	roleNames = make([]string, 0, len(roles))
	seen := make(map[string]struct{})
	for _, role := range roles {
		roleNames = append(roleNames, role.Name)
		perms, err := s.repo.PermissionsForRole(ctx, role.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, perm := range perms {
			seen[perm.Name()] = struct{}{}
		}
	}

	permissions = make([]string, 0, len(seen))
	for name := range seen {
		permissions = append(permissions, name)
	}
	sort.Strings(permissions)
	return roleNames, permissions, nil
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// RolesForUser returns the roles assigned to a user.
func (s *Service) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	return s.repo.RolesForUser(ctx, userID)
}

// AssignRoleByName assigns the named role to a user.
func (s *Service) AssignRoleByName(ctx context.Context, userID int64, name string) error {
	role, err := s.repo.RoleByName(ctx, name)
	if err != nil {
		return err
	}
	return s.repo.AssignRole(ctx, userID, role.ID)
}

// ReplaceUserRoles swaps the full role set of a user.
func (s *Service) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return s.repo.ReplaceUserRoles(ctx, userID, roleIDs)
}

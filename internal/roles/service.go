package roles

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/meridian-hq/meridian/internal/shared"
)

// ServiceConfig collects Service dependencies.
type ServiceConfig struct {
	Logger *slog.Logger
	Repo   RepositoryPort
	Audit  *shared.AuditLogger
}

// Service handles role administration. System roles (SUPER_ADMIN, USER) can
// change description and permission set but never name, and cannot be
// deleted.
type Service struct {
	cfg ServiceConfig
}

// NewService builds a Service instance.
func NewService(cfg ServiceConfig) *Service {
	return &Service{cfg: cfg}
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.cfg.Repo.List(ctx)
}

// Get returns a role together with its permission set.
func (s *Service) Get(ctx context.Context, id int64) (Role, []Permission, error) {
	role, err := s.cfg.Repo.FindByID(ctx, id)
	if err != nil {
		return Role{}, nil, err
	}
	perms, err := s.cfg.Repo.PermissionsForRole(ctx, id)
	if err != nil {
		return Role{}, nil, err
	}
	return role, perms, nil
}

// Create adds a new non-system role.
func (s *Service) Create(ctx context.Context, actorID int64, name, description string) (Role, error) {
	role, err := s.cfg.Repo.Create(ctx, name, description)
	if err != nil {
		return Role{}, err
	}
	s.audit(ctx, actorID, role.ID, map[string]any{"op": "create", "name": name})
	return role, nil
}

// Update renames or re-describes a role. Renaming a system role fails.
func (s *Service) Update(ctx context.Context, actorID, id int64, name, description string) (Role, error) {
	current, err := s.cfg.Repo.FindByID(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if current.IsSystem && name != current.Name {
		return Role{}, shared.ErrSystemRole
	}
	role, err := s.cfg.Repo.Update(ctx, id, name, description)
	if err != nil {
		return Role{}, err
	}
	s.audit(ctx, actorID, id, map[string]any{"op": "update", "name": name})
	return role, nil
}

// Delete removes a non-system role and its assignments.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	current, err := s.cfg.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current.IsSystem {
		return shared.ErrSystemRole
	}
	if err := s.cfg.Repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actorID, id, map[string]any{"op": "delete", "name": current.Name})
	return nil
}

// ReplacePermissions swaps the role's permission set. Issued access tokens
// keep their snapshot; the change lands at the next login or refresh.
func (s *Service) ReplacePermissions(ctx context.Context, actorID, roleID int64, permissionIDs []int64) ([]Permission, error) {
	if _, err := s.cfg.Repo.FindByID(ctx, roleID); err != nil {
		return nil, err
	}
	if err := s.cfg.Repo.ReplacePermissions(ctx, roleID, permissionIDs); err != nil {
		return nil, err
	}
	perms, err := s.cfg.Repo.PermissionsForRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, roleID, map[string]any{"op": "replace_permissions", "permission_ids": permissionIDs})
	return perms, nil
}

func (s *Service) audit(ctx context.Context, actorID, roleID int64, meta map[string]any) {
	if s.cfg.Audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   shared.AuditActionRoleMutate,
		Entity:   "role",
		EntityID: strconv.FormatInt(roleID, 10),
		Meta:     meta,
	}
	if err := s.cfg.Audit.Record(ctx, log); err != nil && s.cfg.Logger != nil {
		s.cfg.Logger.Warn("audit record", slog.Any("error", err))
	}
}

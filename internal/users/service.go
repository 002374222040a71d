package users

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-hq/meridian/internal/rbac"
	"github.com/meridian-hq/meridian/internal/shared"
)

// RoleDirectory is the slice of the role graph this module needs.
// *rbac.Service satisfies it.
type RoleDirectory interface {
	RolesForUser(ctx context.Context, userID int64) ([]rbac.Role, error)
	ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
}

// SessionRevoker ends stored refresh sessions when an account is disabled.
type SessionRevoker interface {
	DeleteAllForUser(ctx context.Context, userID int64) error
}

// ServiceConfig collects Service dependencies.
type ServiceConfig struct {
	Logger     *slog.Logger
	Repo       RepositoryPort
	Roles      RoleDirectory
	Sessions   SessionRevoker
	Audit      *shared.AuditLogger
	BcryptCost int
}

// Service handles user management business logic.
type Service struct {
	cfg ServiceConfig
}

// NewService builds a Service instance.
func NewService(cfg ServiceConfig) *Service {
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{cfg: cfg}
}

// List returns one page of users with pagination metadata.
func (s *Service) List(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	items, total, err := s.cfg.Repo.List(ctx, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, perPage, total), nil
}

// Get returns a user together with the assigned roles.
func (s *Service) Get(ctx context.Context, id int64) (*User, []rbac.Role, error) {
	user, err := s.cfg.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	roles, err := s.cfg.Roles.RolesForUser(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return user, roles, nil
}

// UpdateProfile renames a user.
func (s *Service) UpdateProfile(ctx context.Context, actorID, id int64, name string) (*User, error) {
	user, err := s.cfg.Repo.UpdateProfile(ctx, id, name)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, shared.AuditActionUserUpdate, id, map[string]any{"name": name})
	return user, nil
}

// SetActive enables or disables an account. Disabling also revokes every
// stored refresh session, so the account cannot rotate its way back in;
// already-issued access tokens ride out their short TTL.
func (s *Service) SetActive(ctx context.Context, actorID, id int64, active bool) error {
	if err := s.cfg.Repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	if !active && s.cfg.Sessions != nil {
		if err := s.cfg.Sessions.DeleteAllForUser(ctx, id); err != nil && s.cfg.Logger != nil {
			s.cfg.Logger.Warn("revoke sessions on deactivate", slog.Int64("user_id", id), slog.Any("error", err))
		}
	}
	s.audit(ctx, actorID, shared.AuditActionUserUpdate, id, map[string]any{"is_active": active})
	return nil
}

// ReplaceRoles swaps the user's role set. The change shows up in tokens at
// the next login or refresh; issued access tokens keep their snapshot.
func (s *Service) ReplaceRoles(ctx context.Context, actorID, userID int64, roleIDs []int64) ([]rbac.Role, error) {
	if _, err := s.cfg.Repo.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.cfg.Roles.ReplaceUserRoles(ctx, userID, roleIDs); err != nil {
		return nil, err
	}
	roles, err := s.cfg.Roles.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, shared.AuditActionRolesChange, userID, map[string]any{"role_ids": roleIDs})
	return roles, nil
}

// ChangePassword verifies the current password before storing the new one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next, confirm string) error {
	if next != confirm {
		return shared.ErrPasswordMismatch
	}
	hash, err := s.cfg.Repo.PasswordHash(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(current)); err != nil {
		return shared.ErrInvalidCredentials
	}
	newHash, err := bcrypt.GenerateFromPassword([]byte(next), s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.cfg.Repo.UpdatePassword(ctx, userID, string(newHash)); err != nil {
		return err
	}
	s.audit(ctx, userID, shared.AuditActionUserUpdate, userID, map[string]any{"password_changed": true})
	return nil
}

func (s *Service) audit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.cfg.Audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	}
	if err := s.cfg.Audit.Record(ctx, log); err != nil && s.cfg.Logger != nil {
		s.cfg.Logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

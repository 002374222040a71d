package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/meridian-hq/meridian/internal/observability"
	"github.com/meridian-hq/meridian/internal/shared"
	"github.com/meridian-hq/meridian/jobs"
)

// PermissionResolver computes the effective permission set for a user.
type PermissionResolver interface {
	ResolveForUser(ctx context.Context, userID int64) (roles []string, permissions []string, err error)
}

// RoleAssigner grants the default role to newly registered users.
type RoleAssigner interface {
	AssignRoleByName(ctx context.Context, userID int64, name string) error
}

// TaskEnqueuer hands background tasks to the worker. *asynq.Client satisfies it.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ServiceConfig collects the dependencies of the token issuance service.
type ServiceConfig struct {
	Logger     *slog.Logger
	Repo       Repository
	Store      TokenStore
	Tokens     *TokenManager
	Resolver   PermissionResolver
	Roles      RoleAssigner
	Audit      *shared.AuditLogger
	Metrics    *observability.Metrics
	Tasks      TaskEnqueuer
	RefreshTTL time.Duration
	// RememberTTL applies when the caller asks to stay signed in.
	RememberTTL time.Duration
	BcryptCost  int
}

// Service owns the login/register/refresh/logout protocol.
type Service struct {
	cfg ServiceConfig
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.RememberTTL <= 0 {
		cfg.RememberTTL = 30 * 24 * time.Hour
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{cfg: cfg}
}

var emailFolder = cases.Fold()

// NormalizeEmail folds an email address for caseless lookup and storage.
func NormalizeEmail(email string) string {
	return emailFolder.String(email)
}

// Login validates credentials and issues a token pair. Unknown email and
// wrong password produce the same error; an inactive account is reported
// only after the password verified, so the distinction leaks nothing to
// password guessing.
func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool) (*Result, error) {
	user, err := s.cfg.Repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		s.cfg.Metrics.ObserveLogin("invalid_credentials")
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.cfg.Metrics.ObserveLogin("invalid_credentials")
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		s.cfg.Metrics.ObserveLogin("inactive")
		return nil, shared.ErrAccountInactive
	}

	ttl := s.cfg.RefreshTTL
	if rememberMe {
		ttl = s.cfg.RememberTTL
	}
	result, err := s.issueTokens(ctx, user, ttl)
	if err != nil {
		return nil, err
	}
	s.cfg.Metrics.ObserveLogin("success")
	s.audit(ctx, user.ID, shared.AuditActionLogin, map[string]any{"remember_me": rememberMe})
	return result, nil
}

// Register creates an account with the default role and issues tokens.
func (s *Service) Register(ctx context.Context, email, name, password, passwordConfirm string) (*Result, error) {
	if password != passwordConfirm {
		return nil, shared.ErrPasswordMismatch
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	user, err := s.cfg.Repo.Create(ctx, NormalizeEmail(email), name, string(hash))
	if err != nil {
		return nil, err
	}
	if err := s.cfg.Roles.AssignRoleByName(ctx, user.ID, shared.RoleDefault); err != nil {
		return nil, err
	}
	s.enqueueWelcome(ctx, user)

	result, err := s.issueTokens(ctx, user, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, user.ID, shared.AuditActionRegister, nil)
	return result, nil
}

// Refresh performs the storage-level rotation for an already-verified
// refresh token. The Consume call is atomic: a stale, deleted or expired
// record never authorizes a refresh, and only one of two racing callers
// for the same token id succeeds.
func (s *Service) Refresh(ctx context.Context, userID int64, tokenID string) (*Result, error) {
	rec, err := s.cfg.Store.Consume(ctx, tokenID)
	if err != nil {
		s.cfg.Metrics.ObserveRotation("invalid")
		return nil, shared.ErrRefreshTokenInvalid
	}
	if rec.UserID != userID {
		s.cfg.Metrics.ObserveRotation("invalid")
		return nil, shared.ErrRefreshTokenInvalid
	}
	user, err := s.cfg.Repo.FindByID(ctx, userID)
	if err != nil {
		s.cfg.Metrics.ObserveRotation("invalid")
		return nil, shared.ErrRefreshTokenInvalid
	}
	if !user.IsActive {
		s.cfg.Metrics.ObserveRotation("inactive")
		return nil, shared.ErrAccountInactive
	}

	// Permissions are re-resolved here, so role edits since the original
	// login take effect on the new access token.
	result, err := s.issueTokens(ctx, user, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	s.cfg.Metrics.ObserveRotation("success")
	s.audit(ctx, user.ID, shared.AuditActionRefresh, map[string]any{"rotated": tokenID})
	return result, nil
}

// Logout ends one session when a token id is supplied, or every session for
// the user when it is empty. The distinction is deliberate policy.
func (s *Service) Logout(ctx context.Context, userID int64, tokenID string) error {
	if tokenID != "" {
		if _, err := s.cfg.Store.Consume(ctx, tokenID); err != nil && !errors.Is(err, shared.ErrRefreshTokenInvalid) {
			return err
		}
	} else {
		if err := s.cfg.Store.DeleteAllForUser(ctx, userID); err != nil {
			return err
		}
	}
	s.audit(ctx, userID, shared.AuditActionLogout, map[string]any{"all_sessions": tokenID == ""})
	return nil
}

func (s *Service) issueTokens(ctx context.Context, user *User, refreshTTL time.Duration) (*Result, error) {
	roles, permissions, err := s.cfg.Resolver.ResolveForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	accessToken, err := s.cfg.Tokens.SignAccess(user, roles, permissions)
	if err != nil {
		return nil, err
	}

	rec := RefreshTokenRecord{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(refreshTTL),
	}
	if err := s.cfg.Store.Create(ctx, rec); err != nil {
		return nil, err
	}
	refreshToken, err := s.cfg.Tokens.SignRefresh(user.ID, rec.ID, rec.ExpiresAt)
	if err != nil {
		return nil, err
	}

	return &Result{
		User:          user,
		Roles:         roles,
		Permissions:   permissions,
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		ExpiresIn:     int64(s.cfg.Tokens.AccessTTL().Seconds()),
		RefreshExpiry: rec.ExpiresAt,
	}, nil
}

func (s *Service) enqueueWelcome(ctx context.Context, user *User) {
	if s.cfg.Tasks == nil {
		return
	}
	task, err := jobs.NewWelcomeEmailTask(user.Email, user.Name)
	if err == nil {
		_, err = s.cfg.Tasks.EnqueueContext(ctx, task)
	}
	if err != nil && s.cfg.Logger != nil {
		s.cfg.Logger.Warn("enqueue welcome email", slog.Any("error", err))
	}
}

func (s *Service) audit(ctx context.Context, actorID int64, action string, meta map[string]any) {
	if s.cfg.Audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(actorID, 10),
		Meta:     meta,
	}
	if err := s.cfg.Audit.Record(ctx, log); err != nil && s.cfg.Logger != nil {
		s.cfg.Logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-hq/meridian/internal/app"
	"github.com/meridian-hq/meridian/internal/audit"
	audithttp "github.com/meridian-hq/meridian/internal/audit/http"
	"github.com/meridian-hq/meridian/internal/auth"
	"github.com/meridian-hq/meridian/internal/observability"
	"github.com/meridian-hq/meridian/internal/platform/cache"
	"github.com/meridian-hq/meridian/internal/platform/db"
	"github.com/meridian-hq/meridian/internal/rbac"
	"github.com/meridian-hq/meridian/internal/roles"
	"github.com/meridian-hq/meridian/internal/shared"
	"github.com/meridian-hq/meridian/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	taskClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Warn("task client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	rbacRepo := rbac.NewRepository(pool)
	rbacService := rbac.NewService(rbacRepo)
	guard := rbac.Guard{Logger: logger, Metrics: metrics}

	tokens := auth.NewTokenManager(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL)
	tokenStore := auth.NewTokenStore(redisClient, cfg.RefreshTTLRemember+24*time.Hour)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(auth.ServiceConfig{
		Logger:      logger,
		Repo:        authRepo,
		Store:       tokenStore,
		Tokens:      tokens,
		Resolver:    rbacService,
		Roles:       rbacService,
		Audit:       auditLogger,
		Metrics:     metrics,
		Tasks:       taskClient,
		RefreshTTL:  cfg.RefreshTTL,
		RememberTTL: cfg.RefreshTTLRemember,
		BcryptCost:  cfg.BcryptCost,
	})
	authenticator := auth.NewAuthenticator(tokens, logger)
	authHandler := auth.NewHandler(auth.HandlerConfig{
		Logger:        logger,
		Service:       authService,
		Tokens:        tokens,
		Authenticator: authenticator,
		RateLimit:     app.CredentialRateLimit(),
		SecureCookie:  cfg.IsProduction(),
	})

	usersService := users.NewService(users.ServiceConfig{
		Logger:     logger,
		Repo:       users.NewRepository(pool),
		Roles:      rbacService,
		Sessions:   tokenStore,
		Audit:      auditLogger,
		BcryptCost: cfg.BcryptCost,
	})
	usersHandler := users.NewHandler(logger, usersService, guard)

	rolesService := roles.NewService(roles.ServiceConfig{
		Logger: logger,
		Repo:   roles.NewRepository(pool),
		Audit:  auditLogger,
	})
	rolesHandler := roles.NewHandler(logger, rolesService, guard)

	permissionsHandler := rbac.NewPermissionsHandler(logger, rbacService, guard)

	auditService := audit.NewService(audit.NewRepository(pool))
	auditHandler := audithttp.NewHandler(logger, auditService)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        authHandler,
		Authenticator:      authenticator,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
		AuditHandler:       auditHandler,
		Guard:              guard,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

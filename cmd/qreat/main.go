package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atiff-automation/QR-Eat-sub000/internal/app"
	"github.com/atiff-automation/QR-Eat-sub000/internal/audit"
	audithttp "github.com/atiff-automation/QR-Eat-sub000/internal/audit/http"
	"github.com/atiff-automation/QR-Eat-sub000/internal/auth"
	"github.com/atiff-automation/QR-Eat-sub000/internal/permissions"
	"github.com/atiff-automation/QR-Eat-sub000/internal/platform/cache"
	"github.com/atiff-automation/QR-Eat-sub000/internal/platform/db"
	"github.com/atiff-automation/QR-Eat-sub000/internal/restaurants"
	"github.com/atiff-automation/QR-Eat-sub000/internal/roles"
	roleshttp "github.com/atiff-automation/QR-Eat-sub000/internal/roles/http"
	"github.com/atiff-automation/QR-Eat-sub000/internal/session"
	"github.com/atiff-automation/QR-Eat-sub000/internal/tenant"
	"github.com/atiff-automation/QR-Eat-sub000/internal/token"
	"github.com/atiff-automation/QR-Eat-sub000/internal/users"
)

func main() {
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

	var permCache permissions.Cache
	if cfg.PermissionCacheBackend == "redis" {
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
		permCache = permissions.NewRedisCache(redisClient, cfg.PermissionCacheTTL)
	} else {
		permCache = permissions.NewMemoryCache(cfg.PermissionCacheSize, cfg.PermissionCacheTTL)
	}

	auditRepo := audit.NewRepository(pool)
	auditLogger := audit.NewLogger(auditRepo, logger)
	auditService := audit.NewService(auditRepo)

	engine := permissions.NewEngine(permissions.NewRepository(pool), permCache, logger)
	sessionStore := session.NewStore(session.NewRepository(pool), cfg.SessionTTL, logger)
	userService := users.NewService(users.NewRepository(pool))
	restaurantRepo := restaurants.NewRepository(pool)
	roleService := roles.NewService(roles.NewRepository(pool), restaurantRepo, sessionStore, engine, auditLogger)

	tokenService := token.NewService(cfg.TokenSecret, cfg.TokenIssuer, sessionStore, logger).WithAudit(auditLogger)
	bridge := token.NewBridge(cfg.TokenSecret, tokenService, sessionStore, roleService, userService, engine, restaurantRepo, auditLogger, logger)

	resolver := tenant.NewResolver(tokenService, cfg.TrustGatewayHeaders)
	guard := tenant.NewGuard(restaurantRepo, tenant.NewResourceResolver(pool), auditLogger)

	authService := auth.NewService(userService, roleService, tokenService, sessionStore, engine, restaurantRepo, auditLogger, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      auth.NewHandler(logger, authService, bridge, cfg.IsProduction()),
		RolesHandler:     roleshttp.NewHandler(logger, roleService),
		AuditHandler:     audithttp.NewHandler(logger, auditService, guard),
		TenantMiddleware: tenant.Middleware(resolver, auditLogger, logger),
		Denials:          auditLogger,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

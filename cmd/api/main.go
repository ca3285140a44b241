// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/auth"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/config"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/core"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/health"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/middleware"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/server"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/user"
	"github.com/carterperez-dev/edu-platform/auth-service/migrations"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"platform", cfg.App.Platform,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	if cfg.Database.AutoMigrate {
		if err := migrations.Up(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	revocations := auth.NewRevocationStore(
		redis.Client,
		jwtManager.SessionLifetime(),
	)
	transactor := auth.NewTransactor(
		db.DB,
		func(q core.DBTX) auth.PasswordWriter { return user.NewRepository(q) },
	)

	authSvc := auth.NewService(
		auth.NewRepository(db.DB),
		transactor,
		jwtManager,
		userSvc,
		revocations,
		auth.NewLogNotifier(logger),
		auth.OptionsFromConfig(cfg),
	)
	authHandler := auth.NewHandler(authSvc, auth.HandlerConfigFromConfig(cfg))

	healthHandler := health.NewHandler(
		health.Dependency{
			Name:    "database",
			Checker: db,
			Stats:   db.HealthStats,
		},
		health.Dependency{
			Name:    "redis",
			Checker: redis,
			Stats:   redis.HealthStats,
		},
	)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	resolver := &middleware.SessionResolver{
		Verifier:    jwtManager,
		Revocations: revocations,
		CookieName:  cfg.SessionCookie.Name,
	}
	authenticator := middleware.Authenticator(resolver)

	credentialLimiter := middleware.NewRateLimiter(
		redis.Client,
		middleware.RateLimitConfig{
			Limit:   middleware.PerHour(cfg.Reset.RateLimit, cfg.Reset.RateLimit),
			KeyFunc: middleware.KeyByIPAndEndpoint,
		},
	).Handler

	router.With(credentialLimiter).Get(cfg.SSO.ReceiverPath, authHandler.ReceiveSSO)

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, credentialLimiter)
		userHandler.RegisterRoutes(r, authenticator)
	})

	app, err := appHandler(cfg.Gate.UpstreamURL)
	if err != nil {
		return err
	}

	gatekeeper := middleware.NewGatekeeper(middleware.GateConfig{
		LoginPath:           cfg.Gate.LoginPath,
		UpgradePath:         cfg.Gate.UpgradePath,
		PendingApprovalPath: cfg.Gate.PendingApprovalPath,
		PublicPrefixes:      cfg.Gate.PublicPrefixes,
		PremiumPrefixes:     cfg.Gate.PremiumPrefixes,
		ApprovalPrefixes:    cfg.Gate.ApprovalPrefixes,
	}, resolver)

	router.With(
		gatekeeper.Handler,
		middleware.NewTieredRateLimiter(redis.Client, middleware.DefaultTierLimits).Handler,
	).Handle("/*", app)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	authSvc.Wait()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

// appHandler serves whatever sits behind the gate: the application UI when
// an upstream is configured, 404 otherwise.
func appHandler(upstream string) (http.Handler, error) {
	if upstream == "" {
		return http.NotFoundHandler(), nil
	}

	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse gate upstream: %w", err)
	}

	return httputil.NewSingleHostReverseProxy(target), nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

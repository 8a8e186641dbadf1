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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/nimbus-stack/nimbus/internal/app"
	"github.com/nimbus-stack/nimbus/internal/auth"
	"github.com/nimbus-stack/nimbus/internal/identity"
	"github.com/nimbus-stack/nimbus/internal/observability"
	"github.com/nimbus-stack/nimbus/internal/password"
	"github.com/nimbus-stack/nimbus/internal/platform/cache"
	"github.com/nimbus-stack/nimbus/internal/platform/db"
	"github.com/nimbus-stack/nimbus/internal/throttle"
	"github.com/nimbus-stack/nimbus/internal/token"
	"github.com/nimbus-stack/nimbus/jobs"
	"github.com/nimbus-stack/nimbus/migrations"
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

	if err := db.Migrate(ctx, cfg.PGDSN, migrations.Files); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	codec, err := token.NewCodec(cfg.JWTSecret)
	if err != nil {
		logger.Error("init token codec", slog.Any("error", err))
		os.Exit(1)
	}
	hasher := password.NewHasher(cfg.BcryptCost)

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	identityRepo := identity.NewRepository(dbpool)
	identityService := identity.NewService(identityRepo, hasher)

	authService := auth.NewService(identityService, hasher, codec, jobClient, logger, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	gate := auth.NewGate(authService, identityService, logger)

	metrics := observability.NewMetrics()
	loginLimiter := throttle.NewLimiter(redisClient, cfg.LoginRateLimit, cfg.LoginRateWindow)

	authHandler := auth.NewHandler(logger, authService, loginLimiter, metrics)
	identityHandler := identity.NewHandler(logger, identityService, auth.Guard{})

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Gate:            gate,
		AuthHandler:     authHandler,
		IdentityHandler: identityHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

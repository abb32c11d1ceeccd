package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag" // command-line flags

	"github.com/iliyamo/portfolio-backend/internal/config"
	"github.com/iliyamo/portfolio-backend/internal/database"
	"github.com/iliyamo/portfolio-backend/internal/handler"
	"github.com/iliyamo/portfolio-backend/internal/middleware"
	"github.com/iliyamo/portfolio-backend/internal/queue"
	"github.com/iliyamo/portfolio-backend/internal/repository"
	"github.com/iliyamo/portfolio-backend/internal/router"
	"github.com/iliyamo/portfolio-backend/internal/service"
	"github.com/iliyamo/portfolio-backend/internal/utils"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	envFile := pflag.String("env-file", "", "dotenv file to load before reading the environment")
	migrateOnly := pflag.Bool("migrate", false, "apply the database schema and exit")
	seedOnly := pflag.Bool("seed-admin", false, "create the administrator account from ADMIN_* and exit")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := setupLogger(cfg.Env)

	if err := run(cfg, logger, *migrateOnly, *seedOnly); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case config.EnvDevelopment:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvTest:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	default:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

func run(cfg config.Config, logger *slog.Logger, migrateOnly, seedOnly bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connected", "driver", cfg.DB.Driver)

	if err := database.Migrate(ctx, db, cfg.DB.Driver); err != nil {
		return err
	}
	if migrateOnly {
		logger.Info("schema applied")
		return nil
	}

	clock := repository.Clock(repository.SystemClock)
	accounts := repository.NewAccountRepo(db, clock)
	tokenRepo := repository.NewTokenRepo(db, clock)
	projects := repository.NewProjectRepo(db, clock)
	contacts := repository.NewContactRepo(db, clock)
	hasher := utils.NewPasswordHasher(cfg.BcryptCost)

	if _, err := service.SeedAdmin(ctx, cfg.Admin, accounts, hasher, logger); err != nil {
		return err
	}
	if seedOnly {
		return nil
	}

	tokens, err := service.NewTokenService(cfg.JWT, tokenRepo, logger)
	if err != nil {
		return err
	}

	rdb := config.NewRedisClient(cfg.Redis, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	var notifier service.ContactNotifier = service.NopNotifier{}
	if cfg.Queue.Enabled {
		notifier = service.NewQueueNotifier(cfg.Queue.URL, cfg.Queue.ContactQueue, logger)
		go func() {
			err := queue.StartContactConsumer(ctx, queue.ConsumerConfig{
				URL:    cfg.Queue.URL,
				Queue:  cfg.Queue.ContactQueue,
				LogDir: cfg.Queue.LogDir,
			}, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("contact consumer stopped", "err", err)
			}
		}()
	}

	sweeper := service.NewSweeper(tokens, cfg.JWT.SweepInterval, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	cache := middleware.NewResponseCache(cfg.Cache, rdb, logger)
	e := router.New(router.Deps{
		Logger:         logger,
		Development:    cfg.IsDevelopment(),
		CORSOrigins:    cfg.CORSOrigins,
		Auth:           middleware.Auth{Tokens: tokens, Accounts: accounts},
		Cache:          cache,
		AuthRate:       middleware.NewTokenBucket(cfg.RateLimit, rdb, logger),
		PostRate:       middleware.NewTokenBucket(cfg.RateLimit, rdb, logger),
		AuthHandler:    handler.NewAuthHandler(accounts, tokens, hasher, logger),
		ProjectHandler: handler.NewProjectHandler(projects, cache),
		ContactHandler: handler.NewContactHandler(contacts, notifier),
		HealthHandler:  handler.NewHealthHandler(db, version),
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "version", version)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wealthsync/internal/config"
	"wealthsync/internal/credentials"
	"wealthsync/internal/crypto"
	"wealthsync/internal/database"
	"wealthsync/internal/linking"
	"wealthsync/internal/lock"
	"wealthsync/internal/logger"
	"wealthsync/internal/providers"
	"wealthsync/internal/repository"
	"wealthsync/internal/scheduler"
	"wealthsync/internal/services"
	"wealthsync/internal/syncer"
	"wealthsync/internal/telemetry"
	"wealthsync/internal/validator"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()
	ctx := context.Background()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	shutdownTelemetry, err := telemetry.Init(ctx, appConfig.Env, appConfig.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig())
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	var repoOpts []repository.Option
	if appConfig.CredentialsKey != nil {
		enc, err := crypto.NewEncryptor(appConfig.CredentialsKey)
		if err != nil {
			return fmt.Errorf("failed to create credentials encryptor: %w", err)
		}
		repoOpts = append(repoOpts, repository.WithEncryptor(enc))
	} else {
		log.Warn("CREDENTIALS_KEY not set, provider tokens are stored unencrypted")
	}
	repo := repository.New(dbManager.DB(), repoOpts...)

	locker, err := newLocker(ctx, appConfig.RedisURL)
	if err != nil {
		return err
	}

	registry := providers.Configure(appConfig)
	credManager := credentials.NewManager(repo, registry, locker)
	orchestrator := syncer.NewOrchestrator(repo, registry, credManager, locker, appConfig.Sync.Concurrency)
	linker := linking.NewService(repo, registry, orchestrator, appConfig.LinkSessionTTL)

	sched, err := scheduler.New(appConfig.Sync, scheduler.ConnectedAccountJobs(repo, orchestrator))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	sched.Start()

	validator.Register()
	router := newRouter(appConfig, routeDeps{
		accountService:    services.NewAccountService(repo, orchestrator),
		syncService:       services.NewSyncService(repo, orchestrator),
		investmentService: services.NewInvestmentService(repo),
		linker:            linker,
		trigger:           sched,
		db:                dbManager.DB(),
	})

	srv := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting WealthSync API on port %s", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down HTTP server", "error", err)
	}
	sched.Shutdown(shutdownTimeout)
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Errorw("Error shutting down telemetry", "error", err)
	}

	log.Info("Server stopped")
	return nil
}

// newLocker returns the Redis lock when a URL is configured, otherwise an
// in-process lock that only serializes syncs within this instance.
func newLocker(ctx context.Context, redisURL string) (lock.Locker, error) {
	if redisURL == "" {
		logger.Get().Info("REDIS_URL not set, using in-process account locks")
		return lock.NewLocal(), nil
	}
	client, err := lock.NewRedisClient(ctx, redisURL)
	if err != nil {
		return nil, err
	}
	return lock.NewRedis(client, 0), nil
}

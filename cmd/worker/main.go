package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"qrattendance/internal/cache"
	"qrattendance/internal/config"
	"qrattendance/internal/database"
	"qrattendance/internal/log"
	"qrattendance/internal/queue"
	"qrattendance/internal/rbac"
	"qrattendance/internal/repository"
	"qrattendance/internal/storage"
	"qrattendance/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	processor := tasks.NewProcessor(tasks.Deps{
		Exports:     repository.NewReportRepository(dbPool),
		Users:       repository.NewUserRepository(dbPool),
		Authz:       rbac.NewEngine(repository.NewRoleRepository(dbPool), rbac.NewRedisCache(client, cfg.Security.RBACCacheTTL), logger),
		Attendances: repository.NewAttendanceRepository(dbPool),
		Reports:     objectStore,
		Tokens:      repository.NewTokenRepository(dbPool),
	}, logger)

	consumer := queue.NewConsumer(
		client,
		cfg.Worker.Stream,
		cfg.Worker.Group,
		cfg.Worker.Consumer,
		cfg.Worker.ClaimInterval,
		logger,
		processor,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}

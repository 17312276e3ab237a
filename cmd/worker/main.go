package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/finsync/engine/pkg/config"
	"github.com/finsync/engine/pkg/database"
	"github.com/finsync/engine/pkg/logger"

	"github.com/finsync/engine/internal/extractor"
	"github.com/finsync/engine/internal/queue/tasks"
	"github.com/finsync/engine/internal/repository"
	"github.com/finsync/engine/internal/schema"
	"github.com/finsync/engine/internal/services"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if !cfg.QueueEnabled() {
		log.Fatal("REDIS_ADDR is required for the worker")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	_ = rdb.Close()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{Driver: cfg.DBDriver, DSN: cfg.DatabaseURL})
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close(db)

	// The API owns migrations; the worker only reads the schema.
	caps, err := schema.Inspect(ctx, db)
	if err != nil {
		log.Fatal("schema check failed", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(db, caps.UserPhone)
	fileRepo := repository.NewUploadedFileRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)

	ex := extractor.NewClient(extractor.Config{
		Command: cfg.ExtractorCommand,
		Args:    cfg.ExtractorArgv(),
		Dir:     cfg.ExtractorDir,
		Timeout: cfg.ExtractorTimeout,
	})

	// A nil asynq client makes the service process in place.
	extraction := services.NewExtractionService(userRepo, fileRepo, invoiceRepo, ex, nil, cfg.UploadDir)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		},
		asynq.Config{
			Concurrency: cfg.AsynqConcurrency,
		},
	)

	mux := asynq.NewServeMux()
	tasks.NewExtractTaskHandler(extraction).Register(mux)

	errCh := make(chan error, 1)
	go func() {
		log.Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("worker stopped with error", zap.Error(err))
	}

	srv.Shutdown()
}

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/finsync/engine/internal/api"
	"github.com/finsync/engine/internal/api/handlers"
	"github.com/finsync/engine/internal/extractor"
	"github.com/finsync/engine/internal/portal"
	"github.com/finsync/engine/internal/repository"
	"github.com/finsync/engine/internal/schema"
	"github.com/finsync/engine/internal/services"
	"github.com/finsync/engine/pkg/config"
	"github.com/finsync/engine/pkg/database"
	"github.com/finsync/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting FinSync API",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("db_driver", cfg.DBDriver),
	)

	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{
		Driver:  cfg.DBDriver,
		DSN:     cfg.DatabaseURL,
		Verbose: cfg.AppEnv == "development",
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	caps, err := schema.Gate(ctx, db, cfg.DBDriver, cfg.DBAutoMigrate)
	if err != nil {
		log.Fatal("schema check failed", zap.Error(err))
	}
	log.Info("database ready", zap.Bool("user_phone", caps.UserPhone))

	userRepo := repository.NewUserRepository(db, caps.UserPhone)
	returnRepo := repository.NewGstReturnRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	fileRepo := repository.NewUploadedFileRepository(db)
	downloadRepo := repository.NewDownloadHistoryRepository(db)

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		log.Warn("SESSION_SECRET not set; using a random secret, sessions will not survive a restart")
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			log.Fatal("failed to generate session secret", zap.Error(err))
		}
	}
	tokens := services.NewTokenIssuer(secret, cfg.SessionTTL)

	// Without Redis, extraction runs inline in the request.
	var (
		queue *asynq.Client
		rdb   redis.UniversalClient
	)
	if cfg.QueueEnabled() {
		queue = asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer queue.Close()
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rc.Close()
		rdb = rc
		log.Info("extraction queue enabled", zap.String("redis", cfg.RedisAddr))
	}

	ex := extractor.NewClient(extractor.Config{
		Command: cfg.ExtractorCommand,
		Args:    cfg.ExtractorArgv(),
		Dir:     cfg.ExtractorDir,
		Timeout: cfg.ExtractorTimeout,
	})

	var uploader portal.Uploader = portal.NewDisabled()
	if cfg.PortalMode == "mock" {
		uploader = portal.NewMock(cfg.PortalMockLatency, nil)
	}

	router := api.NewRouter(api.Dependencies{
		Tokens:              tokens,
		RequireSessionToken: cfg.RequireSessionToken,
		HealthHandler:       handlers.NewHealthHandler(db, rdb),
		AuthHandler:         handlers.NewAuthHandler(services.NewAuthService(userRepo, tokens)),
		UsersHandler:        handlers.NewUsersHandler(services.NewUserService(userRepo)),
		RecordsHandler: handlers.NewRecordsHandler(
			services.NewRecordsService(userRepo, returnRepo, invoiceRepo, fileRepo, downloadRepo)),
		DashboardHandler: handlers.NewDashboardHandler(
			services.NewDashboardService(returnRepo, invoiceRepo, fileRepo)),
		ExtractHandler: handlers.NewExtractHandler(
			services.NewExtractionService(userRepo, fileRepo, invoiceRepo, ex, queue, cfg.UploadDir)),
		ReportsHandler: handlers.NewReportsHandler(
			services.NewReportService(invoiceRepo, downloadRepo, uploader, cfg.ReportPath)),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		// Inline extraction can hold a request for the extractor timeout.
		WriteTimeout: cfg.ExtractorTimeout + 30*time.Second,
		IdleTimeout:  90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}

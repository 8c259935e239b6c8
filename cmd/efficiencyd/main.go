package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"machine-efficiency-backend/config"
	"machine-efficiency-backend/internal/api"
	"machine-efficiency-backend/internal/db"
	"machine-efficiency-backend/internal/directory"
	"machine-efficiency-backend/internal/logging"
	"machine-efficiency-backend/internal/metrics"
	"machine-efficiency-backend/internal/scheduler"
	"machine-efficiency-backend/internal/shift"
	"machine-efficiency-backend/internal/store"
	"machine-efficiency-backend/internal/telemetry"
)

func main() {
	// A missing .env is fine; containers pass real environment variables.
	if err := godotenv.Load(); err == nil {
		fmt.Println("loaded environment from .env")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	source := telemetry.NewSource(gormDB)

	aggregator := metrics.NewAggregator(source, appStore, logger.Named("aggregator"))
	sched := scheduler.New(shift.NewResolver(appStore), appStore, aggregator, scheduler.Options{
		Interval:          cfg.Scheduler.Interval,
		OrgConcurrency:    cfg.Scheduler.OrgConcurrency,
		DeviceConcurrency: cfg.Scheduler.DeviceConcurrency,
		DeviceTimeout:     cfg.Scheduler.DeviceTimeout,
		DefaultLocation:   cfg.Scheduler.DefaultLocation,
	}, logger.Named("scheduler"))
	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			logger.Fatal("failed to start scheduler", zap.Error(err))
		}
	} else {
		logger.Info("metrics scheduler is disabled")
	}

	syncer := directory.NewSyncer(appStore, cfg.Directory.Enabled, cfg.Directory.Interval, logger.Named("directory"))
	go syncer.Run(ctx)

	handler := api.NewHandler(appStore, cfg.Scheduler.DefaultLocation, logger.Named("api"))
	router := api.NewRouter(handler, api.RouterOptions{
		JWTSecret:       cfg.Auth.JWTSecret,
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		CacheTTL:        cfg.Server.CacheTTL,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler did not drain in time", zap.Error(err))
	}
	cancel()

	logger.Info("server gracefully stopped")
}

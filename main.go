package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cyderes/olist-finalizer/internal/config"
	"github.com/cyderes/olist-finalizer/internal/metrics"
	"github.com/cyderes/olist-finalizer/internal/pipeline"
	"github.com/cyderes/olist-finalizer/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		return 1
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to create logger:", err)
		return 1
	}
	defer logger.Sync()

	// Interrupts cancel in-flight mirror writes
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Error("Failed to initialize storage", zap.String("type", cfg.Storage.Type), zap.Error(err))
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close storage", zap.Error(err))
		}
	}()

	reg := metrics.NewRegistry()
	service := pipeline.NewService(cfg.Pipeline, store, reg, logger)

	status, runErr := service.Run(ctx)

	if cfg.Metrics.Textfile != "" {
		if err := reg.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("Failed to write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}

	if runErr != nil {
		logger.Error("Data cleaning failed", zap.String("run_id", status.RunID), zap.Error(runErr))
		return 1
	}
	return 0
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Encoding == "console" {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Development = false
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Encoding = cfg.Encoding
	zcfg.OutputPaths = []string{"stdout"}
	return zcfg.Build()
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	appcfg "github.com/park285/chess-review/internal/config"
	"github.com/park285/chess-review/internal/obslog"
	"github.com/park285/chess-review/internal/reviewbuilder"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	deps, err := reviewbuilder.New(cfg, logger)
	if err != nil {
		logger.Fatal("init_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := deps.Run(ctx); err != nil {
		logger.Error("server_error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown_complete")
}

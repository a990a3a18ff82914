package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riskibarqy/fpl-live-engine/internal/app"
	"github.com/riskibarqy/fpl-live-engine/internal/config"
	"github.com/riskibarqy/fpl-live-engine/internal/observability"
	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)
	defer func() {
		_ = logger.Sync()
	}()

	shutdownUptrace, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownUptrace(ctx)
	}()

	stopPyroscope, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = stopPyroscope()
	}()

	pprofServer, err := observability.StartPprofServer(cfg, logger)
	if err != nil {
		logger.Error("start pprof server", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = observability.StopPprofServer(pprofServer, logger, 5*time.Second)
	}()

	engine, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("close app", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Run(ctx); err != nil {
		logger.Error("engine stopped with error", "error", err)
		stop()
		os.Exit(1)
	}
}

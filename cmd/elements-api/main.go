package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/vantutran2k1/elements/pkg/logger"
)

func main() {
	configFile := pflag.StringP("config", "c", "config.yaml", "path to the configuration file")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.Init(cfg.Log)

	app, err := newApp(ctx, cfg)
	if err != nil {
		log.Error("failed to create app", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := app.run(ctx); err != nil {
			log.Error("app run error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.shutdown(shutdownCtx); err != nil {
		log.Error("app shutdown error", "error", err)
	}
}

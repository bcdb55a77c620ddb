package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lukasito25/portfolio/internal/config"
	"github.com/lukasito25/portfolio/internal/content"
	"github.com/lukasito25/portfolio/internal/edge"
	"github.com/lukasito25/portfolio/internal/logging"
	"github.com/lukasito25/portfolio/internal/storage"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(getEnv("PORTFOLIO_CONFIG", "portfolio.yaml"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(cfg, "portfolio-edge")
	if err != nil {
		return err
	}
	defer log.Sync()
	log.Info("portfolio-edge starting", zap.String("version", Version))

	if cfg.Edge.APIToken == "" {
		log.Warn("edge.api_token is empty; admin endpoints are disabled")
	}

	store, err := storage.Open(storage.DriverPure, cfg.Edge.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := edge.NewServer(cfg.Edge, content.NewService(store, log, time.Minute), store, log)
	return srv.Run(ctx, cfg.Server.ShutdownTimeout)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

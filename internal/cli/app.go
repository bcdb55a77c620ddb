package cli

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lukasito25/portfolio/internal/analytics"
	"github.com/lukasito25/portfolio/internal/auth"
	"github.com/lukasito25/portfolio/internal/config"
	"github.com/lukasito25/portfolio/internal/content"
	"github.com/lukasito25/portfolio/internal/logging"
	"github.com/lukasito25/portfolio/internal/storage"
)

const contentCacheTTL = time.Minute

// app bundles the services most commands need.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *storage.Store
	content *content.Service
	auth    *auth.Service
	tracker *analytics.Tracker
}

// open loads the configuration and opens the database and services.
func (g *globals) open(service string) (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return openApp(cfg, service)
}

func openApp(cfg *config.Config, service string) (*app, error) {
	log, err := logging.New(cfg, service)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	store, err := storage.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	authSvc, err := auth.NewService(store, cfg.Auth.SessionTTL, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		content: content.NewService(store, log, contentCacheTTL),
		auth:    authSvc,
		tracker: analytics.NewTracker(store, analytics.Options{
			Enabled:    cfg.Analytics.Enabled,
			IgnoreBots: cfg.Analytics.IgnoreBots,
			SiteHost:   cfg.Server.BaseURL,
		}, log),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close database", zap.Error(err))
	}
	_ = a.log.Sync()
}

// Package app wires configuration into the running server: store,
// provider factory, HTTP stack and the retention runner.
package app

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/westbrookdaniel/chat/internal/retention"
	"github.com/westbrookdaniel/chat/pkg/config"
	"github.com/westbrookdaniel/chat/pkg/logger"
	"github.com/westbrookdaniel/chat/pkg/provider"
	"github.com/westbrookdaniel/chat/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.Effective
	version   string
	commit    string
	buildDate string

	factory *provider.Factory
	srv     *httpServer
}

// New initializes resources that do not require a running context (the
// store, the provider factory). Call Run to start the HTTP server and
// retention runner and block until shutdown.
func New(eff config.Effective, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	logger.Init(eff.Config.Logging.Level)

	if eff.Config.Security.SigningSecret == "" {
		return nil, fmt.Errorf("security.signing_secret is required")
	}
	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		factory:   provider.NewFactory(eff.Config.Provider),
	}
	return a, nil
}

// Run starts the HTTP server and the retention runner, and blocks until
// ctx is canceled or a fatal error occurs. The store is closed on the
// way out.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("store_close_failed", "error", err)
		}
	}()

	a.printBanner()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.serveHTTP(gctx)
	})
	g.Go(func() error {
		return retention.Run(gctx, a.eff.Config.Retention)
	})
	return g.Wait()
}

// printBanner logs startup info: address, config source and build.
func (a *App) printBanner() {
	ver := a.version
	if a.commit != "none" {
		ver += " (" + a.commit + ")"
	}
	if a.buildDate != "unknown" {
		ver += " @ " + a.buildDate
	}
	logger.Info("chatd_starting", "addr", a.eff.Addr, "db", a.eff.DBPath, "config_source", a.eff.Source, "version", ver)
}

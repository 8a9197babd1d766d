// Package app assembles and runs the daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"vmforge/config"
	"vmforge/internal/adapter/sqlite"
	"vmforge/internal/api"
	"vmforge/internal/machine"
	"vmforge/internal/provision"

	"golang.org/x/sync/errgroup"
)

// Run serves the API until ctx is cancelled, then shuts down: stop
// accepting requests first, then give in-flight reconciliations a
// bounded window to land. Records still provisioning when the window
// closes stay provisioning — restarts do not resume them.
func Run(ctx context.Context, cfg config.Config) error {
	log := slog.With("component", "daemon")

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open machine store: %w", err)
	}
	defer store.Close()

	mgr := machine.NewManager(store, provision.New(), machine.Config{
		MinDelay:    cfg.Provisioner.MinDelay(),
		MaxDelay:    cfg.Provisioner.MaxDelay(),
		FailureRate: cfg.Provisioner.FailureRate,
		Workers:     cfg.Provisioner.Workers,
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.New(mgr, machine.NewQuery(store), cfg.API).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", "addr", cfg.Listen, "db", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("api shutdown incomplete", "err", err)
		}

		drainCtx, drainCancel := context.WithTimeout(context.Background(), config.DefaultDrainTimeout)
		defer drainCancel()
		if err := mgr.Drain(drainCtx); err != nil {
			log.Warn("exiting with reconciliations still in flight", "err", err)
		}
		return nil
	})
	return g.Wait()
}

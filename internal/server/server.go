// Package server assembles the catalog service: store, synchronizer,
// live stream, exports and the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invoiceflow/internal/catalog"
	"invoiceflow/internal/config"
	"invoiceflow/internal/export"
	"invoiceflow/internal/handler"
	"invoiceflow/internal/metrics"
	"invoiceflow/internal/middleware"
	"invoiceflow/internal/model"
	"invoiceflow/internal/notify"
	"invoiceflow/internal/realtime"
	"invoiceflow/internal/router"

	"github.com/rs/zerolog"
)

// Options tunes Run.
type Options struct {
	Migrate bool
	BackOff BackOffPolicy
}

// Run serves the catalog API until ctx is cancelled or the process gets
// SIGINT or SIGTERM.
func Run(ctx context.Context, cfg *config.Config, opts Options, logger zerolog.Logger) error {
	logger.Info().Str("store", cfg.Store.Driver).Msg("starting invoiceflow catalog server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	catalogStore, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.Migrate {
		if err := Migrate(ctx, catalogStore, logger); err != nil {
			return err
		}
	}

	m := metrics.New()

	hub := realtime.NewHub(logger, realtime.WithClientGauge(m.StreamClients))
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()

	sync := catalog.New(catalogStore, logger, catalog.WithRecorder(m))
	removeListener := sync.OnChange(hub.Publish)
	defer removeListener()

	notifier := notify.Multi(notify.NewLog(logger), hub)

	exporter := export.NewExporter(sync, NewSink(ctx, cfg.Export, logger), logger,
		export.WithNotifier(notifier),
		export.WithRecorder(m),
	)
	go exporter.RunBackups(ctx, cfg.Export.BackupInterval)

	subscriptionErrors := make(chan error, 1)
	maintainDone := make(chan struct{})
	go func() {
		defer close(maintainDone)
		subscriptionErrors <- Maintain(ctx, sync, opts.BackOff, notifier, logger)
	}()

	mux := router.New(router.Handlers{
		Product: handler.NewProductHandler(sync, logger),
		Export:  handler.NewExportHandler(exporter, logger),
		Stream:  handler.NewStreamHandler(hub, logger),
	}, router.Options{
		Keys: middleware.Keys{
			AdminKey: cfg.Auth.AdminAPIKey,
			StaffKey: cfg.Auth.StaffAPIKey,
		},
		Metrics: m,
		Ready:   sync.Ready,
	}, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:        cfg.Server.Address(),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	// Block until we receive a signal or an error
	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}

	case err := <-subscriptionErrors:
		if err != nil {
			runErr = fmt.Errorf("catalog subscription stopped: %w", err)
		}

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

	case <-ctx.Done():
		logger.Info().Msg("context cancelled, starting graceful shutdown")
	}

	// Create a context with timeout for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the hub first so stream connections do not hold the shutdown open.
	cancel()
	<-hubDone
	<-maintainDone

	// Attempt graceful shutdown
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server gracefully")
		// Force close
		if closeErr := server.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close server")
		}
		return errors.Join(runErr, fmt.Errorf("server shutdown failed: %w", err))
	}

	logger.Info().Msg("server shutdown completed")
	return runErr
}

// ExportOnce subscribes, waits for the first snapshot and writes the
// catalog for role to the configured sink.
func ExportOnce(ctx context.Context, cfg *config.Config, role string, logger zerolog.Logger) (string, error) {
	r, ok := model.ParseRole(role)
	if !ok {
		return "", fmt.Errorf("unknown role: %s", role)
	}

	sync, done, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return "", err
	}
	defer done()

	exporter := export.NewExporter(sync, NewSink(ctx, cfg.Export, logger), logger)
	name := export.BackupName(time.Now())
	return exporter.Export(ctx, r, name)
}

// SeedDefaults loads DefaultCatalog into the configured store.
func SeedDefaults(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (SeedResult, error) {
	sync, done, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return SeedResult{}, err
	}
	defer done()

	return Seed(ctx, sync, DefaultCatalog(), logger)
}

// MigrateStore applies the schema of the configured store.
func MigrateStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	catalogStore, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	return Migrate(ctx, catalogStore, logger)
}

// openCatalog connects the store and opens a subscription. Stores push the
// current collection on subscribe, so the catalog is ready on return.
func openCatalog(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*catalog.Synchronizer, func(), error) {
	catalogStore, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	sync := catalog.New(catalogStore, logger)
	sub, err := sync.Open(ctx)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	if !sync.Ready() {
		sub.Close()
		closeStore()
		return nil, nil, model.ErrCatalogNotReady
	}

	return sync, func() {
		sub.Close()
		closeStore()
	}, nil
}

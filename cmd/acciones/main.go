package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/tlaxclima/acciones-service/internal/adapter/cachefile"
	"github.com/tlaxclima/acciones-service/internal/adapter/geoproxy"
	"github.com/tlaxclima/acciones-service/internal/adapter/httpapi"
	"github.com/tlaxclima/acciones-service/internal/adapter/survey"
	"github.com/tlaxclima/acciones-service/internal/config"
	"github.com/tlaxclima/acciones-service/internal/dataset"
	"github.com/tlaxclima/acciones-service/internal/observability"
)

func main() {
	root := &cobra.Command{
		Use:           "acciones",
		Short:         "Aggregation service for the Tlaxcala climate-action map",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newSnapshotCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(*cobra.Command, []string) error {
			return runServe()
		},
	}
}

func newSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch and aggregate once, printing the metadata summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSnapshot(cmd.Context())
		},
	}
}

func buildManager(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *dataset.Manager {
	client := survey.NewClient(cfg.SurveyURL, cfg.FetchTimeout, logger, metrics)
	store := cachefile.New(cfg.CachePath, cfg.CacheTTL, cfg.CacheStaleTTL,
		clockwork.NewRealClock(), logger, metrics)

	return dataset.NewManager(client, store, cfg.Region, logger, metrics)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	manager := buildManager(cfg, logger, metrics)

	var geoProxy http.Handler
	if cfg.GeoServerURL != "" {
		proxy, err := geoproxy.New(cfg.GeoServerURL, cfg.ProxyTimeout, logger, metrics)
		if err != nil {
			return fmt.Errorf("configure geoserver proxy: %w", err)
		}
		geoProxy = proxy
		logger.Info("geoserver proxy enabled", "upstream", cfg.GeoServerURL)
	} else {
		logger.Info("geoserver proxy disabled")
	}

	srv := httpapi.NewServer(cfg.HTTPAddr, manager, geoProxy, cfg.AllowedOrigins, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Warm the snapshot so the first page load does not pay the fetch.
	go func() {
		if _, err := manager.Snapshot(ctx); err != nil {
			logger.Warn("initial snapshot failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func runSnapshot(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	manager := buildManager(cfg, logger, observability.NewMetrics())

	res, err := manager.Snapshot(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"datos_obsoletos": res.Stale,
		"metadata":        res.Dataset.Metadata,
	})
}

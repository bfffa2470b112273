package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chainlink-analytics/shelfgap/internal/alert"
	"github.com/chainlink-analytics/shelfgap/internal/config"
	"github.com/chainlink-analytics/shelfgap/internal/exporter"
	"github.com/chainlink-analytics/shelfgap/internal/materializer"
	"github.com/chainlink-analytics/shelfgap/internal/publisher"
	"github.com/chainlink-analytics/shelfgap/internal/server"
	"github.com/chainlink-analytics/shelfgap/internal/server/handlers"
	"github.com/chainlink-analytics/shelfgap/internal/streaks"
	"github.com/chainlink-analytics/shelfgap/internal/warehouse"
	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Shelfgap HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	store, err := warehouse.New(ctx, cfg.Warehouse.DSN)
	if err != nil {
		return fmt.Errorf("connecting to warehouse: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return fmt.Errorf("migrating warehouse: %w", err)
	}

	// Alerts
	dispatcher, err := alert.NewDispatcher(cfg.Alerts)
	if err != nil {
		store.Close()
		return fmt.Errorf("creating alert dispatcher: %w", err)
	}

	// Publish pipeline
	var matOpts []materializer.Option
	if d := config.RefreshTimeout(cfg); d > 0 {
		matOpts = append(matOpts, materializer.WithTimeout(d))
	}
	pub := publisher.New(store, materializer.New(store, matOpts...), dispatcher.AlertFunc())

	// Exporter, when configured
	var exp handlers.Exporter
	if cfg.Export != nil && cfg.Export.Enabled {
		e, err := exporter.New(store, *cfg.Export)
		if err != nil {
			store.Close()
			return fmt.Errorf("creating exporter: %w", err)
		}
		exp = e
	}

	// Server
	srvCfg := types.ServerConfig{Addr: ":3000"}
	if cfg.Server != nil {
		srvCfg = *cfg.Server
		if srvCfg.Addr == "" {
			srvCfg.Addr = ":3000"
		}
	}
	srv := server.New(srvCfg, handlers.Deps{
		Publisher: pub,
		Streaks:   streaks.NewReader(store),
		Exporter:  exp,
		Runs:      store,
		Pinger:    store,
		Config:    cfg,
	})

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		store.Close()
		return err
	case sig := <-sigCh:
		color.Yellow("\nReceived %s, shutting down...", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			store.Close()
			return fmt.Errorf("server shutdown: %w", err)
		}
		store.Close()
		color.Green("Server stopped gracefully")
		return nil
	}
}

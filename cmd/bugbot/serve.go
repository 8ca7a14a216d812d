package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mudlet/bugbot/internal/ai"
	"github.com/mudlet/bugbot/internal/cost"
	"github.com/mudlet/bugbot/internal/health"
	"github.com/mudlet/bugbot/internal/logging"
	"github.com/mudlet/bugbot/internal/reporter"
	"github.com/mudlet/bugbot/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot process: health endpoint and preview expiry",
	Long: `Run the long-lived bot process.

Serves GET /health on HEALTH_PORT (store, LLM circuit state and budget) and expires
unanswered previews. Only one server may own a database at a time. Stops on
SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("expire-interval")
		if interval <= 0 {
			return fmt.Errorf("--expire-interval must be positive")
		}
		log := logging.New("serve")

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		lockPath, err := storage.AcquireInstanceLock(cfg.DBPath, version)
		if err != nil {
			return err
		}
		defer func() {
			if err := storage.ReleaseInstanceLock(lockPath); err != nil {
				log.Warn("failed to release instance lock", "error", err)
			}
		}()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		registry := health.NewRegistry(5 * time.Second)
		if err := registerChecks(registry, a.store, a.extractor, a.budget); err != nil {
			return err
		}
		srv := health.NewServer(registry)

		errCh := make(chan error, 1)
		addr := fmt.Sprintf(":%d", cfg.HealthPort)
		go func() {
			log.Info("health server listening", "addr", addr)
			errCh <- srv.Start(addr)
		}()

		go runExpiry(ctx, a.service, interval, log)

		select {
		case <-ctx.Done():
			log.Info("shutting down")
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("health server failed: %w", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("health server shutdown: %w", err)
		}
		return nil
	},
}

func registerChecks(registry *health.Registry, store storage.ReportStore, extractor *ai.Extractor, budget *cost.Tracker) error {
	if err := registry.Register("store", store.Ping); err != nil {
		return err
	}
	if err := registry.Register("llm", extractor.HealthCheck); err != nil {
		return err
	}
	return registry.Register("budget", func(context.Context) error {
		return budget.CanProceed()
	})
}

// runExpiry expires stale previews every interval until ctx is done
func runExpiry(ctx context.Context, svc *reporter.Service, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := svc.ExpireStale(ctx); err != nil && ctx.Err() == nil {
			log.Error("failed to expire previews", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func init() {
	serveCmd.Flags().Duration("expire-interval", time.Minute, "How often unanswered previews are expired")
	rootCmd.AddCommand(serveCmd)
}

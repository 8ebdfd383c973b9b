package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lumina/policy-engine/access"
	"github.com/lumina/policy-engine/api"
	"github.com/lumina/policy-engine/config"
	"github.com/lumina/policy-engine/store/sqlite"
)

func newServeCmd(a *app) *cobra.Command {
	var scenario string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), scenario)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", ":8080", "listen address")
	flags.String("db", ":memory:", `SQLite database path, ":memory:" for in-process`)
	flags.String("fixture-role", string(access.RoleEmployee), "role used when a request has no role header")
	flags.StringVar(&scenario, "scenario", "", "demo scenario to load at startup (resets the database)")
	_ = a.v.BindPFlag("addr", flags.Lookup("addr"))
	_ = a.v.BindPFlag("db", flags.Lookup("db"))
	_ = a.v.BindPFlag("fixture_role", flags.Lookup("fixture-role"))
	return cmd
}

func (a *app) serve(ctx context.Context, scenario string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := a.cfg

	logger, err := config.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	policy, err := a.policy()
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, policy, logger)
	handler.FixtureRole = access.Role(cfg.FixtureRole)

	if scenario != "" {
		if err := handler.ApplyScenario(ctx, scenario); err != nil {
			return err
		}
	}

	// Retention job
	spec := ""
	if cfg.Retention.Years > 0 {
		if spec, err = config.RetentionSpec(cfg.Retention.Schedule); err != nil {
			return err
		}
	}
	retention, err := api.NewRetentionScheduler(handler.Leave, cfg.Retention.Years, spec, logger)
	if err != nil {
		return err
	}
	if err := retention.Start(); err != nil {
		return err
	}
	defer retention.Stop()

	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.CORS.Origins,
		Metrics:     cfg.Metrics.Enabled,
	})
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "db", cfg.DB, "fixture_role", cfg.FixtureRole)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down server", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

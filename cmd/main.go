// cmd/main.go is the application entry point.
// It wires together all layers behind the serve, migrate and token commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/auth"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/config"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/database"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/handler"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/metrics"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "event-registration",
		Short:         "Event registration engine",
		Long:          "Event registration with capacity, waitlist and administrator roster management.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(serveCmd(&configPath), migrateCmd(&configPath), tokenCmd(&configPath))
	return cmd
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.App)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			pool, err := database.NewPool(cmd.Context(), cfg.Database, logger)
			if err != nil {
				return err
			}
			defer pool.Close()
			return database.Migrate(cmd.Context(), pool, logger)
		},
	}
}

func tokenCmd(configPath *string) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for a user (development helper)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
			tok, err := tokens.Generate(args[0], name)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name carried in the token")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := newLogger(cfg.App)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// ── 1. Wire up layers ────────────────────────────────────────────────
	m := metrics.New()
	deps, err := buildEngine(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer deps.Close()

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	router := handler.NewRouter(handler.RouterConfig{
		Events:      handler.NewEventHandler(deps.Engine, logger),
		Tokens:      tokens,
		Metrics:     m,
		Logger:      logger,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
	})

	// ── 2. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.String("lock", cfg.Lock.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/tripledger/internal/audit"
	"github.com/mmynk/tripledger/internal/auth"
	"github.com/mmynk/tripledger/internal/billing"
	"github.com/mmynk/tripledger/internal/metrics"
	"github.com/mmynk/tripledger/internal/render"
	"github.com/mmynk/tripledger/internal/service"
	"github.com/mmynk/tripledger/internal/storage/sqlite"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.DBPath, sqlite.WithDefaultBufferRate(cfg.DefaultBufferRate))
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	events := audit.NewSQLEventLogger(store.DB())

	// Shuts down before the store closes so queued events are flushed.
	worker := audit.NewWorker(events, cfg.AuditBuffer)
	worker.Start()
	defer worker.Shutdown()

	m := metrics.New()
	engine := billing.NewEngine(store,
		billing.WithRenderer(render.NewPDF()),
		billing.WithListener(m),
		billing.WithListener(worker),
		billing.WithDefaultTripName(cfg.DefaultTripName),
	)

	authenticator, err := auth.NewSecretAuthenticator(cfg.AdminToken, cfg.AdminTokenHash)
	if err != nil {
		return err
	}

	handler := service.NewRouter(service.RouterConfig{
		Engine:        engine,
		Authenticator: authenticator,
		JWTManager:    auth.NewJWTManager(cfg.JWTSecret, cfg.SessionTTL),
		Events:        events,
		Metrics:       m,
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("HTTP server exited gracefully")
	return nil
}

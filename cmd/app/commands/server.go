package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/sshdeck/sshdeck/internal/app"
	"github.com/sshdeck/sshdeck/internal/config"
)

// shutdownTimeout bounds graceful shutdown of the servers and the final
// snapshot flush.
const shutdownTimeout = 30 * time.Second

// RunServer starts the API server with graceful shutdown support.
//
// Boot order: configuration, DI container, hot database (snapshot restore +
// migrations), then the API server, the metrics server, the vault watchdog,
// and the save coordinator. Blocks until SIGINT/SIGTERM or a fatal server
// error; on the way out everything initialized is shut down and a final
// snapshot is flushed.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	vault := container.Vault()

	coordinator, err := container.SaveCoordinator()
	if err != nil {
		return fmt.Errorf("failed to initialize save coordinator: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverErr := make(chan error, 2)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("api server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				serverErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	// Background workers stop with the signal context; their exits are
	// collected after shutdown.
	workers, workerCtx := errgroup.WithContext(ctx)
	workers.Go(func() error { return vault.Run(workerCtx) })
	workers.Go(func() error { return coordinator.Run(workerCtx) })

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-serverErr:
		logger.Error("server error, initiating shutdown", slog.Any("error", runErr))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := container.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
		if runErr == nil {
			runErr = err
		}
	}

	if err := workers.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker error during shutdown", slog.Any("error", err))
	}

	return runErr
}

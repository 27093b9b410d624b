package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/cadetops/mailroom/internal/app"
	"github.com/cadetops/mailroom/internal/config"
)

// RunWorker starts only the queue workers: the batch dispatcher, the
// stuck-job reclaimer and the health monitor. Used when the API and the
// workers are deployed separately. Blocks until SIGINT/SIGTERM.
func RunWorker(ctx context.Context, version string) error {
	// Load configuration
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("starting queue workers", slog.String("version", version))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	dispatchUseCase, err := container.DispatchUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize dispatch use case: %w", err)
	}

	reclaimUseCase, err := container.ReclaimUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize reclaim use case: %w", err)
	}

	healthUseCase, err := container.HealthUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize health use case: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// A worker failure cancels the group and stops the other workers.
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := dispatchUseCase.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("dispatch worker error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		if err := reclaimUseCase.Run(ctx, cfg.ReclaimInterval); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("reclaim worker error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		if err := healthUseCase.Run(ctx, cfg.HealthCheckInterval); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("health worker error: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("worker error, shutting down", slog.Any("error", err))
		return err
	}

	logger.Info("shutdown signal received")
	return nil
}

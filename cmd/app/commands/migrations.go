package commands

import (
	"context"
	"fmt"

	"github.com/sshdeck/sshdeck/internal/app"
	"github.com/sshdeck/sshdeck/internal/config"
)

// RunMigrations restores the snapshot into a hot database, applies all
// pending schema migrations, and flushes the migrated state back to the
// snapshot. Returns nil when there is nothing to apply.
func RunMigrations(ctx context.Context) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	logger.Info("running database migrations")

	// Opening the database restores the snapshot and migrates it.
	if _, err := container.DB(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	coordinator, err := container.SaveCoordinator()
	if err != nil {
		return err
	}
	if err := coordinator.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush migrated snapshot: %w", err)
	}

	logger.Info("migrations completed successfully")
	return nil
}

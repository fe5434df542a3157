package commands

import (
	"context"
	"fmt"

	"github.com/sshdeck/sshdeck/internal/app"
	"github.com/sshdeck/sshdeck/internal/config"
)

// RunCreateSystemKey generates the system root key file if it does not
// exist yet, sealed with the configured KMS keeper when KMS_KEY_URI is
// set. Loading an existing file is a no-op, so the command is safe to run
// on an initialized data directory.
func RunCreateSystemKey(ctx context.Context) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	if _, err := container.SystemKeys(); err != nil {
		return fmt.Errorf("failed to create system key: %w", err)
	}

	fmt.Printf("system key ready at %s\n", cfg.SystemKeyPath())
	return nil
}

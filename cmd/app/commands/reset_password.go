package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sshdeck/sshdeck/internal/app"
	"github.com/sshdeck/sshdeck/internal/config"
)

// RunResetPassword resets a user's password from the command line.
//
// With destroy set the user's encrypted data is wiped and fresh key
// material issued; without it the recovery path sets a new verifier for an
// externally linked account, keeping the data key and everything under it.
func RunResetPassword(ctx context.Context, userIDStr, newPassword string, destroy bool) error {
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}

	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	password, err := container.PasswordUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize password use case: %w", err)
	}

	if destroy {
		err = password.DestructiveReset(ctx, userID, newPassword)
	} else {
		err = password.RecoveryReset(ctx, userID, newPassword)
	}
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	coordinator, err := container.SaveCoordinator()
	if err != nil {
		return err
	}
	if err := coordinator.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}

	fmt.Printf("password reset for user %s (destroy=%t)\n", userID, destroy)
	return nil
}

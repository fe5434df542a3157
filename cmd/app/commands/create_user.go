package commands

import (
	"context"
	"fmt"

	"github.com/sshdeck/sshdeck/internal/app"
	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
	"github.com/sshdeck/sshdeck/internal/config"
)

// RunCreateUser registers a user with fresh key material and persists it to
// the snapshot. Meant for bootstrapping the first administrator account.
func RunCreateUser(ctx context.Context, name, password string, isAdmin bool) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	users, err := container.UserUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize user use case: %w", err)
	}

	user, err := users.Register(ctx, &authDomain.CreateUserInput{
		Name:     name,
		Password: password,
		IsAdmin:  isAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	coordinator, err := container.SaveCoordinator()
	if err != nil {
		return err
	}
	if err := coordinator.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}

	fmt.Printf("user created\nid: %s\nname: %s\nadmin: %t\n", user.ID, user.Name, user.IsAdmin)
	return nil
}

package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sshdeck/sshdeck/internal/app"
	"github.com/sshdeck/sshdeck/internal/config"
)

// RunListSessions prints every live session across all users. Reads the
// snapshot only; nothing is flushed back.
func RunListSessions(ctx context.Context) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	sessions, err := container.SessionUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize session use case: %w", err)
	}

	list, err := sessions.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tUSER\tDEVICE\tCREATED\tEXPIRES")
	for _, session := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			session.ID,
			session.UserID,
			session.DeviceClass,
			session.CreatedAt.Format(time.RFC3339),
			session.ExpiresAt.Format(time.RFC3339),
		)
	}
	return w.Flush()
}

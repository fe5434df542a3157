// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/sshdeck/sshdeck/cmd/app/commands"
)

var version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "sshdeck",
		Usage:   "SSH management server with encrypted-at-rest credentials",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the API server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Apply schema migrations to the snapshot",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMigrations(ctx)
				},
			},
			{
				Name:  "create-system-key",
				Usage: "Generate the system root key file if missing",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunCreateSystemKey(ctx)
				},
			},
			{
				Name:  "list-sessions",
				Usage: "Print every live session across all users",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunListSessions(ctx)
				},
			},
			{
				Name:  "create-user",
				Usage: "Create a user account (bootstrap the first administrator)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Required: true,
						Usage:    "Unique account name",
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "Initial password",
					},
					&cli.BoolFlag{
						Name:    "admin",
						Aliases: []string{"a"},
						Value:   false,
						Usage:   "Grant the administrator role",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunCreateUser(
						ctx,
						cmd.String("name"),
						cmd.String("password"),
						cmd.Bool("admin"),
					)
				},
			},
			{
				Name:  "reset-password",
				Usage: "Reset a user's password without the old one",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Aliases:  []string{"i"},
						Required: true,
						Usage:    "User ID (UUID)",
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "New password",
					},
					&cli.BoolFlag{
						Name:  "destroy",
						Value: false,
						Usage: "Wipe the user's encrypted data instead of recovering it",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunResetPassword(
						ctx,
						cmd.String("id"),
						cmd.String("password"),
						cmd.Bool("destroy"),
					)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}

// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/cadetops/mailroom/cmd/app/commands"
	"github.com/cadetops/mailroom/internal/app"
	"github.com/cadetops/mailroom/internal/config"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "mailroom",
		Usage:   "Asynchronous email delivery pipeline",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP API, metrics server and queue workers",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "worker",
				Usage: "Start only the queue workers",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunWorker(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					container := app.NewContainer(cfg)
					return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
				},
			},
			{
				Name:  "process-batch",
				Usage: "Trigger one dispatch pass on demand",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "batch-size",
						Aliases: []string{"b"},
						Value:   0,
						Usage:   "Maximum jobs to process (0 uses the configured batch size and writes a processing log entry)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withContainer(ctx, func(ctx context.Context, container *app.Container) error {
						dispatchUseCase, err := container.DispatchUseCase()
						if err != nil {
							return fmt.Errorf("failed to initialize dispatch use case: %w", err)
						}
						return commands.RunProcessBatch(
							ctx,
							dispatchUseCase,
							container.Logger(),
							os.Stdout,
							int(cmd.Int("batch-size")),
							cmd.String("format"),
						)
					})
				},
			},
			{
				Name:  "retry-stuck",
				Usage: "Reclaim jobs stranded in processing",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "max-age",
						Aliases: []string{"m"},
						Value:   0,
						Usage:   "Age in minutes after which a processing job counts as stuck (0 uses the configured threshold)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withContainer(ctx, func(ctx context.Context, container *app.Container) error {
						reclaimUseCase, err := container.ReclaimUseCase()
						if err != nil {
							return fmt.Errorf("failed to initialize reclaim use case: %w", err)
						}
						return commands.RunRetryStuck(
							ctx,
							reclaimUseCase,
							container.Logger(),
							os.Stdout,
							int(cmd.Int("max-age")),
							cmd.String("format"),
						)
					})
				},
			},
			{
				Name:  "check-health",
				Usage: "Run one queue health check across all tenants",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withContainer(ctx, func(ctx context.Context, container *app.Container) error {
						healthUseCase, err := container.HealthUseCase()
						if err != nil {
							return fmt.Errorf("failed to initialize health use case: %w", err)
						}
						return commands.RunCheckHealth(
							ctx,
							healthUseCase,
							container.Logger(),
							os.Stdout,
							cmd.String("format"),
						)
					})
				},
			},
			{
				Name:  "enqueue",
				Usage: "Queue a single email job",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "recipient",
						Aliases:  []string{"r"},
						Required: true,
						Usage:    "Recipient email address (comma-separated for multiple)",
					},
					&cli.StringFlag{
						Name:     "subject",
						Aliases:  []string{"s"},
						Required: true,
						Usage:    "Email subject",
					},
					&cli.StringFlag{
						Name:     "body",
						Aliases:  []string{"b"},
						Required: true,
						Usage:    "Email HTML body",
					},
					&cli.StringFlag{
						Name:     "school-id",
						Required: true,
						Usage:    "Tenant school ID (UUID)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withContainer(ctx, func(ctx context.Context, container *app.Container) error {
						queueUseCase, err := container.QueueUseCase()
						if err != nil {
							return fmt.Errorf("failed to initialize queue use case: %w", err)
						}
						return commands.RunEnqueue(
							ctx,
							queueUseCase,
							container.Logger(),
							os.Stdout,
							cmd.String("recipient"),
							cmd.String("subject"),
							cmd.String("body"),
							cmd.String("school-id"),
							cmd.String("format"),
						)
					})
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}

// withContainer builds a container for a one-shot command and shuts it down
// when the command returns.
func withContainer(ctx context.Context, fn func(ctx context.Context, container *app.Container) error) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	defer func() {
		if err := container.Shutdown(context.Background()); err != nil {
			container.Logger().Error("failed to shutdown container", slog.Any("error", err))
		}
	}()
	return fn(ctx, container)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/nodeflow/pkg/cmd"
	"github.com/dukex/nodeflow/pkg/compiler"
	"github.com/dukex/nodeflow/pkg/log"
	"github.com/dukex/nodeflow/pkg/scheduler"
	"github.com/dukex/nodeflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func main() {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.DurationFlag{
			Name:    "refresh-interval",
			Usage:   "How often stored workflows are re-read for schedule changes",
			Value:   scheduler.DefaultRefreshInterval,
			Sources: cli.EnvVars("SCHEDULER_REFRESH_INTERVAL"),
		},
		&cli.StringFlag{
			Name:    "timezone",
			Usage:   "IANA time zone the cron expressions are evaluated in",
			Value:   "UTC",
			Sources: cli.EnvVars("SCHEDULER_TIMEZONE"),
		},
	}

	flags = append(flags, cmd.LogFlags()...)
	flags = append(flags, cmd.EventBusFlags()...)

	command := &cli.Command{
		Name:                  "nodeflow-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Request executions of workflows with scheduled trigger nodes",
		Flags:                 flags,
		Action:                run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	cmd.SetupLogging(command)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.WithModule("nodeflow-scheduler")
	logger.InfoContext(ctx, "Initializing nodeflow scheduler")

	location, err := time.LoadLocation(command.String("timezone"))
	if err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), "nodeflow-scheduler", logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	registry := cmd.NewRegistry(logger, cmd.RegistryOptions{})
	executions := services.NewExecution(persistence,
		compiler.New(compiler.WithLogger(logger), compiler.WithSchemas(registry)),
		eventBus, logger)

	s := scheduler.New(persistence.WorkflowRepository(), executions,
		scheduler.WithLogger(logger),
		scheduler.WithRefreshInterval(command.Duration("refresh-interval")),
		scheduler.WithLocation(location),
	)

	return s.Run(ctx)
}

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
	"github.com/dukex/nodeflow/pkg/executor"
	"github.com/dukex/nodeflow/pkg/locks"
	"github.com/dukex/nodeflow/pkg/log"
	"github.com/dukex/nodeflow/pkg/metrics"
	"github.com/dukex/nodeflow/pkg/sandbox"
	"github.com/dukex/nodeflow/pkg/worker"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	cli "github.com/urfave/cli/v3"
)

func main() {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "worker-id",
			Aliases: []string{"id"},
			Usage:   "Custom worker ID (auto-generated if not provided)",
			Sources: cli.EnvVars("WORKER_ID"),
		},
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL used to claim executions across workers",
			Value:   locks.DefaultRedisURL,
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Usage:   "Executions run at the same time",
			Value:   worker.DefaultConcurrency,
			Sources: cli.EnvVars("WORKER_CONCURRENCY"),
		},
		&cli.DurationFlag{
			Name:    "code-timeout",
			Usage:   "Wall clock limit of a code node",
			Value:   sandbox.DefaultTimeout,
			Sources: cli.EnvVars("CODE_TIMEOUT"),
		},
		&cli.BoolFlag{
			Name:    "recover-pending",
			Usage:   "Run executions left pending before the worker started",
			Value:   true,
			Sources: cli.EnvVars("RECOVER_PENDING"),
		},
	}

	flags = append(flags, cmd.LogFlags()...)
	flags = append(flags, cmd.EventBusFlags()...)
	flags = append(flags, cmd.ModelFlags()...)
	flags = append(flags, cmd.ObservabilityFlags()...)

	command := &cli.Command{
		Name:                  "nodeflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker executing requested workflows",
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

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("nodeflow-worker").With("worker_id", workerID)
	logger.InfoContext(ctx, "Initializing nodeflow worker")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), "nodeflow-worker", logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	locker, err := locks.NewRedisLocker(ctx, command.String("redis-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := locker.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close redis", "error", err)
		}
	}()

	modelRegistry, err := cmd.NewModelRegistry(cmd.ModelConfigFrom(command))
	if err != nil {
		return err
	}

	tracer, shutdownTracer, err := cmd.NewTracer(ctx, command.Bool("tracing"), "nodeflow-worker", workerID)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if err := shutdownTracer(flushCtx); err != nil {
			logger.ErrorContext(ctx, "Failed to flush traces", "error", err)
		}
	}()

	cmd.ServeMetrics(ctx, command.String("metrics-addr"), logger)

	registry := cmd.NewRegistry(logger, cmd.RegistryOptions{
		Models:    modelRegistry,
		Knowledge: persistence.KnowledgeRepository(),
		Sandbox:   sandbox.Options{Timeout: command.Duration("code-timeout")},
	})

	exec := executor.New(persistence, registry,
		executor.WithLogger(logger),
		executor.WithTracer(tracer),
		executor.WithMetrics(metrics.NewProm("nodeflow", prometheus.DefaultRegisterer)),
		executor.WithPublisher(eventBus),
		executor.WithCompiler(compiler.New(compiler.WithLogger(logger), compiler.WithSchemas(registry))),
		executor.WithWorkerID(workerID),
	)

	w := worker.New(eventBus, exec,
		worker.WithID(workerID),
		worker.WithLogger(logger),
		worker.WithLocker(locker),
		worker.WithConcurrency(int(command.Int("concurrency"))),
	)

	if command.Bool("recover-pending") {
		if _, err := w.RecoverPending(ctx, persistence.ExecutionRepository()); err != nil {
			logger.ErrorContext(ctx, "Failed to recover pending executions", "error", err)
		}
	}

	return w.Start(ctx)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dukex/nodeflow/pkg/cmd"
	"github.com/dukex/nodeflow/pkg/compiler"
	"github.com/dukex/nodeflow/pkg/definition"
	"github.com/dukex/nodeflow/pkg/executor"
	"github.com/dukex/nodeflow/pkg/log"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence/file"
	"github.com/dukex/nodeflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

var errExecutionFailed = errors.New("execution did not complete")

func databaseURLFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "database-url",
		Usage:    "Database connection URL for persistence",
		Required: true,
		Sources:  cli.EnvVars("DATABASE_URL"),
	}
}

func fileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "Workflow definition file (JSON or YAML)",
		Required: true,
	}
}

func inputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "input",
		Aliases: []string{"i"},
		Usage:   "Execution input as JSON, or @path to a JSON or YAML file",
	}
}

func executionIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "execution-id",
		Usage:    "Execution ID",
		Required: true,
	}
}

func writer(command *cli.Command) io.Writer {
	if w := command.Root().Writer; w != nil {
		return w
	}

	return os.Stdout
}

func printJSON(command *cli.Command, value any) error {
	encoder := json.NewEncoder(writer(command))
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}

func NewCompileCommand() *cli.Command {
	return &cli.Command{
		Name:  "compile",
		Usage: "Validate and compile a workflow definition",
		Flags: []cli.Flag{fileFlag()},
		Action: func(ctx context.Context, command *cli.Command) error {
			cmd.SetupLogging(command)
			logger := log.WithModule("nodeflow")

			workflow, err := definition.LoadWorkflow(command.String("file"))
			if err != nil {
				return err
			}

			if err := models.ValidateWorkflow(workflow); err != nil {
				return err
			}

			registry := cmd.NewRegistry(logger, cmd.RegistryOptions{})
			c := compiler.New(compiler.WithLogger(logger), compiler.WithSchemas(registry))

			plan, err := c.CompileWorkflow(workflow)
			if err != nil {
				var compilationErr *compiler.CompilationError
				if errors.As(err, &compilationErr) {
					_ = printJSON(command, map[string]any{"valid": false, "diagnostics": compilationErr.Diagnostics})
				}

				return err
			}

			return printJSON(command, map[string]any{
				"valid":           true,
				"entry":           plan.EntryID,
				"terminals":       plan.TerminalIDs,
				"loops":           plan.LoopNodeIDs,
				"execution_order": plan.ExecutionOrder,
			})
		},
	}
}

func NewExecuteCommand() *cli.Command {
	return &cli.Command{
		Name:  "execute",
		Usage: "Run a workflow definition locally against a temporary file store",
		Flags: append([]cli.Flag{
			fileFlag(),
			inputFlag(),
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Keep the execution in this directory instead of a temporary one",
			},
		}, cmd.ModelFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			cmd.SetupLogging(command)
			logger := log.WithModule("nodeflow")

			workflow, err := definition.LoadWorkflow(command.String("file"))
			if err != nil {
				return err
			}

			input, err := definition.ParseInput(command.String("input"))
			if err != nil {
				return err
			}

			dataDir := command.String("data-dir")
			if dataDir == "" {
				dataDir, err = os.MkdirTemp("", "nodeflow-*")
				if err != nil {
					return fmt.Errorf("failed to create data directory: %w", err)
				}

				defer os.RemoveAll(dataDir)
			}

			modelRegistry, err := cmd.NewModelRegistry(cmd.ModelConfigFrom(command))
			if err != nil {
				return err
			}

			store := file.NewPersistence(dataDir)
			registry := cmd.NewRegistry(logger, cmd.RegistryOptions{Models: modelRegistry, Knowledge: store.KnowledgeRepository()})
			c := compiler.New(compiler.WithLogger(logger), compiler.WithSchemas(registry))

			stored, err := services.NewWorkflow(store, c).Create(ctx, workflow)
			if err != nil {
				return err
			}

			requested, err := services.NewExecution(store, c, nil, logger).Request(ctx, stored.ID, "", input)
			if err != nil {
				return err
			}

			execution, runErr := executor.New(store, registry, executor.WithLogger(logger), executor.WithCompiler(c)).Run(ctx, requested.ID)
			if execution == nil {
				return runErr
			}

			logs, err := store.ExecutionRepository().ListLogs(ctx, execution.ID)
			if err != nil {
				return err
			}

			if err := printJSON(command, map[string]any{"execution": execution, "logs": logs}); err != nil {
				return err
			}

			if runErr != nil {
				return fmt.Errorf("%w: %w", errExecutionFailed, runErr)
			}

			return nil
		},
	}
}

func NewCreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Validate a workflow definition and store it",
		Flags: []cli.Flag{fileFlag(), databaseURLFlag()},
		Action: func(ctx context.Context, command *cli.Command) error {
			cmd.SetupLogging(command)
			logger := log.WithModule("nodeflow")

			workflow, err := definition.LoadWorkflow(command.String("file"))
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}
			defer closePersistence(ctx, persistence)

			registry := cmd.NewRegistry(logger, cmd.RegistryOptions{})
			service := services.NewWorkflow(persistence, compiler.New(compiler.WithLogger(logger), compiler.WithSchemas(registry)))

			if workflow.ID != "" {
				if _, err := service.FetchByID(ctx, workflow.ID); err == nil {
					workflow, err = service.Update(ctx, workflow.ID, workflow)
					if err != nil {
						return err
					}

					return printJSON(command, workflow)
				}
			}

			workflow, err = service.Create(ctx, workflow)
			if err != nil {
				return err
			}

			return printJSON(command, workflow)
		},
	}
}

func NewRequestCommand() *cli.Command {
	return &cli.Command{
		Name:  "request",
		Usage: "Create a pending execution and announce it to the workers",
		Flags: append([]cli.Flag{
			databaseURLFlag(),
			&cli.StringFlag{
				Name:     "workflow-id",
				Usage:    "Workflow to execute",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "user-id",
				Usage: "User requesting the execution",
			},
			inputFlag(),
		}, cmd.EventBusFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			cmd.SetupLogging(command)
			logger := log.WithModule("nodeflow")

			input, err := definition.ParseInput(command.String("input"))
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}
			defer closePersistence(ctx, persistence)

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), "nodeflow", logger)
			if err != nil {
				return err
			}
			defer closeEventBus(ctx, eventBus)

			execution, err := services.NewExecution(persistence, nil, eventBus, logger).
				Request(ctx, command.String("workflow-id"), command.String("user-id"), input)
			if err != nil {
				return err
			}

			return printJSON(command, execution)
		},
	}
}

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute one pending execution from the store",
		Flags: append([]cli.Flag{databaseURLFlag(), executionIDFlag()}, cmd.ModelFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			cmd.SetupLogging(command)
			logger := log.WithModule("nodeflow")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}
			defer closePersistence(ctx, persistence)

			modelRegistry, err := cmd.NewModelRegistry(cmd.ModelConfigFrom(command))
			if err != nil {
				return err
			}

			registry := cmd.NewRegistry(logger, cmd.RegistryOptions{Models: modelRegistry, Knowledge: persistence.KnowledgeRepository()})

			execution, runErr := executor.New(persistence, registry, executor.WithLogger(logger)).Run(ctx, command.String("execution-id"))
			if execution == nil {
				return runErr
			}

			if err := printJSON(command, execution); err != nil {
				return err
			}

			if runErr != nil {
				return fmt.Errorf("%w: %w", errExecutionFailed, runErr)
			}

			return nil
		},
	}
}

func NewCancelCommand() *cli.Command {
	return &cli.Command{
		Name:  "cancel",
		Usage: "Cancel a pending or running execution",
		Flags: []cli.Flag{databaseURLFlag(), executionIDFlag()},
		Action: func(ctx context.Context, command *cli.Command) error {
			cmd.SetupLogging(command)
			logger := log.WithModule("nodeflow")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}
			defer closePersistence(ctx, persistence)

			execution, err := services.NewExecution(persistence, nil, nil, logger).Cancel(ctx, command.String("execution-id"))
			if err != nil {
				return err
			}

			return printJSON(command, execution)
		},
	}
}

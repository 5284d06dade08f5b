// Package executor drives a compiled workflow against a persisted execution
// row: it walks the graph from the entry node, dispatches every node to its
// handler and records progress as it goes.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/nodeflow/pkg/compiler"
	"github.com/dukex/nodeflow/pkg/eventbus"
	"github.com/dukex/nodeflow/pkg/events"
	"github.com/dukex/nodeflow/pkg/metrics"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/otelhelper"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/dukex/nodeflow/pkg/state"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MaxLoopIterations bounds the iterations of a single loop node.
const MaxLoopIterations = 1000

// Dispatcher runs a node handler. *registry.Registry satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, nodeType models.NodeType, nodeID string, config map[string]any, st *state.ExecutionState) (map[string]any, error)
}

type Option func(*Executor)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

func WithMetrics(m metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithPublisher publishes execution and node lifecycle events.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Executor) {
		e.publisher = publisher
	}
}

// WithCompiler replaces the compiler used to plan workflows.
func WithCompiler(c *compiler.Compiler) Option {
	return func(e *Executor) {
		e.compiler = c
	}
}

// WithWorkerID tags published events with the id of the running worker.
func WithWorkerID(workerID string) Option {
	return func(e *Executor) {
		e.workerID = workerID
	}
}

type Executor struct {
	workflows  persistence.WorkflowRepository
	executions persistence.ExecutionRepository
	dispatcher Dispatcher
	compiler   *compiler.Compiler
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    metrics.Metrics
	publisher  eventbus.EventPublisher
	workerID   string
}

// New creates an executor. When dispatcher also provides node schemas, as
// *registry.Registry does, node configurations are validated at compile time.
func New(p persistence.Persistence, dispatcher Dispatcher, opts ...Option) *Executor {
	e := &Executor{
		workflows:  p.WorkflowRepository(),
		executions: p.ExecutionRepository(),
		dispatcher: dispatcher,
		logger:     slog.Default(),
		tracer:     otelhelper.NoopTracer(),
		metrics:    metrics.Noop{},
	}

	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("module", "executor")

	if e.compiler == nil {
		compilerOpts := []compiler.Option{compiler.WithLogger(e.logger)}
		if schemas, ok := dispatcher.(compiler.SchemaProvider); ok {
			compilerOpts = append(compilerOpts, compiler.WithSchemas(schemas))
		}

		e.compiler = compiler.New(compilerOpts...)
	}

	return e
}

// Run executes the pending execution executionID to a terminal status and
// returns the final row. A failed or cancelled execution is returned together
// with the error that ended it (*ExecutionError or ErrCancelled).
func (e *Executor) Run(ctx context.Context, executionID string) (*models.Execution, error) {
	execution, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load execution %s: %w", persistence.ErrPersistence, executionID, err)
	}

	if execution.Status != models.ExecutionStatusPending {
		return execution, fmt.Errorf("%w: execution %s is %s", ErrExecutionNotPending, executionID, execution.Status)
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "execution.run",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.WorkflowIDKey, execution.WorkflowID),
	)
	defer span.End()

	logger := e.logger.With("execution_id", execution.ID, "workflow_id", execution.WorkflowID)
	started := time.Now().UTC()

	st := state.New(execution.ID, execution.WorkflowID, execution.UserID, execution.InputData, execution.Variables)
	r := &run{Executor: e, execution: execution, state: st, logger: logger}

	plan, err := e.loadPlan(ctx, execution.WorkflowID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to plan workflow", "error", err)

		return r.finish(ctx, span, started, err)
	}

	r.plan = plan

	if err := e.executions.Update(ctx, execution.ID, models.ExecutionUpdate{
		Status:    models.Ptr(models.ExecutionStatusRunning),
		StartedAt: &started,
	}); err != nil {
		err = fmt.Errorf("%w: failed to mark execution %s running: %w", persistence.ErrPersistence, execution.ID, err)
		otelhelper.SetError(span, err)

		return execution, err
	}

	execution.Status = models.ExecutionStatusRunning
	execution.StartedAt = &started

	e.metrics.IncExecutionStarted(execution.WorkflowID)
	r.publish(ctx, events.ExecutionStarted{BaseEvent: e.baseEvent(events.ExecutionStartedEvent, execution)})
	logger.InfoContext(ctx, "execution started", "entry_node", plan.EntryID)

	err = r.visit(ctx, plan.EntryID, newTraversal())

	return r.finish(ctx, span, started, err)
}

func (e *Executor) loadPlan(ctx context.Context, workflowID string) (*compiler.CompiledWorkflow, error) {
	workflow, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	return e.compiler.CompileWorkflow(workflow)
}

func (e *Executor) baseEvent(eventType events.EventType, execution *models.Execution) events.BaseEvent {
	base := events.NewBaseEvent(eventType, execution.WorkflowID, execution.ID)
	base.WorkerID = e.workerID

	return base
}

func (e *Executor) publishEvent(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// Package worker consumes execution requests from the event bus and runs
// them with the executor, one claim per execution.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/nodeflow/pkg/eventbus"
	"github.com/dukex/nodeflow/pkg/events"
	"github.com/dukex/nodeflow/pkg/executor"
	"github.com/dukex/nodeflow/pkg/locks"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

// Runner runs one pending execution. *executor.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, executionID string) (*models.Execution, error)
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithID sets the lock owner and event worker id. A random id is used otherwise.
func WithID(id string) Option {
	return func(w *Worker) {
		w.id = id
	}
}

// WithLocker claims executions through locker. The default is an in-process
// MemoryLocker, which only protects against duplicates within one worker.
func WithLocker(locker locks.Locker) Option {
	return func(w *Worker) {
		w.locker = locker
	}
}

func WithLockTTL(ttl time.Duration) Option {
	return func(w *Worker) {
		w.lockTTL = ttl
	}
}

// WithConcurrency bounds the executions run at the same time.
func WithConcurrency(n int) Option {
	return func(w *Worker) {
		w.concurrency = n
	}
}

type Worker struct {
	id          string
	bus         eventbus.EventSubscriber
	runner      Runner
	locker      locks.Locker
	lockTTL     time.Duration
	concurrency int
	logger      *slog.Logger
	group       *errgroup.Group
}

func New(bus eventbus.EventSubscriber, runner Runner, opts ...Option) *Worker {
	w := &Worker{
		bus:         bus,
		runner:      runner,
		lockTTL:     locks.DefaultTTL,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.id == "" {
		w.id = "worker-" + uuid.NewString()[:8]
	}

	if w.locker == nil {
		w.locker = locks.NewMemoryLocker()
	}

	if w.lockTTL <= 0 {
		w.lockTTL = locks.DefaultTTL
	}

	if w.concurrency <= 0 {
		w.concurrency = DefaultConcurrency
	}

	w.logger = w.logger.With("module", "worker", "worker_id", w.id)
	w.group = &errgroup.Group{}
	w.group.SetLimit(w.concurrency)

	return w
}

func (w *Worker) ID() string {
	return w.id
}

// Listen subscribes to execution requests without blocking.
func (w *Worker) Listen(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker", "concurrency", w.concurrency)

	if err := w.bus.Handle(events.ExecutionRequestedEvent, w.handleExecutionRequested); err != nil {
		return err
	}

	if err := w.bus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	return nil
}

// Start listens and blocks until ctx is done, then waits for the executions
// in flight.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Listen(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	w.logger.InfoContext(ctx, "Shutting down worker, waiting for running executions")

	return w.Wait()
}

// Wait blocks until every submitted execution has finished.
func (w *Worker) Wait() error {
	return w.group.Wait()
}

// Submit runs executionID in the worker pool. It blocks while the pool is full.
func (w *Worker) Submit(ctx context.Context, executionID string) {
	w.group.Go(func() error {
		w.Process(ctx, executionID)

		return nil
	})
}

// RecoverPending submits every execution still pending in executions, for
// requests published while no worker was listening.
func (w *Worker) RecoverPending(ctx context.Context, executions persistence.ExecutionRepository) (int, error) {
	pending, err := executions.ListByStatus(ctx, models.ExecutionStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending executions: %w", err)
	}

	for _, execution := range pending {
		w.Submit(ctx, execution.ID)
	}

	if len(pending) > 0 {
		w.logger.InfoContext(ctx, "Recovered pending executions", "count", len(pending))
	}

	return len(pending), nil
}

func (w *Worker) handleExecutionRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.ExecutionRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ExecutionRequested")

		return nil
	}

	// running executions outlive the subscription and finish during shutdown
	w.Submit(context.WithoutCancel(ctx), requested.ExecutionID)

	return nil
}

// Process claims executionID and runs it. Executions claimed by another
// worker or no longer pending are skipped.
func (w *Worker) Process(ctx context.Context, executionID string) {
	logger := w.logger.With("execution_id", executionID)
	resource := locks.ExecutionResource(executionID)

	acquired, err := w.locker.Acquire(ctx, resource, w.id, w.lockTTL)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to claim execution", "error", err)

		return
	}

	if !acquired {
		logger.InfoContext(ctx, "Execution already claimed by another worker")

		return
	}

	runCtx, stopRenew := context.WithCancel(ctx)
	renewed := make(chan struct{})

	go func() {
		defer close(renewed)
		w.renew(runCtx, logger, resource)
	}()

	defer func() {
		stopRenew()
		<-renewed

		if _, err := w.locker.Release(context.WithoutCancel(ctx), resource, w.id); err != nil {
			logger.WarnContext(ctx, "Failed to release execution claim", "error", err)
		}
	}()

	logger.InfoContext(ctx, "Processing execution")

	execution, err := w.runner.Run(runCtx, executionID)

	switch {
	case errors.Is(err, executor.ErrExecutionNotPending):
		logger.InfoContext(ctx, "Execution is not pending, skipping", "error", err)
	case err != nil:
		logger.ErrorContext(ctx, "Execution did not complete", "error", err)
	default:
		logger.InfoContext(ctx, "Execution finished", "status", execution.Status)
	}
}

func (w *Worker) renew(ctx context.Context, logger *slog.Logger, resource string) {
	ticker := time.NewTicker(w.lockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := w.locker.Renew(ctx, resource, w.id, w.lockTTL)
			if err != nil && ctx.Err() == nil {
				logger.WarnContext(ctx, "Failed to renew execution claim", "error", err)
			}

			if err == nil && !ok {
				logger.WarnContext(ctx, "Execution claim lost")

				return
			}
		}
	}
}

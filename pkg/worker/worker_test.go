package worker

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/nodeflow/pkg/channels/gochannel"
	"github.com/dukex/nodeflow/pkg/eventbus"
	"github.com/dukex/nodeflow/pkg/executor"
	"github.com/dukex/nodeflow/pkg/locks"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence/file"
	"github.com/dukex/nodeflow/pkg/registry"
	"github.com/dukex/nodeflow/pkg/sandbox"
	"github.com/dukex/nodeflow/pkg/services"
	"github.com/dukex/nodeflow/pkg/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stack struct {
	store      *file.Persistence
	executor   *executor.Executor
	executions *services.Execution
	workflow   *models.Workflow
}

func newStack(t *testing.T, publisher eventbus.EventPublisher) *stack {
	t.Helper()

	logger := quietLogger()
	store := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes(registry.Dependencies{
		HTTPClient: http.DefaultClient,
		Sandbox:    sandbox.NewRunner(logger, sandbox.Options{}),
	})

	workflow, err := services.NewWorkflow(store, nil).Create(t.Context(), testutil.CreateTestWorkflowWithNodes())
	require.NoError(t, err)

	return &stack{
		store:      store,
		executor:   executor.New(store, reg, executor.WithLogger(logger)),
		executions: services.NewExecution(store, nil, publisher, logger),
		workflow:   workflow,
	}
}

func (s *stack) status(t *testing.T, executionID string) models.ExecutionStatus {
	t.Helper()

	execution, err := s.executions.FetchByID(t.Context(), executionID)
	if err != nil {
		return ""
	}

	return execution.Status
}

func newBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, quietLogger())
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

type countingRunner struct {
	mu      sync.Mutex
	calls   []string
	running atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
}

func (r *countingRunner) Run(_ context.Context, executionID string) (*models.Execution, error) {
	current := r.running.Add(1)
	defer r.running.Add(-1)

	for {
		peak := r.peak.Load()
		if current <= peak || r.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	time.Sleep(r.delay)

	r.mu.Lock()
	r.calls = append(r.calls, executionID)
	r.mu.Unlock()

	return &models.Execution{ID: executionID, Status: models.ExecutionStatusCompleted}, nil
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.calls)
}

func TestNew_Defaults(t *testing.T) {
	w := New(newBus(t), &countingRunner{}, WithConcurrency(-1), WithLockTTL(0))

	assert.Contains(t, w.ID(), "worker-")
	assert.Equal(t, DefaultConcurrency, w.concurrency)
	assert.Equal(t, locks.DefaultTTL, w.lockTTL)
	assert.NotNil(t, w.locker)
}

func TestWorker_ProcessRunsAndReleasesClaim(t *testing.T) {
	s := newStack(t, nil)
	locker := locks.NewMemoryLocker()
	w := New(newBus(t), s.executor, WithID("w1"), WithLocker(locker), WithLogger(quietLogger()))

	execution, err := s.executions.Request(t.Context(), s.workflow.ID, "", map[string]any{"n": 4})
	require.NoError(t, err)

	w.Process(t.Context(), execution.ID)

	assert.Equal(t, models.ExecutionStatusCompleted, s.status(t, execution.ID))

	acquired, err := locker.Acquire(t.Context(), locks.ExecutionResource(execution.ID), "w2", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// a second delivery of the same request is a no-op
	w.Process(t.Context(), execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, s.status(t, execution.ID))
}

func TestWorker_ProcessSkipsClaimedExecution(t *testing.T) {
	locker := locks.NewMemoryLocker()
	runner := &countingRunner{}
	w := New(newBus(t), runner, WithID("w1"), WithLocker(locker), WithLogger(quietLogger()))

	acquired, err := locker.Acquire(t.Context(), locks.ExecutionResource("exec-1"), "w2", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	w.Process(t.Context(), "exec-1")
	assert.Equal(t, 0, runner.count())

	w.Process(t.Context(), "exec-2")
	assert.Equal(t, 1, runner.count())
}

func TestWorker_ConcurrencyLimit(t *testing.T) {
	runner := &countingRunner{delay: 50 * time.Millisecond}
	w := New(newBus(t), runner, WithConcurrency(2), WithLogger(quietLogger()))

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		w.Submit(t.Context(), id)
	}

	require.NoError(t, w.Wait())
	assert.Equal(t, 5, runner.count())
	assert.LessOrEqual(t, runner.peak.Load(), int32(2))
}

func TestWorker_ConsumesExecutionRequests(t *testing.T) {
	bus := newBus(t)
	s := newStack(t, bus)
	w := New(bus, s.executor, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, w.Listen(ctx))

	execution, err := s.executions.Request(t.Context(), s.workflow.ID, "user-1", map[string]any{"n": 21})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return s.status(t, execution.ID) == models.ExecutionStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	logs, err := s.executions.Logs(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	cancel()
	require.NoError(t, w.Wait())
}

func TestWorker_RecoverPendingWithRedisClaims(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	locker := locks.NewRedisLockerWithClient(client)
	t.Cleanup(func() { _ = locker.Close() })

	s := newStack(t, nil)
	w := New(newBus(t), s.executor, WithLocker(locker), WithLogger(quietLogger()))

	first, err := s.executions.Request(t.Context(), s.workflow.ID, "", map[string]any{"n": 1})
	require.NoError(t, err)
	second, err := s.executions.Request(t.Context(), s.workflow.ID, "", map[string]any{"n": 2})
	require.NoError(t, err)

	count, err := w.RecoverPending(t.Context(), s.store.ExecutionRepository())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, w.Wait())

	assert.Equal(t, models.ExecutionStatusCompleted, s.status(t, first.ID))
	assert.Equal(t, models.ExecutionStatusCompleted, s.status(t, second.ID))
	assert.Empty(t, server.Keys())
}

// Package scheduler turns trigger nodes with a cron schedule into pending
// executions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/robfig/cron/v3"
)

const (
	// ScheduleConfigKey is the trigger node config entry holding a standard
	// five field cron expression.
	ScheduleConfigKey = "schedule"

	DefaultRefreshInterval = time.Minute
	TriggeredBySchedule    = "schedule"
)

// Requester creates pending executions. *services.Execution satisfies it.
type Requester interface {
	Request(ctx context.Context, workflowID, userID string, input map[string]any) (*models.Execution, error)
}

// Schedule is one registered cron job.
type Schedule struct {
	WorkflowID string
	NodeID     string
	Expression string
	Next       time.Time
}

func (s Schedule) key() string {
	return s.WorkflowID + "/" + s.NodeID + "@" + s.Expression
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithRefreshInterval sets how often stored workflows are re-read.
func WithRefreshInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		s.refresh = interval
	}
}

// WithLocation evaluates cron expressions in loc instead of UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

type Scheduler struct {
	workflows persistence.WorkflowRepository
	requester Requester
	logger    *slog.Logger
	refresh   time.Duration
	location  *time.Location
	cron      *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
	jobs    map[cron.EntryID]Schedule
}

func New(workflows persistence.WorkflowRepository, requester Requester, opts ...Option) *Scheduler {
	s := &Scheduler{
		workflows: workflows,
		requester: requester,
		logger:    slog.Default(),
		refresh:   DefaultRefreshInterval,
		location:  time.UTC,
		entries:   make(map[string]cron.EntryID),
		jobs:      make(map[cron.EntryID]Schedule),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.refresh <= 0 {
		s.refresh = DefaultRefreshInterval
	}

	if s.location == nil {
		s.location = time.UTC
	}

	s.logger = s.logger.With("module", "scheduler")
	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		),
	)

	return s
}

// SchedulesOf returns the cron schedules declared by the trigger nodes of
// workflow. Nodes with an invalid expression are reported in the error and
// skipped.
func SchedulesOf(workflow *models.Workflow) ([]Schedule, error) {
	var (
		schedules []Schedule
		invalid   []string
	)

	for _, node := range workflow.Nodes {
		if node.Type != models.NodeTypeTrigger {
			continue
		}

		expr, _ := node.Config[ScheduleConfigKey].(string)

		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}

		if _, err := cron.ParseStandard(expr); err != nil {
			invalid = append(invalid, fmt.Sprintf("node %s: %v", node.ID, err))

			continue
		}

		schedules = append(schedules, Schedule{WorkflowID: workflow.ID, NodeID: node.ID, Expression: expr})
	}

	if len(invalid) > 0 {
		return schedules, fmt.Errorf("invalid cron expression in workflow %s: %s", workflow.ID, strings.Join(invalid, "; "))
	}

	return schedules, nil
}

// Sync registers the schedules of every stored workflow and removes the ones
// that disappeared or changed.
func (s *Scheduler) Sync(ctx context.Context) error {
	workflows, err := s.workflows.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	wanted := make(map[string]Schedule)

	for _, workflow := range workflows {
		schedules, err := SchedulesOf(workflow)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping invalid schedule", "workflow_id", workflow.ID, "error", err)
		}

		for _, schedule := range schedules {
			wanted[schedule.key()] = schedule
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entryID := range s.entries {
		if _, ok := wanted[key]; ok {
			continue
		}

		s.cron.Remove(entryID)
		delete(s.entries, key)
		delete(s.jobs, entryID)

		s.logger.InfoContext(ctx, "schedule removed", "schedule", key)
	}

	for key, schedule := range wanted {
		if _, ok := s.entries[key]; ok {
			continue
		}

		entryID, err := s.cron.AddFunc(schedule.Expression, func() {
			s.fire(context.WithoutCancel(ctx), schedule)
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to add cron job", "schedule", key, "error", err)

			continue
		}

		s.entries[key] = entryID
		s.jobs[entryID] = schedule

		s.logger.InfoContext(ctx, "schedule added", "workflow_id", schedule.WorkflowID, "node_id", schedule.NodeID, "cron", schedule.Expression)
	}

	return nil
}

// Schedules returns the registered schedules ordered by workflow and node.
func (s *Scheduler) Schedules() []Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedules := make([]Schedule, 0, len(s.jobs))

	for _, key := range slices.Sorted(maps.Keys(s.entries)) {
		entryID := s.entries[key]
		schedule := s.jobs[entryID]
		schedule.Next = s.cron.Entry(entryID).Next
		schedules = append(schedules, schedule)
	}

	return schedules
}

// Run syncs, starts the cron runner and re-syncs on every refresh interval
// until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Sync(ctx); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "scheduler started", "refresh_interval", s.refresh)

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-s.cron.Stop().Done()
			s.logger.InfoContext(ctx, "scheduler stopped")

			return nil
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				s.logger.ErrorContext(ctx, "failed to refresh schedules", "error", err)
			}
		}
	}
}

// Fire requests one execution for schedule as if its cron entry had ticked.
func (s *Scheduler) Fire(ctx context.Context, schedule Schedule) (*models.Execution, error) {
	input := map[string]any{
		"triggered_by": TriggeredBySchedule,
		"scheduled_at": time.Now().In(s.location).Format(time.RFC3339),
		"trigger_node": schedule.NodeID,
		"schedule":     schedule.Expression,
	}

	execution, err := s.requester.Request(ctx, schedule.WorkflowID, "", input)
	if err != nil {
		return execution, fmt.Errorf("failed to request scheduled execution of workflow %s: %w", schedule.WorkflowID, err)
	}

	return execution, nil
}

func (s *Scheduler) fire(ctx context.Context, schedule Schedule) {
	execution, err := s.Fire(ctx, schedule)
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled execution failed", "workflow_id", schedule.WorkflowID, "error", err)

		return
	}

	s.logger.InfoContext(ctx, "scheduled execution requested", "workflow_id", schedule.WorkflowID, "execution_id", execution.ID)
}

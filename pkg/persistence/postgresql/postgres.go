// Package postgresql provides the PostgreSQL persistence implementation for
// workflows, executions, execution logs and knowledge chunks.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/dukex/nodeflow/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	knowledgeRepo *KnowledgeRepository
}

// PoolOptions tune the connection pool. Zero values keep database/sql
// defaults.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Option func(*PoolOptions)

func WithMaxOpenConns(n int) Option {
	return func(o *PoolOptions) {
		o.MaxOpenConns = n
	}
}

func WithMaxIdleConns(n int) Option {
	return func(o *PoolOptions) {
		o.MaxIdleConns = n
	}
}

func WithConnMaxLifetime(d time.Duration) Option {
	return func(o *PoolOptions) {
		o.ConnMaxLifetime = d
	}
}

// NewPersistence connects to databaseURL and brings the schema up to date.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string, opts ...Option) (*Persistence, error) {
	pool := PoolOptions{}
	for _, opt := range opts {
		opt(&pool)
	}

	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PostgreSQL database: %w", persistence.ErrPersistence, err)
	}

	if pool.MaxOpenConns > 0 {
		database.SetMaxOpenConns(pool.MaxOpenConns)
	}

	if pool.MaxIdleConns > 0 {
		database.SetMaxIdleConns(pool.MaxIdleConns)
	}

	if pool.ConnMaxLifetime > 0 {
		database.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("%w: failed to ping database: %w", persistence.ErrPersistence, err)
	}

	logger = logger.With("module", "postgresql")

	manager, err := sqlbase.NewMigrationManager(logger, database, migrationLockKey, migrations())
	if err == nil {
		err = manager.RunMigrations(ctx)
	}

	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("%w: failed to migrate schema: %w", persistence.ErrPersistence, err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		workflowRepo:  NewWorkflowRepository(database, logger),
		executionRepo: NewExecutionRepository(database, logger),
		knowledgeRepo: NewKnowledgeRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to ping database: %w", persistence.ErrPersistence, err)
	}

	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) KnowledgeRepository() persistence.KnowledgeRepository {
	return p.knowledgeRepo
}

type rowScanner interface {
	Scan(dest ...any) error
}

// closeRows closes rows and logs a failure.
func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

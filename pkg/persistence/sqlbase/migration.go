// Package sqlbase provides schema migrations shared by the SQL stores.
package sqlbase

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

var ErrDuplicateMigration = errors.New("duplicate migration version")

// Migration is one forward-only schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationManager applies migrations in ascending version order, each in its
// own transaction, and records them in schema_migrations.
type MigrationManager struct {
	db         *sql.DB
	logger     *slog.Logger
	migrations []Migration
	lockKey    int64
}

// NewMigrationManager creates a migration manager. A non-zero lockKey makes
// RunMigrations hold a PostgreSQL advisory lock so that processes starting
// together upgrade the schema one at a time.
func NewMigrationManager(logger *slog.Logger, db *sql.DB, lockKey int64, migrations []Migration) (*MigrationManager, error) {
	sorted := slices.SortedFunc(slices.Values(migrations), func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Version == sorted[i-1].Version {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateMigration, sorted[i].Version)
		}
	}

	return &MigrationManager{
		db:         db,
		logger:     logger,
		migrations: sorted,
		lockKey:    lockKey,
	}, nil
}

// LatestVersion returns the highest known migration version.
func (m *MigrationManager) LatestVersion() int {
	if len(m.migrations) == 0 {
		return 0
	}

	return m.migrations[len(m.migrations)-1].Version
}

// Pending returns the migrations newer than version.
func (m *MigrationManager) Pending(version int) []Migration {
	idx, _ := slices.BinarySearchFunc(m.migrations, version+1, func(mig Migration, v int) int {
		return cmp.Compare(mig.Version, v)
	})

	return m.migrations[idx:]
}

// RunMigrations brings the schema up to LatestVersion.
func (m *MigrationManager) RunMigrations(ctx context.Context) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire migration connection: %w", err)
	}

	defer func() { _ = conn.Close() }()

	if m.lockKey != 0 {
		if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", m.lockKey); err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}

		defer func() {
			if _, err := conn.ExecContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", m.lockKey); err != nil {
				m.logger.WarnContext(ctx, "Failed to release migration lock", "error", err)
			}
		}()
	}

	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	current, err := currentVersion(ctx, conn)
	if err != nil {
		return err
	}

	pending := m.Pending(current)
	m.logger.InfoContext(ctx, "Checking database schema", "version", current, "pending", len(pending))

	for _, migration := range pending {
		if err := m.apply(ctx, conn, migration); err != nil {
			return err
		}
	}

	return nil
}

// CurrentVersion returns the highest applied schema version.
func (m *MigrationManager) CurrentVersion(ctx context.Context) (int, error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection: %w", err)
	}

	defer func() { _ = conn.Close() }()

	return currentVersion(ctx, conn)
}

func currentVersion(ctx context.Context, conn *sql.Conn) (int, error) {
	var version int

	err := conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to query current schema version: %w", err)
	}

	return version, nil
}

func (m *MigrationManager) apply(ctx context.Context, conn *sql.Conn, migration Migration) error {
	logger := m.logger.With("version", migration.Version, "name", migration.Name)
	logger.InfoContext(ctx, "Applying migration")

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
	}

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("failed to execute migration %d (%s): %w", migration.Version, migration.Name, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
		migration.Version, migration.Name,
	); err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}

	logger.InfoContext(ctx, "Migration applied")

	return nil
}

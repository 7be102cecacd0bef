package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"github.com/jbweber/homelab/deptsvc/internal/datastore"
)

// Migration is a versioned schema change. Up and Down run inside a transaction.
type Migration struct {
	Version int64
	Name    string
	Up      func(ctx context.Context, tx *sql.Tx, dialect datastore.Dialect) error
	Down    func(ctx context.Context, tx *sql.Tx, dialect datastore.Dialect) error
}

// Migrator applies migrations and records them in schema_migrations.
type Migrator struct {
	db         *sql.DB
	dialect    datastore.Dialect
	builder    sq.StatementBuilderType
	migrations []Migration
}

// NewMigrator creates a migrator for the given datastore.
func NewMigrator(ds *datastore.Datastore) *Migrator {
	return &Migrator{
		db:         ds.DB,
		dialect:    ds.Dialect,
		builder:    ds.Builder(),
		migrations: []Migration{},
	}
}

// AddMigration registers a migration, keeping the list ordered by version.
func (m *Migrator) AddMigration(migration Migration) {
	m.migrations = append(m.migrations, migration)
	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})
}

// RunMigrations applies every migration newer than the recorded version.
func (m *Migrator) RunMigrations(ctx context.Context) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, migration := range m.migrations {
		if migration.Version > currentVersion {
			if err := m.runMigration(ctx, migration); err != nil {
				return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
			}
		}
	}

	return nil
}

// RollbackLast reverts the most recently applied migration. It returns the
// reverted version, or 0 when nothing was applied.
func (m *Migrator) RollbackLast(ctx context.Context) (int64, error) {
	if err := m.createMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	if currentVersion == 0 {
		return 0, nil
	}

	for _, migration := range m.migrations {
		if migration.Version != currentVersion {
			continue
		}
		if migration.Down == nil {
			return 0, fmt.Errorf("migration %d (%s) has no down step", migration.Version, migration.Name)
		}
		err := m.inTx(ctx, func(tx *sql.Tx) error {
			if err := migration.Down(ctx, tx, m.dialect); err != nil {
				return err
			}
			query, args, err := m.builder.Delete("schema_migrations").Where(sq.Eq{"version": migration.Version}).ToSql()
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, query, args...)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("failed to roll back migration %d (%s): %w", migration.Version, migration.Name, err)
		}
		return migration.Version, nil
	}

	return 0, fmt.Errorf("applied migration %d is not registered", currentVersion)
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	appliedAt := "DATETIME DEFAULT CURRENT_TIMESTAMP"
	if m.dialect == datastore.Postgres {
		appliedAt = "TIMESTAMPTZ DEFAULT NOW()"
	}
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at %s
		)
	`, appliedAt))
	return err
}

func (m *Migrator) getCurrentVersion(ctx context.Context) (int64, error) {
	var version int64
	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (m *Migrator) runMigration(ctx context.Context, migration Migration) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		if err := migration.Up(ctx, tx, m.dialect); err != nil {
			return err
		}
		query, args, err := m.builder.Insert("schema_migrations").
			Columns("version", "name").
			Values(migration.Version, migration.Name).
			ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
}

func (m *Migrator) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// GetCurrentVersion returns the highest applied migration version.
func (m *Migrator) GetCurrentVersion(ctx context.Context) (int64, error) {
	return m.getCurrentVersion(ctx)
}

// Apply registers the initial migrations on a new migrator and runs them.
func Apply(ctx context.Context, ds *datastore.Datastore) (int64, error) {
	migrator := NewMigrator(ds)
	for _, migration := range GetInitialMigrations() {
		migrator.AddMigration(migration)
	}
	if err := migrator.RunMigrations(ctx); err != nil {
		return 0, err
	}
	return migrator.GetCurrentVersion(ctx)
}

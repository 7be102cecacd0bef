package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/jbweber/homelab/deptsvc/internal/datastore"
)

func newTestDatastore(t *testing.T) *datastore.Datastore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	ds := datastore.New(db, datastore.SQLite)
	t.Cleanup(func() {
		if closeErr := ds.Close(); closeErr != nil {
			t.Logf("Warning: failed to close test database: %v", closeErr)
		}
	})
	return ds
}

func newInitialMigrator(ds *datastore.Datastore) *Migrator {
	migrator := NewMigrator(ds)
	for _, migration := range GetInitialMigrations() {
		migrator.AddMigration(migration)
	}
	return migrator
}

func objectExists(t *testing.T, db *sql.DB, kind, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", kind, name).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func TestMigrator_RunMigrations(t *testing.T) {
	ctx := context.Background()
	ds := newTestDatastore(t)
	migrator := newInitialMigrator(ds)

	require.NoError(t, migrator.RunMigrations(ctx))

	version, err := migrator.GetCurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	assert.True(t, objectExists(t, ds.DB, "table", "departments"))
	assert.True(t, objectExists(t, ds.DB, "table", "schema_migrations"))
	assert.True(t, objectExists(t, ds.DB, "index", "idx_departments_name"))

	var count int
	require.NoError(t, ds.DB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestMigrator_RunMigrationsIdempotent(t *testing.T) {
	ctx := context.Background()
	ds := newTestDatastore(t)

	require.NoError(t, newInitialMigrator(ds).RunMigrations(ctx))

	_, err := ds.DB.Exec("INSERT INTO departments (name, code, address) VALUES ('Sales', 'S-1', 'Lyon')")
	require.NoError(t, err)

	migrator := newInitialMigrator(ds)
	require.NoError(t, migrator.RunMigrations(ctx))

	version, err := migrator.GetCurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	var count int
	require.NoError(t, ds.DB.QueryRow("SELECT COUNT(*) FROM departments").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMigrator_RollbackLast(t *testing.T) {
	ctx := context.Background()
	ds := newTestDatastore(t)
	migrator := newInitialMigrator(ds)
	require.NoError(t, migrator.RunMigrations(ctx))

	reverted, err := migrator.RollbackLast(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reverted)
	assert.False(t, objectExists(t, ds.DB, "index", "idx_departments_name"))
	assert.True(t, objectExists(t, ds.DB, "table", "departments"))

	reverted, err = migrator.RollbackLast(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reverted)
	assert.False(t, objectExists(t, ds.DB, "table", "departments"))

	reverted, err = migrator.RollbackLast(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), reverted)

	version, err := migrator.GetCurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
}

func TestMigrator_RollbackWithoutDown(t *testing.T) {
	ctx := context.Background()
	ds := newTestDatastore(t)
	migrator := NewMigrator(ds)
	migrator.AddMigration(Migration{
		Version: 1,
		Name:    "one_way",
		Up: func(ctx context.Context, tx *sql.Tx, _ datastore.Dialect) error {
			_, err := tx.ExecContext(ctx, "CREATE TABLE one_way (id INTEGER)")
			return err
		},
	})
	require.NoError(t, migrator.RunMigrations(ctx))

	_, err := migrator.RollbackLast(ctx)
	assert.ErrorContains(t, err, "no down step")
}

func TestMigrator_FailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	ds := newTestDatastore(t)
	migrator := NewMigrator(ds)
	migrator.AddMigration(Migration{
		Version: 1,
		Name:    "broken",
		Up: func(ctx context.Context, tx *sql.Tx, _ datastore.Dialect) error {
			if _, err := tx.ExecContext(ctx, "CREATE TABLE half_done (id INTEGER)"); err != nil {
				return err
			}
			return errors.New("boom")
		},
	})

	err := migrator.RunMigrations(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	assert.False(t, objectExists(t, ds.DB, "table", "half_done"))
	version, err := migrator.GetCurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
}

func TestMigrator_AddMigrationSortsByVersion(t *testing.T) {
	ds := newTestDatastore(t)
	migrator := NewMigrator(ds)

	noop := func(context.Context, *sql.Tx, datastore.Dialect) error { return nil }
	migrator.AddMigration(Migration{Version: 3, Name: "three", Up: noop})
	migrator.AddMigration(Migration{Version: 1, Name: "one", Up: noop})
	migrator.AddMigration(Migration{Version: 2, Name: "two", Up: noop})

	got := migrator.migrations
	require.Len(t, got, 3)
	for i, want := range []int64{1, 2, 3} {
		assert.Equal(t, want, got[i].Version)
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	ds := newTestDatastore(t)

	version, err := Apply(ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	version, err = Apply(ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}

package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDSN(testID string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", testID)
}

func newInMemory(t *testing.T) *Datastore {
	t.Helper()
	db, err := sql.Open("sqlite", testDSN(t.Name()))
	require.NoError(t, err)
	ds := New(db, SQLite)
	t.Cleanup(func() {
		if err := ds.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})
	return ds
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		name    string
		want    Dialect
		wantErr bool
	}{
		{"sqlite", SQLite, false},
		{"sqlite3", SQLite, false},
		{"postgres", Postgres, false},
		{"postgresql", Postgres, false},
		{"pgx", Postgres, false},
		{"mysql", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDialect(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDialect_DriverName(t *testing.T) {
	assert.Equal(t, "sqlite", SQLite.DriverName())
	assert.Equal(t, "pgx", Postgres.DriverName())
}

func TestDialect_BuilderPlaceholders(t *testing.T) {
	query, args, err := SQLite.Builder().Select("id").From("departments").Where("name = ?", "Sales").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM departments WHERE name = ?", query)
	assert.Equal(t, []any{"Sales"}, args)

	query, _, err = Postgres.Builder().Select("id").From("departments").Where("name = ?", "Sales").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM departments WHERE name = $1", query)
}

func TestOpen_SQLiteFile(t *testing.T) {
	ctx := context.Background()
	ds, err := Open(ctx, Options{
		Dialect: SQLite,
		DSN:     filepath.Join(t.TempDir(), "deptsvc.db"),
	})
	require.NoError(t, err)
	defer ds.Close()

	assert.Equal(t, SQLite, ds.Dialect)

	var fk int
	require.NoError(t, ds.DB.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var mode string
	require.NoError(t, ds.DB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	assert.Equal(t, 10, ds.DB.Stats().MaxOpenConnections)
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), Options{Dialect: SQLite})
	assert.Error(t, err)
}

func TestOpen_UnreachableDirectory(t *testing.T) {
	_, err := Open(context.Background(), Options{
		Dialect: SQLite,
		DSN:     filepath.Join(t.TempDir(), "missing", "dir", "deptsvc.db"),
	})
	assert.Error(t, err)
}

func TestPreparedStatementCache(t *testing.T) {
	ctx := context.Background()
	ds := newInMemory(t)

	_, err := ds.DB.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	const query = "SELECT name FROM items WHERE id = ?"
	first, err := ds.Prepared(ctx, query)
	require.NoError(t, err)
	second, err := ds.Prepared(ctx, query)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, ds.stmts.Size())

	_, err = ds.Prepared(ctx, "SELECT id FROM items")
	require.NoError(t, err)
	assert.Equal(t, 2, ds.stmts.Size())

	require.NoError(t, ds.stmts.Clear(query))
	assert.Equal(t, 1, ds.stmts.Size())
	require.NoError(t, ds.stmts.Clear("never cached"))

	require.NoError(t, ds.stmts.Close())
	assert.Equal(t, 0, ds.stmts.Size())
}

func TestPreparedStatementCache_InvalidQuery(t *testing.T) {
	ds := newInMemory(t)

	_, err := ds.Prepared(context.Background(), "SELECT FROM nowhere WHERE")
	assert.Error(t, err)
	assert.Equal(t, 0, ds.stmts.Size())
}

package testutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jbweber/homelab/deptsvc/internal/datastore"
	"github.com/jbweber/homelab/deptsvc/internal/migrations"
)

// NewTestDSN generates a DSN for an in-memory SQLite database for testing purposes.
func NewTestDSN(testName string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", testName)
}

// CleanupTestDB removes the file backing dsn, if any. In-memory databases
// have no file and are left alone.
func CleanupTestDB(dsn string) error {
	if !strings.HasPrefix(dsn, "file:") {
		return fmt.Errorf("invalid DSN format")
	}
	if strings.Contains(dsn, "mode=memory") {
		return nil
	}

	path := dsn[len("file:"):]
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// SetupTestDB opens an isolated in-memory SQLite datastore without any schema.
func SetupTestDB(t *testing.T, testName string) (*datastore.Datastore, func()) {
	t.Helper()
	dsn := NewTestDSN(testName)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	ds := datastore.New(db, datastore.SQLite)
	cleanup := func() {
		if err := ds.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
		if err := CleanupTestDB(dsn); err != nil {
			t.Logf("Warning: failed to clean up test database: %v", err)
		}
	}

	return ds, cleanup
}

// SetupTestDBWithMigrations opens an isolated datastore with all migrations applied.
func SetupTestDBWithMigrations(t *testing.T, testName string) (*datastore.Datastore, func()) {
	t.Helper()
	ds, cleanup := SetupTestDB(t, testName)

	if _, err := migrations.Apply(context.Background(), ds); err != nil {
		cleanup()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return ds, cleanup
}

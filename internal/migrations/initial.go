package migrations

import (
	"context"
	"database/sql"

	"github.com/jbweber/homelab/deptsvc/internal/datastore"
)

// GetInitialMigrations returns the migrations that build the departments schema.
func GetInitialMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_departments_table",
			Up: func(ctx context.Context, tx *sql.Tx, dialect datastore.Dialect) error {
				idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
				if dialect == datastore.Postgres {
					idColumn = "id BIGSERIAL PRIMARY KEY"
				}
				_, err := tx.ExecContext(ctx, `
					CREATE TABLE IF NOT EXISTS departments (
						`+idColumn+`,
						name TEXT NOT NULL DEFAULT '',
						code TEXT NOT NULL DEFAULT '',
						address TEXT NOT NULL DEFAULT ''
					)
				`)
				return err
			},
			Down: func(ctx context.Context, tx *sql.Tx, _ datastore.Dialect) error {
				_, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS departments")
				return err
			},
		},
		{
			Version: 2,
			Name:    "add_departments_name_index",
			Up: func(ctx context.Context, tx *sql.Tx, _ datastore.Dialect) error {
				// Name lookups are exact-match; uniqueness is not enforced here.
				_, err := tx.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_departments_name ON departments(name)")
				return err
			},
			Down: func(ctx context.Context, tx *sql.Tx, _ datastore.Dialect) error {
				_, err := tx.ExecContext(ctx, "DROP INDEX IF EXISTS idx_departments_name")
				return err
			},
		},
	}
}

package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Options controls how a Datastore is opened.
type Options struct {
	Dialect      Dialect
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Datastore bundles the connection pool with its dialect and a cache of
// prepared statements shared by all repositories.
type Datastore struct {
	DB      *sql.DB
	Dialect Dialect

	stmts *PreparedStatementCache
}

// New wraps an already opened database handle.
func New(db *sql.DB, dialect Dialect) *Datastore {
	return &Datastore{
		DB:      db,
		Dialect: dialect,
		stmts:   NewPreparedStatementCache(db),
	}
}

// Open connects to the database described by opts, verifies the connection and
// applies connection tuning. Schema migrations are run separately.
func Open(ctx context.Context, opts Options) (*Datastore, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	db, err := sql.Open(opts.Dialect.DriverName(), opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	OptimizeConnectionPool(db, opts.MaxOpenConns, opts.MaxIdleConns)

	if opts.Dialect == SQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		if err := ApplyPragmaOptimizations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply performance optimizations: %w", err)
		}
	}

	return New(db, opts.Dialect), nil
}

// Builder returns a squirrel statement builder for the store's dialect.
func (ds *Datastore) Builder() sq.StatementBuilderType {
	return ds.Dialect.Builder()
}

// Prepared returns a cached prepared statement for query.
func (ds *Datastore) Prepared(ctx context.Context, query string) (*sql.Stmt, error) {
	return ds.stmts.Get(ctx, query)
}

// Close releases cached statements and the connection pool.
func (ds *Datastore) Close() error {
	stmtErr := ds.stmts.Close()
	if err := ds.DB.Close(); err != nil {
		return err
	}
	return stmtErr
}

// OptimizeConnectionPool sets pool limits. Non-positive values fall back to defaults.
func OptimizeConnectionPool(db *sql.DB, maxOpen, maxIdle int) {
	if maxOpen <= 0 {
		maxOpen = 10
	}
	if maxIdle <= 0 {
		maxIdle = 5
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
}

// ApplyPragmaOptimizations applies SQLite-specific performance pragmas.
func ApplyPragmaOptimizations(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	sq "github.com/Masterminds/squirrel"

	"github.com/jbweber/homelab/deptsvc/internal/datastore"
)

// DatastoreRepository implements the table-agnostic parts of Repository on top
// of a datastore.Datastore. Entity repositories embed it and add Save,
// FindByID and FindAll with their own column mapping.
type DatastoreRepository[T any, ID comparable] struct {
	ds     *datastore.Datastore
	sb     sq.StatementBuilderType
	table  string
	entity reflect.Type
}

// NewDatastoreRepository creates a base repository for the given table.
func NewDatastoreRepository[T any, ID comparable](ds *datastore.Datastore, table string) *DatastoreRepository[T, ID] {
	var zero T
	return &DatastoreRepository[T, ID]{
		ds:     ds,
		sb:     ds.Builder(),
		table:  table,
		entity: reflect.TypeOf(zero),
	}
}

// DeleteByID removes the row with the given id. Missing rows are ignored.
func (r *DatastoreRepository[T, ID]) DeleteByID(ctx context.Context, id ID) error {
	query := r.sb.Delete(r.table).Where(sq.Eq{"id": id})
	if _, err := r.exec(ctx, query); err != nil {
		return fmt.Errorf("failed to delete %s: %w", r.entity.Name(), err)
	}
	return nil
}

// ExistsByID reports whether a row with the given id exists.
func (r *DatastoreRepository[T, ID]) ExistsByID(ctx context.Context, id ID) (bool, error) {
	query := r.sb.Select("COUNT(*)").From(r.table).Where(sq.Eq{"id": id})
	var count int
	if err := r.queryRow(ctx, query).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", r.entity.Name(), err)
	}
	return count > 0, nil
}

func (r *DatastoreRepository[T, ID]) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	stmt, err := r.ds.Prepared(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.ExecContext(ctx, args...)
}

func (r *DatastoreRepository[T, ID]) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	stmt, err := r.ds.Prepared(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.QueryContext(ctx, args...)
}

// queryRow defers build and prepare errors to Scan, matching sql.Row.
func (r *DatastoreRepository[T, ID]) queryRow(ctx context.Context, b sq.Sqlizer) rowScanner {
	query, args, err := b.ToSql()
	if err != nil {
		return errRow{err}
	}
	stmt, err := r.ds.Prepared(ctx, query)
	if err != nil {
		return errRow{err}
	}
	return stmt.QueryRowContext(ctx, args...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

type errRow struct{ err error }

func (e errRow) Scan(...any) error { return e.err }

func isNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

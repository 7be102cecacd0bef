package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/jbweber/homelab/deptsvc/internal/datastore"
	"github.com/jbweber/homelab/deptsvc/internal/domain"
)

const departmentsTable = "departments"

var departmentColumns = []string{"id", "name", "code", "address"}

// DepartmentRepository defines domain-specific operations for departments
type DepartmentRepository interface {
	Repository[domain.Department, int64]
	FindByName(ctx context.Context, name string) (domain.Department, error)
	// Update overwrites an existing row and returns ErrNotFound when there is
	// none. Unlike Save it never inserts.
	Update(ctx context.Context, d domain.Department) (domain.Department, error)
}

// departmentRepositoryImpl implements DepartmentRepository
type departmentRepositoryImpl struct {
	*DatastoreRepository[domain.Department, int64]
}

// NewDepartmentRepository creates a new department repository
func NewDepartmentRepository(ds *datastore.Datastore) DepartmentRepository {
	return &departmentRepositoryImpl{
		DatastoreRepository: NewDatastoreRepository[domain.Department, int64](ds, departmentsTable),
	}
}

// Save inserts a department without an ID. With an ID it updates the row, or
// inserts it under that ID when no such row exists.
func (r *departmentRepositoryImpl) Save(ctx context.Context, d domain.Department) (domain.Department, error) {
	if d.ID < 0 {
		return domain.Department{}, fmt.Errorf("department ID %d: %w", d.ID, ErrInvalidEntity)
	}
	if d.ID == 0 {
		return r.insert(ctx, d)
	}

	updated, err := r.Update(ctx, d)
	if errors.Is(err, ErrNotFound) {
		return r.insertWithID(ctx, d)
	}
	return updated, err
}

// Update writes name, code and address of an existing department.
func (r *departmentRepositoryImpl) Update(ctx context.Context, d domain.Department) (domain.Department, error) {
	res, err := r.exec(ctx, r.sb.Update(departmentsTable).
		Set("name", d.Name).
		Set("code", d.Code).
		Set("address", d.Address).
		Where(sq.Eq{"id": d.ID}))
	if err != nil {
		return domain.Department{}, fmt.Errorf("failed to update department: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Department{}, fmt.Errorf("failed to update department: %w", err)
	}
	if affected == 0 {
		return domain.Department{}, fmt.Errorf("department with ID %d: %w", d.ID, ErrNotFound)
	}
	return d, nil
}

func (r *departmentRepositoryImpl) insert(ctx context.Context, d domain.Department) (domain.Department, error) {
	query := r.sb.Insert(departmentsTable).
		Columns("name", "code", "address").
		Values(d.Name, d.Code, d.Address).
		Suffix("RETURNING id")
	if err := r.queryRow(ctx, query).Scan(&d.ID); err != nil {
		return domain.Department{}, fmt.Errorf("failed to create department: %w", err)
	}
	return d, nil
}

func (r *departmentRepositoryImpl) insertWithID(ctx context.Context, d domain.Department) (domain.Department, error) {
	query := r.sb.Insert(departmentsTable).
		Columns(departmentColumns...).
		Values(d.ID, d.Name, d.Code, d.Address)
	if _, err := r.exec(ctx, query); err != nil {
		return domain.Department{}, fmt.Errorf("failed to create department with ID %d: %w", d.ID, err)
	}

	// An explicit id does not advance a serial column on postgres.
	if r.ds.Dialect == datastore.Postgres {
		_, err := r.ds.DB.ExecContext(ctx,
			"SELECT setval(pg_get_serial_sequence('departments', 'id'), (SELECT MAX(id) FROM departments))")
		if err != nil {
			return domain.Department{}, fmt.Errorf("failed to advance department id sequence: %w", err)
		}
	}
	return d, nil
}

// FindByID retrieves a department by its ID
func (r *departmentRepositoryImpl) FindByID(ctx context.Context, id int64) (domain.Department, error) {
	query := r.sb.Select(departmentColumns...).From(departmentsTable).Where(sq.Eq{"id": id})
	d, err := scanDepartment(r.queryRow(ctx, query))
	if err != nil {
		if isNotFoundError(err) {
			return domain.Department{}, fmt.Errorf("department with ID %d: %w", id, ErrNotFound)
		}
		return domain.Department{}, fmt.Errorf("failed to find department: %w", err)
	}
	return d, nil
}

// FindByName retrieves a department by its exact name. Names are assumed
// unique; if several rows match, the oldest wins.
func (r *departmentRepositoryImpl) FindByName(ctx context.Context, name string) (domain.Department, error) {
	query := r.sb.Select(departmentColumns...).
		From(departmentsTable).
		Where(sq.Eq{"name": name}).
		OrderBy("id ASC").
		Limit(1)
	d, err := scanDepartment(r.queryRow(ctx, query))
	if err != nil {
		if isNotFoundError(err) {
			return domain.Department{}, fmt.Errorf("department with name %s: %w", name, ErrNotFound)
		}
		return domain.Department{}, fmt.Errorf("failed to find department by name: %w", err)
	}
	return d, nil
}

// FindAll retrieves all departments in id order
func (r *departmentRepositoryImpl) FindAll(ctx context.Context) ([]domain.Department, error) {
	rows, err := r.query(ctx, r.sb.Select(departmentColumns...).From(departmentsTable).OrderBy("id ASC"))
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	departments := []domain.Department{}
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		departments = append(departments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	return departments, nil
}

func scanDepartment(row rowScanner) (domain.Department, error) {
	var d domain.Department
	err := row.Scan(&d.ID, &d.Name, &d.Code, &d.Address)
	return d, err
}

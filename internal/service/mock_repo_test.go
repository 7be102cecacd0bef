package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jbweber/homelab/deptsvc/internal/domain"
	"github.com/jbweber/homelab/deptsvc/internal/repository"
)

// mockDeptRepo is a map-backed DepartmentRepository.
type mockDeptRepo struct {
	departments map[int64]domain.Department
	nextID      int64
	saves       int
	failWith    error
	// onUpdate runs before Update touches the map.
	onUpdate func()
}

func newMockDeptRepo() *mockDeptRepo {
	return &mockDeptRepo{departments: make(map[int64]domain.Department), nextID: 1}
}

func (m *mockDeptRepo) Save(_ context.Context, d domain.Department) (domain.Department, error) {
	if m.failWith != nil {
		return domain.Department{}, m.failWith
	}
	m.saves++
	if d.ID == 0 {
		d.ID = m.nextID
		m.nextID++
	}
	m.departments[d.ID] = d
	return d, nil
}

func (m *mockDeptRepo) Update(_ context.Context, d domain.Department) (domain.Department, error) {
	if m.failWith != nil {
		return domain.Department{}, m.failWith
	}
	if m.onUpdate != nil {
		m.onUpdate()
	}
	if _, ok := m.departments[d.ID]; !ok {
		return domain.Department{}, fmt.Errorf("department with ID %d: %w", d.ID, repository.ErrNotFound)
	}
	m.saves++
	m.departments[d.ID] = d
	return d, nil
}

func (m *mockDeptRepo) FindByID(_ context.Context, id int64) (domain.Department, error) {
	if m.failWith != nil {
		return domain.Department{}, m.failWith
	}
	if d, ok := m.departments[id]; ok {
		return d, nil
	}
	return domain.Department{}, fmt.Errorf("department with ID %d: %w", id, repository.ErrNotFound)
}

func (m *mockDeptRepo) FindAll(_ context.Context) ([]domain.Department, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	result := []domain.Department{}
	for _, d := range m.departments {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockDeptRepo) DeleteByID(_ context.Context, id int64) error {
	if m.failWith != nil {
		return m.failWith
	}
	delete(m.departments, id)
	return nil
}

func (m *mockDeptRepo) ExistsByID(_ context.Context, id int64) (bool, error) {
	_, ok := m.departments[id]
	return ok, nil
}

func (m *mockDeptRepo) FindByName(_ context.Context, name string) (domain.Department, error) {
	if m.failWith != nil {
		return domain.Department{}, m.failWith
	}
	for _, d := range m.departments {
		if d.Name == name {
			return d, nil
		}
	}
	return domain.Department{}, fmt.Errorf("department with name %s: %w", name, repository.ErrNotFound)
}

var errStorage = errors.New("storage unavailable")

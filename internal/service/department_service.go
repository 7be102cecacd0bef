package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/jbweber/homelab/deptsvc/internal/apperrors"
	"github.com/jbweber/homelab/deptsvc/internal/domain"
	"github.com/jbweber/homelab/deptsvc/internal/repository"
)

// DepartmentService is the business API for departments.
type DepartmentService interface {
	Save(ctx context.Context, department domain.Department) (domain.Department, error)
	List(ctx context.Context) ([]domain.Department, error)
	FetchByID(ctx context.Context, id int64) (domain.Department, error)
	FetchByName(ctx context.Context, name string) (domain.Department, error)
	DeleteByID(ctx context.Context, id int64) error
	// Update merges the non-empty fields of partial into the stored department.
	Update(ctx context.Context, id int64, partial domain.Department) (domain.Department, error)
}

type departmentService struct {
	repo   repository.DepartmentRepository
	logger *zap.Logger
}

// NewDepartmentService creates a DepartmentService backed by repo.
func NewDepartmentService(repo repository.DepartmentRepository, logger *zap.Logger) DepartmentService {
	return &departmentService{repo: repo, logger: logger}
}

func (s *departmentService) Save(ctx context.Context, department domain.Department) (domain.Department, error) {
	saved, err := s.repo.Save(ctx, department)
	if err != nil {
		s.logger.Error("failed to save department", zap.String("name", department.Name), zap.Error(err))
		return domain.Department{}, err
	}
	return saved, nil
}

func (s *departmentService) List(ctx context.Context) ([]domain.Department, error) {
	departments, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.Error("failed to list departments", zap.Error(err))
		return nil, err
	}
	return departments, nil
}

func (s *departmentService) FetchByID(ctx context.Context, id int64) (domain.Department, error) {
	department, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Department{}, apperrors.NewNotFound(apperrors.DepartmentNotAvailable, err)
		}
		s.logger.Error("failed to fetch department", zap.Int64("id", id), zap.Error(err))
		return domain.Department{}, err
	}
	return department, nil
}

func (s *departmentService) FetchByName(ctx context.Context, name string) (domain.Department, error) {
	department, err := s.repo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Department{}, apperrors.NewNotFound(apperrors.DepartmentNotAvailable, err)
		}
		s.logger.Error("failed to fetch department by name", zap.String("name", name), zap.Error(err))
		return domain.Department{}, err
	}
	return department, nil
}

func (s *departmentService) DeleteByID(ctx context.Context, id int64) error {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		s.logger.Error("failed to delete department", zap.Int64("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *departmentService) Update(ctx context.Context, id int64, partial domain.Department) (domain.Department, error) {
	existing, err := s.FetchByID(ctx, id)
	if err != nil {
		return domain.Department{}, err
	}

	mergeField(&existing.Name, partial.Name)
	mergeField(&existing.Code, partial.Code)
	mergeField(&existing.Address, partial.Address)

	// The row may have been deleted since it was fetched.
	updated, err := s.repo.Update(ctx, existing)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Department{}, apperrors.NewNotFound(apperrors.DepartmentNotAvailable, err)
		}
		s.logger.Error("failed to update department", zap.Int64("id", id), zap.Error(err))
		return domain.Department{}, err
	}
	return updated, nil
}

// mergeField overwrites dst only when the incoming value is non-empty.
func mergeField(dst *string, incoming string) {
	if incoming != "" {
		*dst = incoming
	}
}

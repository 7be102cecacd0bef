package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jbweber/homelab/deptsvc/internal/apperrors"
	"github.com/jbweber/homelab/deptsvc/internal/domain"
)

// DeleteConfirmation is the body returned by a successful delete.
const DeleteConfirmation = "Department deleted Successfully!!!"

// DepartmentsService is the subset of the business layer the handlers use.
type DepartmentsService interface {
	Save(ctx context.Context, department domain.Department) (domain.Department, error)
	List(ctx context.Context) ([]domain.Department, error)
	FetchByID(ctx context.Context, id int64) (domain.Department, error)
	FetchByName(ctx context.Context, name string) (domain.Department, error)
	DeleteByID(ctx context.Context, id int64) error
	Update(ctx context.Context, id int64, partial domain.Department) (domain.Department, error)
}

// Departments groups department handlers for testability
type Departments struct {
	svc      DepartmentsService
	logger   *zap.Logger
	validate *validator.Validate
}

func NewDepartments(svc DepartmentsService, logger *zap.Logger) *Departments {
	return &Departments{svc: svc, logger: logger, validate: newValidator()}
}

// CreateDepartmentRequest is the POST /departments body. Every field is required.
type CreateDepartmentRequest struct {
	Name    string `json:"departmentName" validate:"required"`
	Code    string `json:"departmentCode" validate:"required"`
	Address string `json:"departmentAddress" validate:"required"`
}

// UpdateDepartmentRequest is the PUT /departments/{id} body. Empty fields keep
// their stored value; an id in the body is ignored in favour of the path.
type UpdateDepartmentRequest struct {
	ID      int64  `json:"departmentId,omitempty"`
	Name    string `json:"departmentName"`
	Code    string `json:"departmentCode"`
	Address string `json:"departmentAddress"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (d *Departments) CreateDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	d.logger.Debug("create department")

	var req CreateDepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		d.writeError(w, apperrors.NewValidation("Invalid JSON", err))
		return
	}
	if err := d.validate.Struct(req); err != nil {
		d.writeError(w, apperrors.NewValidation(validationMessage(err), err))
		return
	}

	saved, err := d.svc.Save(r.Context(), domain.Department{
		Name:    req.Name,
		Code:    req.Code,
		Address: req.Address,
	})
	if err != nil {
		d.writeError(w, err)
		return
	}

	d.logger.Info("created department", zap.Int64("id", saved.ID), zap.String("name", saved.Name))
	writeJSON(w, http.StatusOK, saved, d.logger)
}

func (d *Departments) ListDepartmentsHandler(w http.ResponseWriter, r *http.Request) {
	d.logger.Debug("list departments")

	departments, err := d.svc.List(r.Context())
	if err != nil {
		d.writeError(w, err)
		return
	}
	if departments == nil {
		departments = []domain.Department{}
	}
	writeJSON(w, http.StatusOK, departments, d.logger)
}

func (d *Departments) GetDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := d.pathID(w, r)
	if !ok {
		return
	}
	d.logger.Debug("fetch department", zap.Int64("id", id))

	department, err := d.svc.FetchByID(r.Context(), id)
	if err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, department, d.logger)
}

func (d *Departments) GetDepartmentByNameHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	// chi matches on RawPath when it is set, leaving params escaped.
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	d.logger.Debug("fetch department by name", zap.String("name", name))

	department, err := d.svc.FetchByName(r.Context(), name)
	if err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, department, d.logger)
}

func (d *Departments) UpdateDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := d.pathID(w, r)
	if !ok {
		return
	}
	d.logger.Debug("update department", zap.Int64("id", id))

	var req UpdateDepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		d.writeError(w, apperrors.NewValidation("Invalid JSON", err))
		return
	}

	updated, err := d.svc.Update(r.Context(), id, domain.Department{
		Name:    req.Name,
		Code:    req.Code,
		Address: req.Address,
	})
	if err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated, d.logger)
}

func (d *Departments) DeleteDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := d.pathID(w, r)
	if !ok {
		return
	}
	d.logger.Debug("delete department", zap.Int64("id", id))

	if err := d.svc.DeleteByID(r.Context(), id); err != nil {
		d.writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, DeleteConfirmation, d.logger)
}

func (d *Departments) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		d.writeError(w, apperrors.NewValidation("Invalid department ID", err))
		return 0, false
	}
	return id, true
}

// writeError maps err to a status code. Internal errors are logged and
// reported with a generic message.
func (d *Departments) writeError(w http.ResponseWriter, err error) {
	appErr := apperrors.From(err)
	switch {
	case apperrors.IsValidation(appErr):
		d.logger.Debug("rejected request", zap.String("reason", appErr.Message), zap.Error(err))
	case apperrors.IsNotFound(appErr):
		d.logger.Debug("department not found", zap.Error(err))
	default:
		d.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, appErr.HTTPStatus(), ErrorResponse{Error: appErr.Message}, d.logger)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in validation messages
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, ", ")
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// API wires the HTTP surface of the service.
type API struct {
	departments *Departments
	greeting    string
	logger      *zap.Logger
}

// NewAPI creates the API around a department service.
func NewAPI(svc DepartmentsService, greeting string, logger *zap.Logger) *API {
	return &API{
		departments: NewDepartments(svc, logger),
		greeting:    greeting,
		logger:      logger,
	}
}

// RegisterRoutes registers all API endpoints to the given chi router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/", a.greetingHandler)

	departments := a.departments
	r.Route("/departments", func(r chi.Router) {
		r.Get("/", departments.ListDepartmentsHandler)
		r.Post("/", departments.CreateDepartmentHandler)
		r.Get("/{id}", departments.GetDepartmentHandler)
		r.Put("/{id}", departments.UpdateDepartmentHandler)
		r.Delete("/{id}", departments.DeleteDepartmentHandler)
		r.Get("/name/{name}", departments.GetDepartmentByNameHandler)
	})
}

// NewRouter returns a chi router with the standard middleware stack and all
// routes registered.
func NewRouter(a *API) *chi.Mux {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(a.logger))
	r.Use(middleware.Recoverer)

	a.RegisterRoutes(r)
	return r
}

// greetingHandler serves the configured greeting on GET /
func (a *API) greetingHandler(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, a.greeting, a.logger)
}

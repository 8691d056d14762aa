package http

import (
	"log/slog"

	"github.com/cmlabs-hris/hris-payroll-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterConfig struct {
	Logger         *slog.Logger
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig, JWTService jwt.Service, payrollHandler PayrollHandler, salaryHandler SalaryHandler, bulkHandler BulkHandler) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	if cfg.Logger != nil {
		r.Use(httplog.RequestLogger(cfg.Logger, &httplog.Options{
			Level:  slog.LevelInfo,
			Schema: httplog.SchemaECS,
		}))
	}

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication. EventSource clients cannot set headers, so
		// the token is also accepted from the jwt query parameter.
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verify(JWTService.JWTAuth(), jwtauth.TokenFromHeader, jwtauth.TokenFromQuery))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))

			r.Route("/payroll/periods", func(r chi.Router) {
				r.Post("/", payrollHandler.CreatePeriod)
				r.Get("/", payrollHandler.ListPeriods)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", payrollHandler.GetPeriod)
					r.Get("/items", payrollHandler.ListLineItems)
					r.Get("/variable-inputs", payrollHandler.GetVariableInputs)
					r.Put("/variable-inputs", payrollHandler.SetVariableInputs)
					r.Delete("/variable-inputs/{employeeId}", payrollHandler.ClearVariableInput)
					r.Post("/calculate", payrollHandler.Calculate)

					// Payroll admin only
					r.With(middleware.RequireRole(jwt.RolePayrollAdmin)).Post("/finalize", payrollHandler.Finalize)
				})
			})

			r.Route("/salary", func(r chi.Router) {
				r.Get("/employees/{employeeId}/components", salaryHandler.ListComponents)
				r.Post("/employees/{employeeId}/components", salaryHandler.CreateComponent)
				r.Put("/components/{id}", salaryHandler.UpdateComponent)
				r.Delete("/components/{id}", salaryHandler.DeactivateComponent)

				r.Route("/changes", func(r chi.Router) {
					r.Get("/", salaryHandler.ListChanges)
					r.Get("/export", salaryHandler.ExportChanges)
					r.Get("/{id}", salaryHandler.GetChange)
					r.Post("/proposals", salaryHandler.Propose)

					// Payroll admin only
					r.With(middleware.RequireRole(jwt.RolePayrollAdmin)).Post("/decisions", salaryHandler.Decide)
				})

				r.Route("/bulk-operations", func(r chi.Router) {
					r.Post("/preview", bulkHandler.Preview)
					r.Get("/{id}", bulkHandler.Get)
					r.Get("/{id}/events", bulkHandler.Events)
					r.Post("/{id}/cancel", bulkHandler.Cancel)

					// Payroll admin only
					r.With(middleware.RequireRole(jwt.RolePayrollAdmin)).Post("/{id}/execute", bulkHandler.Execute)
				})
			})
		})
	})
	return r
}

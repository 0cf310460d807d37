package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/snd-est/snd-rental/internal/billing"
	"github.com/snd-est/snd-rental/internal/finance"
	"github.com/snd-est/snd-rental/internal/masterdata/customers"
	"github.com/snd-est/snd-rental/internal/masterdata/employees"
	"github.com/snd-est/snd-rental/internal/masterdata/equipment"
	"github.com/snd-est/snd-rental/internal/rental"
	"github.com/snd-est/snd-rental/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	RentalHandler    *rental.Handler
	BillingHandler   *billing.Handler
	FinanceHandler   *finance.Handler
	CustomersHandler *customers.Handler
	EquipmentHandler *equipment.Handler
	EmployeesHandler *employees.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router for the rental API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.RentalHandler != nil {
			r.Route("/rentals", func(r chi.Router) {
				params.RentalHandler.MountRoutes(r)
				if params.BillingHandler != nil {
					params.BillingHandler.MountRentalRoutes(r)
				}
			})
		}
		if params.BillingHandler != nil {
			r.Route("/billing", params.BillingHandler.MountRoutes)
		}
		if params.FinanceHandler != nil {
			r.Route("/finance", params.FinanceHandler.MountRoutes)
		}
		if params.CustomersHandler != nil {
			r.Route("/customers", params.CustomersHandler.MountRoutes)
		}
		if params.EquipmentHandler != nil {
			r.Route("/equipment", params.EquipmentHandler.MountRoutes)
		}
		if params.EmployeesHandler != nil {
			r.Route("/employees", params.EmployeesHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}

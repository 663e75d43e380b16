package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-dms/meridian-dms/internal/audit"
	"github.com/meridian-dms/meridian-dms/internal/ledger"
	"github.com/meridian-dms/meridian-dms/internal/masterdata/products"
	"github.com/meridian-dms/meridian-dms/internal/masterdata/shops"
	"github.com/meridian-dms/meridian-dms/internal/masterdata/users"
	"github.com/meridian-dms/meridian-dms/internal/observability"
	"github.com/meridian-dms/meridian-dms/internal/orders"
	"github.com/meridian-dms/meridian-dms/internal/payments"
	"github.com/meridian-dms/meridian-dms/internal/rbac"
	"github.com/meridian-dms/meridian-dms/internal/returns"
	"github.com/meridian-dms/meridian-dms/jobs"
)

// RouterParams groups dependencies for building the HTTP router. Nil
// handlers are simply not mounted, which keeps tests small.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	OrdersHandler   *orders.Handler
	PaymentsHandler *payments.Handler
	ReturnsHandler  *returns.Handler
	LedgerHandler   *ledger.Handler
	ShopsHandler    *shops.Handler
	ProductsHandler *products.Handler
	UsersHandler    *users.Handler
	AuditHandler    *audit.Handler
	JobsHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(rbac.RequireActor())

		if params.OrdersHandler != nil {
			params.OrdersHandler.MountRoutes(r)
		}
		if params.PaymentsHandler != nil {
			params.PaymentsHandler.MountRoutes(r)
		}
		if params.ReturnsHandler != nil {
			params.ReturnsHandler.MountRoutes(r)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.ShopsHandler != nil {
			params.ShopsHandler.MountRoutes(r)
		}
		if params.ProductsHandler != nil {
			params.ProductsHandler.MountRoutes(r)
		}
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(r)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
		if params.JobsHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(rbac.RequireAdmin())
				r.Route("/jobs", params.JobsHandler.MountRoutes)
			})
		}
	})

	return r
}

package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/procurement"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AccountsHandler    *accounts.Handler
	JournalsHandler    *journals.Handler
	InventoryHandler   *inventory.Handler
	MasterDataHandler  *masterdata.Handler
	ProcurementHandler *procurement.Handler
	SalesHandler       *sales.Handler
	ARHandler          *ar.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/v1", func(r chi.Router) {
		mount(r, "/accounts", params.AccountsHandler)
		mount(r, "/journals", params.JournalsHandler)
		mount(r, "/inventory", params.InventoryHandler)
		mount(r, "/masterdata", params.MasterDataHandler)
		mount(r, "/purchase-orders", params.ProcurementHandler)
		mount(r, "/sales-orders", params.SalesHandler)
		mount(r, "/invoices", params.ARHandler)
	})
	return r
}

type routeMounter interface {
	MountRoutes(chi.Router)
}

func mount[H routeMounter](r chi.Router, pattern string, handler H) {
	var zero H
	if any(handler) == any(zero) {
		return
	}
	r.Route(pattern, handler.MountRoutes)
}

package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tillworks/tillworks/internal/observability"
	"github.com/tillworks/tillworks/internal/orders"
	"github.com/tillworks/tillworks/internal/sales"
	"github.com/tillworks/tillworks/internal/shift"
	"github.com/tillworks/tillworks/internal/stock"
	"github.com/tillworks/tillworks/internal/zreport"
	"github.com/tillworks/tillworks/jobs"
	"github.com/tillworks/tillworks/report"
)

// RouterParams collects the handlers mounted by the HTTP surface.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Metrics        *observability.Metrics
	StockHandler   *stock.Handler
	SalesHandler   *sales.Handler
	ShiftHandler   *shift.Handler
	ZReportHandler *zreport.Handler
	OrderHandler   *orders.Handler
	JobHandler     *jobs.Handler
	ReportHandler  *report.Handler
}

// NewRouter assembles the chi router. Every API route runs behind the actor
// middleware; health and metrics stay open for probes and scrapers.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	})...)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(actorMiddleware)
		if params.StockHandler != nil {
			params.StockHandler.MountRoutes(api)
		}
		if params.SalesHandler != nil {
			params.SalesHandler.MountRoutes(api)
		}
		if params.ShiftHandler != nil {
			params.ShiftHandler.MountRoutes(api)
		}
		if params.ZReportHandler != nil {
			params.ZReportHandler.MountRoutes(api)
		}
		if params.OrderHandler != nil {
			params.OrderHandler.MountRoutes(api)
		}
		if params.ReportHandler != nil {
			api.Route("/reports", params.ReportHandler.MountRoutes)
		}
	})

	return r
}

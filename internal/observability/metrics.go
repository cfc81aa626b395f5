// Package observability wires Prometheus metrics for the engine.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	salesCommitted  prometheus.Counter
	salesVoided     prometheus.Counter
	stockMovements  *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tillworks_http_requests_total",
		Help: "HTTP request count by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tillworks_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	salesCommitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tillworks_sales_committed_total",
		Help: "Sales committed through checkout.",
	})
	salesVoided := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tillworks_sales_voided_total",
		Help: "Completed sales voided with manager approval.",
	})
	stockMovements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tillworks_stock_movements_total",
		Help: "Ledger-recorded stock movements by transaction type.",
	}, []string{"type"})
	registry.MustRegister(requests, duration, salesCommitted, salesVoided, stockMovements)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		salesCommitted:  salesCommitted,
		salesVoided:     salesVoided,
		stockMovements:  stockMovements,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// SaleCommitted increments the committed-sale counter.
func (m *Metrics) SaleCommitted() {
	if m != nil {
		m.salesCommitted.Inc()
	}
}

// SaleVoided increments the voided-sale counter.
func (m *Metrics) SaleVoided() {
	if m != nil {
		m.salesVoided.Inc()
	}
}

// StockMovement increments the movement counter for a transaction type.
func (m *Metrics) StockMovement(txType string) {
	if m != nil {
		m.stockMovements.WithLabelValues(txType).Inc()
	}
}

// Middleware instruments requests with count and duration by route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

package shift

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches shift ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/shifts/clock-in", h.ClockIn)
	r.Post("/shifts/clock-out", h.ClockOut)
	r.Post("/shifts/{id}/reconcile", h.Reconcile)
	r.Get("/shifts/{id}", h.Show)
	r.Get("/shifts", h.List)
}

package sales

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches sale workflow routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sales", h.Create)
	r.Get("/sales/{id}", h.Show)
	r.Post("/sales/{id}/void", h.Void)
	r.Post("/sales/park", h.Park)
	r.Get("/sales/parked", h.ListParked)
	r.Get("/sales/parked/{id}", h.RetrieveParked)
	r.Delete("/sales/parked/{id}", h.DeleteParked)
}

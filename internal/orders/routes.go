package orders

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches online order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders", h.Submit)
	r.Get("/orders", h.List)
	r.Get("/orders/{id}", h.Show)
	r.Patch("/orders/{id}/status", h.UpdateStatus)
	r.Post("/orders/{id}/process", h.Process)
}

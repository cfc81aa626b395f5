package zreport

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches z-report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/zreports", h.Generate)
	r.Get("/zreports/lookup", h.Show)
	r.Get("/zreports", h.List)
}

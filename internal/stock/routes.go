package stock

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches stock ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock/availability", h.Availability)
	r.Get("/stock/movements", h.Movements)
	r.Post("/stock/adjustments", h.Adjust)
	r.Post("/stock/receipts", h.Receive)
	r.Post("/stock/transfers", h.Transfer)
}

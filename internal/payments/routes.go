package payments

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders/{id}/payments", h.Record)
	r.Get("/orders/{id}/payments", h.List)
}

package orders

import (
	"github.com/go-chi/chi/v5"

	"github.com/meridian-dms/meridian-dms/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Get("/orders", h.List)
		r.Get("/orders/{id}", h.Show)
		r.Post("/orders", h.Create)
		r.Put("/orders/{id}", h.EditPending)
	})
	r.Group(func(r chi.Router) {
		r.Use(rbac.RequireAdmin())
		r.Put("/orders/{id}/admin", h.EditAsAdmin)
		r.Post("/orders/{id}/approve", h.Approve)
		r.Post("/orders/{id}/reject", h.Reject)
	})
}

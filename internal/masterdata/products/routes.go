package products

import (
	"github.com/go-chi/chi/v5"

	"github.com/meridian-dms/meridian-dms/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Get("/products", h.List)
		r.Get("/products/{id}", h.Get)
	})
	r.Group(func(r chi.Router) {
		r.Use(rbac.RequireAdmin())
		r.Post("/products", h.Create)
		r.Put("/products/{id}", h.Update)
		r.Post("/products/{id}/stock", h.AdjustStock)
		r.Delete("/products/{id}", h.Delete)
	})
}

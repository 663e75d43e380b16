package shops

import (
	"github.com/go-chi/chi/v5"

	"github.com/meridian-dms/meridian-dms/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Get("/shops", h.List)
		r.Get("/shops/{id}", h.Get)
	})
	r.Group(func(r chi.Router) {
		r.Use(rbac.RequireAdmin())
		r.Post("/shops", h.Create)
		r.Put("/shops/{id}", h.Update)
		r.Delete("/shops/{id}", h.Delete)
	})
}

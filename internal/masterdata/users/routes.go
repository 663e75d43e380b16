package users

import (
	"github.com/go-chi/chi/v5"

	"github.com/meridian-dms/meridian-dms/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(rbac.RequireAdmin())
		r.Get("/users", h.List)
		r.Get("/users/{id}", h.Get)
	})
}

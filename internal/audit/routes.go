package audit

import (
	"github.com/go-chi/chi/v5"

	"github.com/meridian-dms/meridian-dms/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(rbac.RequireAdmin())
		r.Get("/audit", h.Timeline)
		r.Get("/audit/export", h.ExportCSV)
	})
}

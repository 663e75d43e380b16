package audit

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/meridian-dms/meridian-dms/internal/platform/httpx"
)

// Handler serves the admin timeline endpoint.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Timeline handles GET /audit.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	filters, fieldErrs := parseTimelineFilters(r)
	if len(fieldErrs) > 0 {
		httpx.ValidationProblem(w, fieldErrs)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// ExportCSV handles GET /audit/export. Paging params are ignored; the
// export walks every matching row.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	filters, fieldErrs := parseTimelineFilters(r)
	if len(fieldErrs) > 0 {
		httpx.ValidationProblem(w, fieldErrs)
		return
	}
	filters.Page = 0
	filters.PageSize = 0

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	if err := h.service.ExportTimeline(r.Context(), filters, w); err != nil {
		// Headers are gone already; all we can do is cut the stream.
		return
	}
}

func parseTimelineFilters(r *http.Request) (TimelineFilters, map[string]string) {
	q := r.URL.Query()
	fieldErrs := map[string]string{}
	filters := TimelineFilters{Action: strings.TrimSpace(q.Get("action"))}

	switch entity := strings.TrimSpace(q.Get("entity")); entity {
	case "":
	case string(EntityOrder), string(EntityPayment), string(EntityShop), string(EntityProduct):
		filters.Entity = Entity(entity)
	default:
		fieldErrs["entity"] = "must be one of order, payment, shop, product"
	}
	if raw := q.Get("entity_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			fieldErrs["entity_id"] = "must be a positive integer"
		} else {
			filters.EntityID = id
		}
	}
	if raw := q.Get("page"); raw != "" {
		filters.Page, _ = strconv.Atoi(raw)
	}
	if raw := q.Get("per_page"); raw != "" {
		filters.PageSize, _ = strconv.Atoi(raw)
	}
	return filters, fieldErrs
}

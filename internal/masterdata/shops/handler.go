package shops

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-dms/meridian-dms/internal/platform/httpx"
	"github.com/meridian-dms/meridian-dms/internal/shared"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no actor in request")
		return
	}

	q := r.URL.Query()
	req := ListShopsRequest{Search: q.Get("search")}
	if raw := q.Get("sales_rep_id"); raw != "" {
		repID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || repID <= 0 {
			httpx.ValidationProblem(w, map[string]string{"sales_rep_id": "must be a positive integer"})
			return
		}
		req.SalesRepID = &repID
	}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	resp, err := h.service.List(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("list shops failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no actor in request")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid shop id")
		return
	}

	shop, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.logger.Error("get shop", slog.Int64("shop_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shop)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no actor in request")
		return
	}
	var req SaveShopRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if fieldErrs := h.validateStruct(req); fieldErrs != nil {
		httpx.ValidationProblem(w, fieldErrs)
		return
	}

	shop, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("create shop", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, shop)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no actor in request")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid shop id")
		return
	}
	var req SaveShopRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if fieldErrs := h.validateStruct(req); fieldErrs != nil {
		httpx.ValidationProblem(w, fieldErrs)
		return
	}

	shop, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		h.logger.Error("update shop", slog.Int64("shop_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shop)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no actor in request")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid shop id")
		return
	}

	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.logger.Error("delete shop", slog.Int64("shop_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) validateStruct(v any) map[string]string {
	err := h.validator.Struct(v)
	if err == nil {
		return nil
	}
	fieldErrs := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fieldErr := range verrs {
			fieldErrs[fieldErr.Field()] = fieldErr.Error()
		}
	} else {
		fieldErrs["request"] = err.Error()
	}
	return fieldErrs
}

package orders

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

// HeaderIdempotencyKey lets clients retry order creation safely.
const HeaderIdempotencyKey = "Idempotency-Key"

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

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no actor in request")
		return
	}

	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if fieldErrs := h.validateStruct(req); fieldErrs != nil {
		httpx.ValidationProblem(w, fieldErrs)
		return
	}
	req.IdempotencyKey = r.Header.Get(HeaderIdempotencyKey)

	result, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("create order failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no actor in request")
		return
	}
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}

	detail, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no actor in request")
		return
	}

	req := ListOrdersRequest{}
	q := r.URL.Query()
	if raw := q.Get("shop_id"); raw != "" {
		shopID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || shopID <= 0 {
			httpx.ValidationProblem(w, map[string]string{"shop_id": "must be a positive integer"})
			return
		}
		req.ShopID = &shopID
	}
	if raw := q.Get("sales_rep_id"); raw != "" {
		repID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || repID <= 0 {
			httpx.ValidationProblem(w, map[string]string{"sales_rep_id": "must be a positive integer"})
			return
		}
		req.SalesRepID = &repID
	}
	if raw := q.Get("status"); raw != "" {
		status := Status(raw)
		if !status.Valid() {
			httpx.ValidationProblem(w, map[string]string{"status": "must be one of pending, approved, rejected"})
			return
		}
		req.Status = &status
	}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	resp, err := h.service.List(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("list orders failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) EditPending(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(actor shared.Actor, id int64, req EditOrderRequest) (*OrderResult, error) {
		return h.service.EditPending(r.Context(), actor, id, req)
	})
}

func (h *Handler) EditAsAdmin(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(actor shared.Actor, id int64, req EditOrderRequest) (*OrderResult, error) {
		return h.service.EditAsAdmin(r.Context(), actor, id, req)
	})
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request, run func(shared.Actor, int64, EditOrderRequest) (*OrderResult, error)) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no actor in request")
		return
	}
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}

	var req EditOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if fieldErrs := h.validateStruct(req); fieldErrs != nil {
		httpx.ValidationProblem(w, fieldErrs)
		return
	}

	result, err := run(actor, id, req)
	if err != nil {
		h.logger.Error("edit order failed", slog.Int64("order_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no actor in request")
		return
	}
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}

	result, err := h.service.Approve(r.Context(), actor, id)
	if err != nil {
		h.logger.Error("approve order failed", slog.Int64("order_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no actor in request")
		return
	}
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}

	var req RejectOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if fieldErrs := h.validateStruct(req); fieldErrs != nil {
		httpx.ValidationProblem(w, fieldErrs)
		return
	}

	result, err := h.service.Reject(r.Context(), actor, id, req)
	if err != nil {
		h.logger.Error("reject order failed", slog.Int64("order_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
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

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

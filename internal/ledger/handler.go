package ledger

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-dms/meridian-dms/internal/platform/httpx"
	"github.com/meridian-dms/meridian-dms/internal/shared"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreditState handles GET /shops/{id}/credit.
func (h *Handler) CreditState(w http.ResponseWriter, r *http.Request) {
	shopID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid shop id")
		return
	}

	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no actor in request")
		return
	}

	state, err := h.service.ShopCreditState(r.Context(), actor, shopID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"shop_id":          state.ShopID,
		"outstanding":      state.Outstanding,
		"active_bills":     state.ActiveBills,
		"max_bill_amount":  state.MaxBillAmount,
		"max_active_bills": state.MaxActiveBills,
		"available_credit": state.AvailableCredit(),
	})
}

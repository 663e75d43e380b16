// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-dms/meridian-dms/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Conflict-class failures (credit gate, overpayment, returns, stock, status)
// all render as 409 with the typed error's message as detail.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrAccessDenied):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrCreditLimit):
		Problem(w, http.StatusConflict, "Credit Limit Exceeded", err.Error())
	case errors.Is(err, shared.ErrBillCap):
		Problem(w, http.StatusConflict, "Active Bill Cap Reached", err.Error())
	case errors.Is(err, shared.ErrOverpayment):
		Problem(w, http.StatusConflict, "Overpayment", err.Error())
	case errors.Is(err, shared.ErrReturnQuantity):
		Problem(w, http.StatusConflict, "Return Quantity Exceeded", err.Error())
	case errors.Is(err, shared.ErrInsufficientStock):
		Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrInvalidStatus):
		Problem(w, http.StatusConflict, "Invalid Status", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

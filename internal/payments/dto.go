package payments

import (
	"github.com/shopspring/decimal"

	"github.com/meridian-dms/meridian-dms/internal/notify"
)

type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Notes  *string         `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// PaymentResult carries the stored payment and the order's balance after it,
// plus the delivery outcome of the best-effort SMS.
type PaymentResult struct {
	Payment      Payment         `json:"payment"`
	Collected    decimal.Decimal `json:"collected"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	Notification *notify.Outcome `json:"notification,omitempty"`
}

// Package payments records collections against approved orders. Payments are
// immutable once written; corrections happen through returns, never by
// editing a payment row.
package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID         int64           `json:"id" db:"id"`
	OrderID    int64           `json:"order_id" db:"order_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Notes      *string         `json:"notes,omitempty" db:"notes"`
	RecordedBy int64           `json:"recorded_by" db:"recorded_by"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

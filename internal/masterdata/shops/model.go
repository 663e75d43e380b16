// Package shops manages the shop master records that orders are written
// against: credit limits, bill caps, and the assigned sales rep.
package shops

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-dms/meridian-dms/internal/shared"
)

type Shop struct {
	ID             int64           `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Address        string          `json:"address,omitempty" db:"address"`
	Phone          string          `json:"phone" db:"phone"`
	MaxBillAmount  decimal.Decimal `json:"max_bill_amount" db:"max_bill_amount"`
	MaxActiveBills int             `json:"max_active_bills" db:"max_active_bills"`
	SalesRepID     int64           `json:"sales_rep_id" db:"sales_rep_id"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

type SaveShopRequest struct {
	Name           string          `json:"name" validate:"required,max=120"`
	Address        string          `json:"address" validate:"max=500"`
	Phone          string          `json:"phone" validate:"required,max=20"`
	MaxBillAmount  decimal.Decimal `json:"max_bill_amount"`
	MaxActiveBills int             `json:"max_active_bills" validate:"gte=0"`
	SalesRepID     int64           `json:"sales_rep_id" validate:"required,gt=0"`
}

type ListShopsRequest struct {
	Search     string
	SalesRepID *int64
	Page       int
	PerPage    int
}

type ListShopsResponse struct {
	Shops      []Shop            `json:"shops"`
	Pagination shared.Pagination `json:"pagination"`
}

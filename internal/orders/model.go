// Package orders owns the order lifecycle from creation through approval or
// rejection, including the credit gate that guards every create and edit of
// a pending order.
package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-dms/meridian-dms/internal/notify"
	"github.com/meridian-dms/meridian-dms/internal/payments"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

type Order struct {
	ID              int64           `json:"id" db:"id"`
	ShopID          int64           `json:"shop_id" db:"shop_id"`
	SalesRepID      int64           `json:"sales_rep_id" db:"sales_rep_id"`
	Status          Status          `json:"status" db:"status"`
	Total           decimal.Decimal `json:"total" db:"total"`
	Notes           *string         `json:"notes,omitempty" db:"notes"`
	RejectionReason *string         `json:"rejection_reason,omitempty" db:"rejection_reason"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty" db:"rejected_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	Items           []OrderItem     `json:"items,omitempty" db:"-"`
}

// OrderItem snapshots the product name and unit price at order time, so
// later catalog changes never alter what was sold.
type OrderItem struct {
	ID          int64           `json:"id" db:"id"`
	OrderID     int64           `json:"order_id" db:"order_id"`
	ProductID   int64           `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name" db:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	Quantity    int             `json:"quantity" db:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total" db:"line_total"`
}

type OrderWithShop struct {
	Order
	ShopName string `json:"shop_name" db:"shop_name"`
}

// OrderDetail is the full read model served to clients: the order, its
// lines, its payments and the derived balance.
type OrderDetail struct {
	Order
	ShopName    string             `json:"shop_name"`
	Payments    []payments.Payment `json:"payments"`
	Collected   decimal.Decimal    `json:"collected"`
	Outstanding decimal.Decimal    `json:"outstanding"`
}

// OrderResult pairs a mutation's order state with the outcome of its
// best-effort notification. Notification stays nil for operations that do
// not message the shop.
type OrderResult struct {
	Order        *OrderDetail    `json:"order"`
	Notification *notify.Outcome `json:"notification,omitempty"`
}

// ShopRef is the slice of a shop the order flow needs.
type ShopRef struct {
	ID         int64  `json:"id" db:"id"`
	Name       string `json:"name" db:"name"`
	Phone      string `json:"phone" db:"phone"`
	SalesRepID int64  `json:"sales_rep_id" db:"sales_rep_id"`
}

// ProductSnapshot is the slice of a product the order flow needs.
type ProductSnapshot struct {
	ID        int64           `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Stock     int             `json:"stock" db:"stock"`
}

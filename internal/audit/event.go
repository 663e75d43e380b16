// Package audit appends typed events to the per-entity log tables and
// serves the compliance timeline built from them.
package audit

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entity selects which append-only log table an event lands in.
type Entity string

const (
	EntityOrder   Entity = "order"
	EntityPayment Entity = "payment"
	EntityShop    Entity = "shop"
	EntityProduct Entity = "product"
)

// Event is one auditable action. The concrete struct is marshalled into the
// log row's JSON details, so every field that matters must carry a json tag.
type Event interface {
	Action() string
	Entity() Entity
	EntityID() int64
}

// ItemSnapshot captures one order line as it was at event time.
type ItemSnapshot struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderSnapshot captures an order's financial state at event time.
type OrderSnapshot struct {
	Total decimal.Decimal `json:"total"`
	Items []ItemSnapshot  `json:"items"`
}

// StockDelta records one product's stock change during an admin edit.
type StockDelta struct {
	ProductID int64 `json:"product_id"`
	Delta     int   `json:"delta"`
	NewStock  int   `json:"new_stock"`
}

// ReturnedItem records one returned line quantity.
type ReturnedItem struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	LineDeleted bool   `json:"line_deleted"`
}

type OrderCreated struct {
	OrderID int64           `json:"order_id"`
	ShopID  int64           `json:"shop_id"`
	Total   decimal.Decimal `json:"total"`
	Items   []ItemSnapshot  `json:"items"`
}

func (OrderCreated) Action() string    { return "create" }
func (OrderCreated) Entity() Entity    { return EntityOrder }
func (e OrderCreated) EntityID() int64 { return e.OrderID }

type OrderEdited struct {
	OrderID int64         `json:"order_id"`
	Before  OrderSnapshot `json:"before"`
	After   OrderSnapshot `json:"after"`
}

func (OrderEdited) Action() string    { return "edit" }
func (OrderEdited) Entity() Entity    { return EntityOrder }
func (e OrderEdited) EntityID() int64 { return e.OrderID }

type OrderAdminEdited struct {
	OrderID        int64         `json:"order_id"`
	PreviousStatus string        `json:"previous_status"`
	Before         OrderSnapshot `json:"before"`
	After          OrderSnapshot `json:"after"`
	StockDeltas    []StockDelta  `json:"stock_deltas,omitempty"`
}

func (OrderAdminEdited) Action() string    { return "admin_edit" }
func (OrderAdminEdited) Entity() Entity    { return EntityOrder }
func (e OrderAdminEdited) EntityID() int64 { return e.OrderID }

type OrderApproved struct {
	OrderID int64           `json:"order_id"`
	Total   decimal.Decimal `json:"total"`
}

func (OrderApproved) Action() string    { return "approve" }
func (OrderApproved) Entity() Entity    { return EntityOrder }
func (e OrderApproved) EntityID() int64 { return e.OrderID }

type OrderRejected struct {
	OrderID    int64     `json:"order_id"`
	Reason     string    `json:"reason"`
	RejectedAt time.Time `json:"rejected_at"`
}

func (OrderRejected) Action() string    { return "reject" }
func (OrderRejected) Entity() Entity    { return EntityOrder }
func (e OrderRejected) EntityID() int64 { return e.OrderID }

type OrderReturned struct {
	OrderID     int64           `json:"order_id"`
	Items       []ReturnedItem  `json:"items"`
	TotalBefore decimal.Decimal `json:"total_before"`
	TotalAfter  decimal.Decimal `json:"total_after"`
}

func (OrderReturned) Action() string    { return "return" }
func (OrderReturned) Entity() Entity    { return EntityOrder }
func (e OrderReturned) EntityID() int64 { return e.OrderID }

type PaymentRecorded struct {
	PaymentID         int64           `json:"payment_id"`
	OrderID           int64           `json:"order_id"`
	Amount            decimal.Decimal `json:"amount"`
	PreviousCollected decimal.Decimal `json:"previous_collected"`
	NewOutstanding    decimal.Decimal `json:"new_outstanding"`
}

func (PaymentRecorded) Action() string    { return "record" }
func (PaymentRecorded) Entity() Entity    { return EntityPayment }
func (e PaymentRecorded) EntityID() int64 { return e.PaymentID }

type ShopSaved struct {
	ShopID  int64          `json:"shop_id"`
	Created bool           `json:"created"`
	Fields  map[string]any `json:"fields"`
}

func (e ShopSaved) Action() string {
	if e.Created {
		return "create"
	}
	return "update"
}
func (ShopSaved) Entity() Entity    { return EntityShop }
func (e ShopSaved) EntityID() int64 { return e.ShopID }

type ShopDeleted struct {
	ShopID int64  `json:"shop_id"`
	Name   string `json:"name"`
}

func (ShopDeleted) Action() string    { return "delete" }
func (ShopDeleted) Entity() Entity    { return EntityShop }
func (e ShopDeleted) EntityID() int64 { return e.ShopID }

type ProductSaved struct {
	ProductID int64          `json:"product_id"`
	Created   bool           `json:"created"`
	Fields    map[string]any `json:"fields"`
}

func (e ProductSaved) Action() string {
	if e.Created {
		return "create"
	}
	return "update"
}
func (ProductSaved) Entity() Entity    { return EntityProduct }
func (e ProductSaved) EntityID() int64 { return e.ProductID }

type ProductDeleted struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
}

func (ProductDeleted) Action() string    { return "delete" }
func (ProductDeleted) Entity() Entity    { return EntityProduct }
func (e ProductDeleted) EntityID() int64 { return e.ProductID }

type ProductStockAdjusted struct {
	ProductID int64 `json:"product_id"`
	Delta     int   `json:"delta"`
	NewStock  int   `json:"new_stock"`
}

func (ProductStockAdjusted) Action() string    { return "stock_adjust" }
func (ProductStockAdjusted) Entity() Entity    { return EntityProduct }
func (e ProductStockAdjusted) EntityID() int64 { return e.ProductID }

package orders

import "github.com/meridian-dms/meridian-dms/internal/shared"

type OrderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderRequest struct {
	ShopID int64              `json:"shop_id" validate:"required,gt=0"`
	Items  []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes  *string            `json:"notes,omitempty" validate:"omitempty,max=500"`

	// IdempotencyKey comes from the Idempotency-Key header, not the body.
	IdempotencyKey string `json:"-"`
}

type EditOrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type RejectOrderRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type ListOrdersRequest struct {
	ShopID     *int64  `json:"shop_id,omitempty"`
	SalesRepID *int64  `json:"sales_rep_id,omitempty"`
	Status     *Status `json:"status,omitempty"`
	Page       int     `json:"page"`
	PerPage    int     `json:"per_page"`
}

type ListOrdersResponse struct {
	Orders     []OrderWithShop   `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}

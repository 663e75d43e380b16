// Package products manages the product catalog and its stock counters.
// Stock changes flow through AdjustStock or through approved-order edits;
// plain updates never touch the counter.
package products

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-dms/meridian-dms/internal/shared"
)

type Product struct {
	ID        int64           `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	SKU       string          `json:"sku" db:"sku"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Stock     int             `json:"stock" db:"stock"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

type CreateProductRequest struct {
	Name      string          `json:"name" validate:"required,max=120"`
	SKU       string          `json:"sku" validate:"required,max=40"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stock     int             `json:"stock" validate:"gte=0"`
}

// UpdateProductRequest deliberately has no stock field.
type UpdateProductRequest struct {
	Name      string          `json:"name" validate:"required,max=120"`
	SKU       string          `json:"sku" validate:"required,max=40"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type AdjustStockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

type ListProductsRequest struct {
	Search  string
	Page    int
	PerPage int
}

type ListProductsResponse struct {
	Products   []Product         `json:"products"`
	Pagination shared.Pagination `json:"pagination"`
}

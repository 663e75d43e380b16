package returns

import (
	"github.com/shopspring/decimal"

	"github.com/meridian-dms/meridian-dms/internal/notify"
)

type ReturnItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type RecordReturnRequest struct {
	Items []ReturnItemRequest `json:"items" validate:"min=1,dive"`
}

// ReturnedLine reports what happened to one line: how many units came back
// and whether the line was removed entirely.
type ReturnedLine struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	LineDeleted bool   `json:"line_deleted"`
}

type ReturnResult struct {
	OrderID      int64           `json:"order_id"`
	Returned     []ReturnedLine  `json:"returned"`
	TotalBefore  decimal.Decimal `json:"total_before"`
	TotalAfter   decimal.Decimal `json:"total_after"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	Notification *notify.Outcome `json:"notification,omitempty"`
}

package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Cross-module sentinels. Typed errors below anchor to these through Is, so
// callers can match on the sentinel without knowing the concrete type.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied indicates the actor may not act on the resource.
	ErrAccessDenied = errors.New("access denied")
	// ErrValidation indicates malformed or rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidStatus indicates an operation not allowed in the current status.
	ErrInvalidStatus = errors.New("operation not allowed in current status")
	// ErrDuplicate indicates a uniqueness violation.
	ErrDuplicate = errors.New("duplicate entry")

	// Credit gate failures.
	ErrCreditLimit = errors.New("credit limit exceeded")
	ErrBillCap     = errors.New("active bill cap reached")

	// Billing failures.
	ErrOverpayment       = errors.New("payment exceeds outstanding balance")
	ErrReturnQuantity    = errors.New("return quantity exceeds ordered quantity")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// CreditLimitError reports a create or edit pushing a shop past its bill limit.
type CreditLimitError struct {
	ShopID      int64
	Limit       decimal.Decimal
	Outstanding decimal.Decimal
	Attempted   decimal.Decimal
}

func (e *CreditLimitError) Error() string {
	return fmt.Sprintf("credit limit exceeded: shop %d limit %s, outstanding %s, attempted %s",
		e.ShopID, e.Limit, e.Outstanding, e.Attempted)
}

func (e *CreditLimitError) Is(target error) bool { return target == ErrCreditLimit }

// BillCapError reports a create while the shop already has the maximum number
// of active bills.
type BillCapError struct {
	ShopID int64
	Cap    int
	Active int
}

func (e *BillCapError) Error() string {
	return fmt.Sprintf("active bill cap reached: shop %d has %d of %d active bills", e.ShopID, e.Active, e.Cap)
}

func (e *BillCapError) Is(target error) bool { return target == ErrBillCap }

// OverpaymentError reports a payment larger than the order's outstanding balance.
type OverpaymentError struct {
	OrderID     int64
	Outstanding decimal.Decimal
	Attempted   decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment %s exceeds outstanding %s on order %d", e.Attempted, e.Outstanding, e.OrderID)
}

func (e *OverpaymentError) Is(target error) bool { return target == ErrOverpayment }

// ReturnQuantityError reports a return of more units than the line holds.
type ReturnQuantityError struct {
	OrderID   int64
	ProductID int64
	Ordered   int
	Attempted int
}

func (e *ReturnQuantityError) Error() string {
	return fmt.Sprintf("return of %d exceeds ordered %d for product %d on order %d",
		e.Attempted, e.Ordered, e.ProductID, e.OrderID)
}

func (e *ReturnQuantityError) Is(target error) bool { return target == ErrReturnQuantity }

// InsufficientStockError reports a stock reconciliation that would drive a
// product's stock negative.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Package ledger computes shop credit state and enforces the credit gate
// that every order create or edit must pass.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/meridian-dms/meridian-dms/internal/shared"
)

// CreditState is a shop's credit position at one instant. Outstanding sums
// total minus collected over the shop's pending and approved orders; a
// just-created pending order consumes credit immediately. ActiveBills counts
// only approved orders that still have outstanding balance.
type CreditState struct {
	ShopID         int64           `json:"shop_id"`
	SalesRepID     int64           `json:"sales_rep_id"`
	MaxBillAmount  decimal.Decimal `json:"max_bill_amount"`
	MaxActiveBills int             `json:"max_active_bills"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	ActiveBills    int             `json:"active_bills"`
}

// AvailableCredit returns how much more outstanding the shop can carry.
func (s CreditState) AvailableCredit() decimal.Decimal {
	return s.MaxBillAmount.Sub(s.Outstanding)
}

// CheckNewTotal enforces both gate rules against a new order total, in
// order: credit limit first, then the active-bill cap.
func (s CreditState) CheckNewTotal(total decimal.Decimal) error {
	if total.GreaterThan(s.AvailableCredit()) {
		return &shared.CreditLimitError{
			ShopID:      s.ShopID,
			Limit:       s.MaxBillAmount,
			Outstanding: s.Outstanding,
			Attempted:   total,
		}
	}
	if s.ActiveBills >= s.MaxActiveBills {
		return &shared.BillCapError{
			ShopID: s.ShopID,
			Cap:    s.MaxActiveBills,
			Active: s.ActiveBills,
		}
	}
	return nil
}

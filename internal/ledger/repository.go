package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-dms/meridian-dms/internal/shared"
)

// Repository reads credit state straight from the pool. Gate checks inside
// order transactions use the orders repository instead, so they see their
// own transaction's snapshot under the advisory lock.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const creditStateQuery = `
SELECT s.id, s.sales_rep_id, s.max_bill_amount, s.max_active_bills,
       COALESCE(SUM(o.total - COALESCE(p.paid, 0)), 0) AS outstanding,
       COUNT(*) FILTER (WHERE o.status = 'approved' AND o.total - COALESCE(p.paid, 0) > 0) AS active_bills
FROM shops s
LEFT JOIN orders o ON o.shop_id = s.id AND o.status IN ('pending', 'approved')
LEFT JOIN LATERAL (
    SELECT SUM(amount) AS paid FROM payments WHERE order_id = o.id
) p ON true
WHERE s.id = $1
GROUP BY s.id, s.sales_rep_id, s.max_bill_amount, s.max_active_bills`

// GetCreditState computes the shop's credit position fresh from the ledger.
func (r *Repository) GetCreditState(ctx context.Context, shopID int64) (CreditState, error) {
	var state CreditState
	err := r.pool.QueryRow(ctx, creditStateQuery, shopID).Scan(
		&state.ShopID,
		&state.SalesRepID,
		&state.MaxBillAmount,
		&state.MaxActiveBills,
		&state.Outstanding,
		&state.ActiveBills,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreditState{}, fmt.Errorf("ledger: shop %d: %w", shopID, shared.ErrNotFound)
		}
		return CreditState{}, fmt.Errorf("ledger: get credit state: %w", err)
	}
	return state, nil
}

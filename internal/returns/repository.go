// Package returns reduces an approved order's line quantities and total when
// goods come back. Returns never touch product stock.
package returns

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-dms/meridian-dms/internal/platform/db"
	"github.com/meridian-dms/meridian-dms/internal/shared"
)

const statusApproved = "approved"

// OrderRef is the slice of an order a return needs.
type OrderRef struct {
	OrderID    int64
	ShopID     int64
	SalesRepID int64
	Status     string
	Total      decimal.Decimal
	ShopName   string
	ShopPhone  string
}

// OrderLine is one order_items row as stored.
type OrderLine struct {
	ID          int64
	ProductID   int64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	LineTotal   decimal.Decimal
}

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	// GetOrderRef locks the order row so concurrent returns and payments on
	// the same order serialize.
	GetOrderRef(ctx context.Context, orderID int64) (*OrderRef, error)
	Lines(ctx context.Context, orderID int64) ([]OrderLine, error)
	SetLineQuantity(ctx context.Context, lineID int64, quantity int, lineTotal decimal.Decimal) error
	DeleteLine(ctx context.Context, lineID int64) error
	UpdateOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
	SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error)
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		repoTx := &repository{db: tx, pool: r.pool}
		return fn(ctx, repoTx)
	})
}

func (r *repository) GetOrderRef(ctx context.Context, orderID int64) (*OrderRef, error) {
	var ref OrderRef
	err := r.db.QueryRow(ctx, `SELECT o.id, o.shop_id, o.sales_rep_id, o.status, o.total, s.name, s.phone
FROM orders o
JOIN shops s ON o.shop_id = s.id
WHERE o.id = $1
FOR UPDATE OF o`, orderID).Scan(
		&ref.OrderID, &ref.ShopID, &ref.SalesRepID, &ref.Status, &ref.Total, &ref.ShopName, &ref.ShopPhone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("returns: order %d: %w", orderID, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("returns: get order %d: %w", orderID, err)
	}
	return &ref, nil
}

func (r *repository) Lines(ctx context.Context, orderID int64) ([]OrderLine, error) {
	rows, err := r.db.Query(ctx, `SELECT id, product_id, product_name, unit_price, quantity, line_total
FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("returns: load lines for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.ProductID, &l.ProductName, &l.UnitPrice, &l.Quantity, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("returns: scan line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) SetLineQuantity(ctx context.Context, lineID int64, quantity int, lineTotal decimal.Decimal) error {
	if _, err := r.db.Exec(ctx, `UPDATE order_items SET quantity = $2, line_total = $3 WHERE id = $1`, lineID, quantity, lineTotal); err != nil {
		return fmt.Errorf("returns: update line %d: %w", lineID, err)
	}
	return nil
}

func (r *repository) DeleteLine(ctx context.Context, lineID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM order_items WHERE id = $1`, lineID); err != nil {
		return fmt.Errorf("returns: delete line %d: %w", lineID, err)
	}
	return nil
}

func (r *repository) UpdateOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	if _, err := r.db.Exec(ctx, `UPDATE orders SET total = $2, updated_at = NOW() WHERE id = $1`, orderID, total); err != nil {
		return fmt.Errorf("returns: update total for order %d: %w", orderID, err)
	}
	return nil
}

func (r *repository) SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1`, orderID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("returns: sum payments for order %d: %w", orderID, err)
	}
	return sum, nil
}

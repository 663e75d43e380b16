package payments

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

// statusApproved mirrors the orders table value without importing the orders
// package, which depends on this one.
const statusApproved = "approved"

// OrderBilling is the slice of an order a payment needs: who owns it, what
// state it is in, and how to reach the shop afterwards.
type OrderBilling struct {
	OrderID    int64
	ShopID     int64
	SalesRepID int64
	Status     string
	Total      decimal.Decimal
	ShopName   string
	ShopPhone  string
}

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	// GetOrderBilling locks the order row for the rest of the transaction so
	// concurrent payments cannot both pass the overpayment check against the
	// same stale balance.
	GetOrderBilling(ctx context.Context, orderID int64) (*OrderBilling, error)
	SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error)
	Insert(ctx context.Context, p Payment) (Payment, error)

	OrderOwner(ctx context.Context, orderID int64) (int64, error)
	ListForOrder(ctx context.Context, orderID int64) ([]Payment, error)
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

func (r *repository) GetOrderBilling(ctx context.Context, orderID int64) (*OrderBilling, error) {
	var b OrderBilling
	err := r.db.QueryRow(ctx, `SELECT o.id, o.shop_id, o.sales_rep_id, o.status, o.total, s.name, s.phone
FROM orders o
JOIN shops s ON o.shop_id = s.id
WHERE o.id = $1
FOR UPDATE OF o`, orderID).Scan(
		&b.OrderID, &b.ShopID, &b.SalesRepID, &b.Status, &b.Total, &b.ShopName, &b.ShopPhone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payments: order %d: %w", orderID, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("payments: get order %d: %w", orderID, err)
	}
	return &b, nil
}

func (r *repository) SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1`, orderID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("payments: sum payments for order %d: %w", orderID, err)
	}
	return sum, nil
}

func (r *repository) Insert(ctx context.Context, p Payment) (Payment, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO payments (order_id, amount, notes, recorded_by)
VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		p.OrderID, p.Amount, p.Notes, p.RecordedBy,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Payment{}, fmt.Errorf("payments: insert payment for order %d: %w", p.OrderID, err)
	}
	return p, nil
}

func (r *repository) OrderOwner(ctx context.Context, orderID int64) (int64, error) {
	var salesRepID int64
	err := r.db.QueryRow(ctx, `SELECT sales_rep_id FROM orders WHERE id = $1`, orderID).Scan(&salesRepID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("payments: order %d: %w", orderID, shared.ErrNotFound)
		}
		return 0, fmt.Errorf("payments: get order %d: %w", orderID, err)
	}
	return salesRepID, nil
}

func (r *repository) ListForOrder(ctx context.Context, orderID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, order_id, amount, notes, recorded_by, created_at
FROM payments WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("payments: list payments for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var list []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Notes, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("payments: scan payment: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

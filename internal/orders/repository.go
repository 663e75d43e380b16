package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-dms/meridian-dms/internal/ledger"
	"github.com/meridian-dms/meridian-dms/internal/payments"
	"github.com/meridian-dms/meridian-dms/internal/platform/db"
	"github.com/meridian-dms/meridian-dms/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	Get(ctx context.Context, id int64) (*Order, error)
	GetForUpdate(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, req ListOrdersRequest) ([]OrderWithShop, int, error)
	Create(ctx context.Context, order Order) (int64, error)
	InsertItem(ctx context.Context, item OrderItem) (int64, error)
	DeleteItems(ctx context.Context, orderID int64) error
	UpdateTotal(ctx context.Context, id int64, total decimal.Decimal) error
	SetStatus(ctx context.Context, id int64, status Status, reason *string) error

	GetShop(ctx context.Context, shopID int64) (*ShopRef, error)
	LockShopCredit(ctx context.Context, shopID int64) error
	CreditState(ctx context.Context, shopID, excludeOrderID int64) (ledger.CreditState, error)

	Products(ctx context.Context, ids []int64) (map[int64]ProductSnapshot, error)
	ProductForUpdate(ctx context.Context, id int64) (*ProductSnapshot, error)
	SetProductStock(ctx context.Context, id int64, stock int) error

	PaymentsForOrder(ctx context.Context, orderID int64) ([]payments.Payment, error)
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

const orderColumns = `id, shop_id, sales_rep_id, status, total, notes, rejection_reason, rejected_at, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Order, error) {
	return r.getOrder(ctx, id, false)
}

// GetForUpdate locks the order row for the rest of the transaction,
// serializing concurrent mutations of the same order.
func (r *repository) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	return r.getOrder(ctx, id, true)
}

func (r *repository) getOrder(ctx context.Context, id int64, forUpdate bool) (*Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)
	if forUpdate {
		query += " FOR UPDATE"
	}
	var o Order
	err := r.db.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.ShopID, &o.SalesRepID, &o.Status, &o.Total,
		&o.Notes, &o.RejectionReason, &o.RejectedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("orders: order %d: %w", id, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("orders: get order %d: %w", id, err)
	}
	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *repository) loadItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.db.Query(ctx, `SELECT id, order_id, product_id, product_name, unit_price, quantity, line_total
FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("orders: load items for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("orders: scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) List(ctx context.Context, req ListOrdersRequest) ([]OrderWithShop, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if req.ShopID != nil {
		conditions = append(conditions, fmt.Sprintf("o.shop_id = $%d", argPos))
		args = append(args, *req.ShopID)
		argPos++
	}
	if req.SalesRepID != nil {
		conditions = append(conditions, fmt.Sprintf("o.sales_rep_id = $%d", argPos))
		args = append(args, *req.SalesRepID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}

	whereClause := ""
	for i, cond := range conditions {
		if i == 0 {
			whereClause = "WHERE " + cond
		} else {
			whereClause += " AND " + cond
		}
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM orders o %s", whereClause)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("orders: count orders: %w", err)
	}

	pagination := shared.NewPagination(req.Page, req.PerPage, total)
	query := fmt.Sprintf(`
		SELECT o.id, o.shop_id, o.sales_rep_id, o.status, o.total,
		       o.notes, o.rejection_reason, o.rejected_at, o.created_at, o.updated_at,
		       s.name AS shop_name
		FROM orders o
		JOIN shops s ON o.shop_id = s.id
		%s
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)
	args = append(args, pagination.PerPage, pagination.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("orders: list orders: %w", err)
	}
	defer rows.Close()

	var orders []OrderWithShop
	for rows.Next() {
		var o OrderWithShop
		if err := rows.Scan(
			&o.ID, &o.ShopID, &o.SalesRepID, &o.Status, &o.Total,
			&o.Notes, &o.RejectionReason, &o.RejectedAt, &o.CreatedAt, &o.UpdatedAt,
			&o.ShopName,
		); err != nil {
			return nil, 0, fmt.Errorf("orders: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO orders (shop_id, sales_rep_id, status, total, notes)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		o.ShopID, o.SalesRepID, o.Status, o.Total, o.Notes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("orders: insert order: %w", err)
	}
	return id, nil
}

func (r *repository) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity, line_total)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		item.OrderID, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity, item.LineTotal,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("orders: insert item for order %d: %w", item.OrderID, err)
	}
	return id, nil
}

func (r *repository) DeleteItems(ctx context.Context, orderID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("orders: delete items for order %d: %w", orderID, err)
	}
	return nil
}

func (r *repository) UpdateTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	if _, err := r.db.Exec(ctx, `UPDATE orders SET total = $2, updated_at = NOW() WHERE id = $1`, id, total); err != nil {
		return fmt.Errorf("orders: update total for order %d: %w", id, err)
	}
	return nil
}

func (r *repository) SetStatus(ctx context.Context, id int64, status Status, reason *string) error {
	var err error
	if status == StatusRejected {
		_, err = r.db.Exec(ctx, `UPDATE orders SET status = $2, rejection_reason = $3, rejected_at = NOW(), updated_at = NOW() WHERE id = $1`, id, status, reason)
	} else {
		_, err = r.db.Exec(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	}
	if err != nil {
		return fmt.Errorf("orders: set status %s for order %d: %w", status, id, err)
	}
	return nil
}

func (r *repository) GetShop(ctx context.Context, shopID int64) (*ShopRef, error) {
	var s ShopRef
	err := r.db.QueryRow(ctx, `SELECT id, name, phone, sales_rep_id FROM shops WHERE id = $1`, shopID).Scan(
		&s.ID, &s.Name, &s.Phone, &s.SalesRepID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("orders: shop %d: %w", shopID, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("orders: get shop %d: %w", shopID, err)
	}
	return &s, nil
}

// LockShopCredit serializes the check-then-insert sequence per shop. Must be
// called inside WithTx before reading credit state.
func (r *repository) LockShopCredit(ctx context.Context, shopID int64) error {
	return db.XactLock(ctx, r.db, shared.ShopCreditLockKey(shopID))
}

const creditStateQuery = `
SELECT s.id, s.sales_rep_id, s.max_bill_amount, s.max_active_bills,
       COALESCE(SUM(o.total - COALESCE(p.paid, 0)), 0) AS outstanding,
       COUNT(*) FILTER (WHERE o.status = 'approved' AND o.total - COALESCE(p.paid, 0) > 0) AS active_bills
FROM shops s
LEFT JOIN orders o ON o.shop_id = s.id AND o.status IN ('pending', 'approved') AND o.id <> $2
LEFT JOIN LATERAL (
    SELECT SUM(amount) AS paid FROM payments WHERE order_id = o.id
) p ON true
WHERE s.id = $1
GROUP BY s.id, s.sales_rep_id, s.max_bill_amount, s.max_active_bills`

// CreditState aggregates the shop's outstanding exposure. excludeOrderID
// removes the order being edited so its old total is not double counted;
// pass zero on create.
func (r *repository) CreditState(ctx context.Context, shopID, excludeOrderID int64) (ledger.CreditState, error) {
	var state ledger.CreditState
	err := r.db.QueryRow(ctx, creditStateQuery, shopID, excludeOrderID).Scan(
		&state.ShopID,
		&state.SalesRepID,
		&state.MaxBillAmount,
		&state.MaxActiveBills,
		&state.Outstanding,
		&state.ActiveBills,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.CreditState{}, fmt.Errorf("orders: shop %d: %w", shopID, shared.ErrNotFound)
		}
		return ledger.CreditState{}, fmt.Errorf("orders: credit state for shop %d: %w", shopID, err)
	}
	return state, nil
}

func (r *repository) Products(ctx context.Context, ids []int64) (map[int64]ProductSnapshot, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, unit_price, stock FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("orders: load products: %w", err)
	}
	defer rows.Close()

	snapshots := make(map[int64]ProductSnapshot, len(ids))
	for rows.Next() {
		var p ProductSnapshot
		if err := rows.Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Stock); err != nil {
			return nil, fmt.Errorf("orders: scan product: %w", err)
		}
		snapshots[p.ID] = p
	}
	return snapshots, rows.Err()
}

func (r *repository) ProductForUpdate(ctx context.Context, id int64) (*ProductSnapshot, error) {
	var p ProductSnapshot
	err := r.db.QueryRow(ctx, `SELECT id, name, unit_price, stock FROM products WHERE id = $1 FOR UPDATE`, id).Scan(
		&p.ID, &p.Name, &p.UnitPrice, &p.Stock,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("orders: product %d: %w", id, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("orders: lock product %d: %w", id, err)
	}
	return &p, nil
}

func (r *repository) SetProductStock(ctx context.Context, id int64, stock int) error {
	if _, err := r.db.Exec(ctx, `UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1`, id, stock); err != nil {
		return fmt.Errorf("orders: set stock for product %d: %w", id, err)
	}
	return nil
}

func (r *repository) PaymentsForOrder(ctx context.Context, orderID int64) ([]payments.Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, order_id, amount, notes, recorded_by, created_at
FROM payments WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("orders: load payments for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var list []payments.Payment
	for rows.Next() {
		var p payments.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Notes, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("orders: scan payment: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

package shops

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-dms/meridian-dms/internal/shared"
)

type Repository interface {
	List(ctx context.Context, req ListShopsRequest) ([]Shop, int, error)
	Get(ctx context.Context, id int64) (*Shop, error)
	Create(ctx context.Context, shop Shop) (*Shop, error)
	Update(ctx context.Context, id int64, shop Shop) error
	Delete(ctx context.Context, id int64) error
	UserRole(ctx context.Context, userID int64) (shared.Role, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const shopColumns = `id, name, address, phone, max_bill_amount, max_active_bills, sales_rep_id, created_at, updated_at`

func (r *repository) List(ctx context.Context, req ListShopsRequest) ([]Shop, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR phone ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}
	if req.SalesRepID != nil {
		conditions = append(conditions, fmt.Sprintf("sales_rep_id = $%d", argPos))
		args = append(args, *req.SalesRepID)
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

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM shops %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("shops: count shops: %w", err)
	}

	pagination := shared.NewPagination(req.Page, req.PerPage, total)
	query := fmt.Sprintf(`SELECT %s FROM shops %s ORDER BY name, id LIMIT $%d OFFSET $%d`,
		shopColumns, whereClause, argPos, argPos+1)
	args = append(args, pagination.PerPage, pagination.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("shops: list shops: %w", err)
	}
	defer rows.Close()

	var shops []Shop
	for rows.Next() {
		var s Shop
		if err := scanShop(rows, &s); err != nil {
			return nil, 0, fmt.Errorf("shops: scan shop: %w", err)
		}
		shops = append(shops, s)
	}
	return shops, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Shop, error) {
	query := fmt.Sprintf(`SELECT %s FROM shops WHERE id = $1`, shopColumns)
	var s Shop
	if err := scanShop(r.pool.QueryRow(ctx, query, id), &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("shops: shop %d: %w", id, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("shops: get shop %d: %w", id, err)
	}
	return &s, nil
}

func (r *repository) Create(ctx context.Context, shop Shop) (*Shop, error) {
	query := fmt.Sprintf(`INSERT INTO shops (name, address, phone, max_bill_amount, max_active_bills, sales_rep_id)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING %s`, shopColumns)
	var s Shop
	err := scanShop(r.pool.QueryRow(ctx, query,
		shop.Name, shop.Address, shop.Phone, shop.MaxBillAmount, shop.MaxActiveBills, shop.SalesRepID,
	), &s)
	if err != nil {
		return nil, fmt.Errorf("shops: insert shop: %w", mapConstraint(err))
	}
	return &s, nil
}

func (r *repository) Update(ctx context.Context, id int64, shop Shop) error {
	tag, err := r.pool.Exec(ctx, `UPDATE shops
SET name = $1, address = $2, phone = $3, max_bill_amount = $4, max_active_bills = $5, sales_rep_id = $6, updated_at = NOW()
WHERE id = $7`,
		shop.Name, shop.Address, shop.Phone, shop.MaxBillAmount, shop.MaxActiveBills, shop.SalesRepID, id,
	)
	if err != nil {
		return fmt.Errorf("shops: update shop %d: %w", id, mapConstraint(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shops: shop %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM shops WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("shops: shop %d still has orders: %w", id, shared.ErrValidation)
		}
		return fmt.Errorf("shops: delete shop %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shops: shop %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// UserRole resolves a user's role so the service can refuse assigning a
// shop to a non-rep account.
func (r *repository) UserRole(ctx context.Context, userID int64) (shared.Role, error) {
	var role shared.Role
	err := r.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("shops: user %d: %w", userID, shared.ErrNotFound)
		}
		return "", fmt.Errorf("shops: load role for user %d: %w", userID, err)
	}
	return role, nil
}

func scanShop(row pgx.Row, s *Shop) error {
	return row.Scan(&s.ID, &s.Name, &s.Address, &s.Phone, &s.MaxBillAmount, &s.MaxActiveBills, &s.SalesRepID, &s.CreatedAt, &s.UpdatedAt)
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "shops_name_key" {
		return fmt.Errorf("shop name already exists: %w", shared.ErrDuplicate)
	}
	return err
}

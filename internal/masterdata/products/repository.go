package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-dms/meridian-dms/internal/platform/db"
	"github.com/meridian-dms/meridian-dms/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	List(ctx context.Context, req ListProductsRequest) ([]Product, int, error)
	Get(ctx context.Context, id int64) (*Product, error)
	GetForUpdate(ctx context.Context, id int64) (*Product, error)
	Create(ctx context.Context, product Product) (*Product, error)
	Update(ctx context.Context, id int64, product Product) error
	SetStock(ctx context.Context, id int64, stock int) error
	Delete(ctx context.Context, id int64) error
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

const productColumns = `id, name, sku, unit_price, stock, created_at, updated_at`

func (r *repository) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	whereClause := ""
	var args []any
	argPos := 1
	if req.Search != "" {
		whereClause = fmt.Sprintf("WHERE (name ILIKE $%d OR sku ILIKE $%d)", argPos, argPos)
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("products: count products: %w", err)
	}

	pagination := shared.NewPagination(req.Page, req.PerPage, total)
	query := fmt.Sprintf(`SELECT %s FROM products %s ORDER BY name, id LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, argPos, argPos+1)
	args = append(args, pagination.PerPage, pagination.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("products: list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, 0, fmt.Errorf("products: scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Product, error) {
	return r.getProduct(ctx, id, false)
}

// GetForUpdate locks the product row so concurrent stock mutations are
// serialized.
func (r *repository) GetForUpdate(ctx context.Context, id int64) (*Product, error) {
	return r.getProduct(ctx, id, true)
}

func (r *repository) getProduct(ctx context.Context, id int64, forUpdate bool) (*Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)
	if forUpdate {
		query += " FOR UPDATE"
	}
	var p Product
	if err := scanProduct(r.db.QueryRow(ctx, query, id), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("products: product %d: %w", id, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("products: get product %d: %w", id, err)
	}
	return &p, nil
}

func (r *repository) Create(ctx context.Context, product Product) (*Product, error) {
	query := fmt.Sprintf(`INSERT INTO products (name, sku, unit_price, stock)
VALUES ($1, $2, $3, $4) RETURNING %s`, productColumns)
	var p Product
	err := scanProduct(r.db.QueryRow(ctx, query,
		product.Name, product.SKU, product.UnitPrice, product.Stock,
	), &p)
	if err != nil {
		return nil, fmt.Errorf("products: insert product: %w", mapConstraint(err))
	}
	return &p, nil
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	tag, err := r.db.Exec(ctx, `UPDATE products
SET name = $1, sku = $2, unit_price = $3, updated_at = NOW()
WHERE id = $4`,
		product.Name, product.SKU, product.UnitPrice, id,
	)
	if err != nil {
		return fmt.Errorf("products: update product %d: %w", id, mapConstraint(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("products: product %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) SetStock(ctx context.Context, id int64, stock int) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2`, stock, id)
	if err != nil {
		return fmt.Errorf("products: set stock for product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("products: product %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("products: product %d is referenced by orders: %w", id, shared.ErrValidation)
		}
		return fmt.Errorf("products: delete product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("products: product %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(&p.ID, &p.Name, &p.SKU, &p.UnitPrice, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "products_sku_key" {
		return fmt.Errorf("product sku already exists: %w", shared.ErrDuplicate)
	}
	return err
}

package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-dms/meridian-dms/internal/shared"
)

type Repository interface {
	List(ctx context.Context, req ListUsersRequest) ([]User, int, error)
	Get(ctx context.Context, id int64) (*User, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if req.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argPos))
		args = append(args, *req.Role)
		argPos++
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR phone ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+req.Search+"%")
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

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM users %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count users: %w", err)
	}

	pagination := shared.NewPagination(req.Page, req.PerPage, total)
	query := fmt.Sprintf(`SELECT id, name, phone, role, created_at FROM users %s ORDER BY name, id LIMIT $%d OFFSET $%d`,
		whereClause, argPos, argPos+1)
	args = append(args, pagination.PerPage, pagination.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Phone, &u.Role, &u.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("users: scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, name, phone, role, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Phone, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("users: user %d: %w", id, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("users: get user %d: %w", id, err)
	}
	return &u, nil
}

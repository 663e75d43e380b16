package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the four log tables as one merged timeline.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const mergedLogsQuery = `SELECT 'order' AS entity, order_id AS entity_id, actor_id, action, details, created_at FROM order_logs
UNION ALL
SELECT 'payment' AS entity, payment_id AS entity_id, actor_id, action, details, created_at FROM payment_logs
UNION ALL
SELECT 'shop' AS entity, shop_id AS entity_id, actor_id, action, details, created_at FROM shop_logs
UNION ALL
SELECT 'product' AS entity, product_id AS entity_id, actor_id, action, details, created_at FROM product_logs`

func (r *Repository) Window(ctx context.Context, filters TimelineFilters, limit, offset int) ([]LogEntry, error) {
	source := mergedLogsQuery
	if filters.Entity != "" {
		table, column, err := logTable(filters.Entity)
		if err != nil {
			return nil, err
		}
		source = fmt.Sprintf(`SELECT '%s' AS entity, %s AS entity_id, actor_id, action, details, created_at FROM %s`, filters.Entity, column, table)
	}

	conditions := []string{}
	args := []any{}
	argPos := 1
	if filters.EntityID > 0 {
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", argPos))
		args = append(args, filters.EntityID)
		argPos++
	}
	if action := strings.TrimSpace(filters.Action); action != "" {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argPos))
		args = append(args, action)
		argPos++
	}

	query := "SELECT entity, entity_id, actor_id, action, details, created_at FROM (" + source + ") logs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, entity_id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query timeline: %w", err)
	}
	defer rows.Close()

	entries := []LogEntry{}
	for rows.Next() {
		var entry LogEntry
		if err := rows.Scan(&entry.Entity, &entry.EntityID, &entry.ActorID, &entry.Action, &entry.Details, &entry.At); err != nil {
			return nil, fmt.Errorf("audit: scan timeline row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate timeline rows: %w", err)
	}
	return entries, nil
}

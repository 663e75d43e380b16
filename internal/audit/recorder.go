package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder appends events to the log tables. Writes happen after the business
// transaction commits, so a failure here must never fail the caller; callers
// log the returned error and move on.
type Recorder struct {
	db     execer
	logger *slog.Logger
}

func NewRecorder(db execer, logger *slog.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// Record writes every event, attempting the rest even when one fails, and
// returns the joined failures.
func (r *Recorder) Record(ctx context.Context, actorID int64, events ...Event) error {
	var errs []error
	for _, event := range events {
		if err := r.record(ctx, actorID, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Recorder) record(ctx context.Context, actorID int64, event Event) error {
	details, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: marshal %s event: %w", event.Action(), err)
	}
	table, column, err := logTable(event.Entity())
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s, actor_id, action, details) VALUES ($1, $2, $3, $4)`, table, column)
	if _, err := r.db.Exec(ctx, query, event.EntityID(), actorID, event.Action(), details); err != nil {
		return fmt.Errorf("audit: insert %s log: %w", event.Entity(), err)
	}
	return nil
}

func logTable(entity Entity) (table, column string, err error) {
	switch entity {
	case EntityOrder:
		return "order_logs", "order_id", nil
	case EntityPayment:
		return "payment_logs", "payment_id", nil
	case EntityShop:
		return "shop_logs", "shop_id", nil
	case EntityProduct:
		return "product_logs", "product_id", nil
	default:
		return "", "", fmt.Errorf("audit: unknown entity %q", entity)
	}
}

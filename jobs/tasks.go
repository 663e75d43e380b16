// Package jobs wires asynq background work: audit log backfills after
// product renames, SMS delivery retries, and scheduled maintenance.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-dms/meridian-dms/internal/audit"
	jobmetrics "github.com/meridian-dms/meridian-dms/internal/jobs"
	"github.com/meridian-dms/meridian-dms/internal/notify"
	"github.com/meridian-dms/meridian-dms/internal/observability"
	"github.com/meridian-dms/meridian-dms/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskTypeAuditBackfill rewrites stored product names in order logs.
	TaskTypeAuditBackfill = "audit:backfill_product_name"
	// TaskTypeSMSRetry replays a failed SMS delivery.
	TaskTypeSMSRetry = "sms:retry"
	// TaskTypeIdempotencyCleanup prunes expired idempotency keys.
	TaskTypeIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// AuditBackfillPayload identifies the renamed product.
type AuditBackfillPayload struct {
	ProductID int64  `json:"product_id"`
	NewName   string `json:"new_name"`
}

// NewAuditBackfillTask constructs the backfill task.
func NewAuditBackfillTask(payload AuditBackfillPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditBackfill, data, asynq.MaxRetry(5)), nil
}

// NewAuditBackfillHandler processes TaskTypeAuditBackfill tasks.
func NewAuditBackfillHandler(backfiller *audit.Backfiller, logger *slog.Logger, jm *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := jm.Track(TaskTypeAuditBackfill)
		var payload AuditBackfillPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(fmt.Errorf("jobs: decode backfill payload: %v: %w", err, asynq.SkipRetry))
		}
		if payload.ProductID <= 0 || payload.NewName == "" {
			return tracker.End(fmt.Errorf("jobs: invalid backfill payload %+v: %w", payload, asynq.SkipRetry))
		}
		rewritten, err := backfiller.RenameProduct(ctx, payload.ProductID, payload.NewName)
		if err != nil {
			return tracker.End(fmt.Errorf("jobs: backfill product %d: %w", payload.ProductID, err))
		}
		jm.AddBackfillRows(rewritten)
		logger.Info("audit backfill done",
			slog.Int64("product_id", payload.ProductID),
			slog.Int64("rows", rewritten))
		return tracker.End(nil)
	}
}

// SMSRetryPayload carries the already-composed message.
type SMSRetryPayload struct {
	Phone string `json:"phone"`
	Body  string `json:"body"`
}

// NewSMSRetryTask constructs the retry task. Delivery waits a bit so a
// flapping gateway gets room to recover.
func NewSMSRetryTask(payload SMSRetryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSMSRetry, data, asynq.MaxRetry(3), asynq.ProcessIn(2*time.Minute)), nil
}

// NewSMSRetryHandler processes TaskTypeSMSRetry tasks. The handler talks to
// the gateway directly: going through the dispatcher would enqueue another
// retry on every failure on top of asynq's own. The stored phone is already
// normalized. A permanent provider rejection is not retried again.
func NewSMSRetryHandler(gateway notify.GatewaySender, metrics *observability.Metrics, logger *slog.Logger, jm *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := jm.Track(TaskTypeSMSRetry)
		var payload SMSRetryPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(fmt.Errorf("jobs: decode sms retry payload: %v: %w", err, asynq.SkipRetry))
		}
		if gateway == nil {
			logger.Warn("sms retry dropped, no gateway configured", slog.String("phone", payload.Phone))
			return tracker.End(fmt.Errorf("jobs: sms gateway disabled: %w", asynq.SkipRetry))
		}
		err := gateway.Send(ctx, payload.Phone, payload.Body)
		if err == nil {
			metrics.CountSMSDelivery("sent")
			return tracker.End(nil)
		}
		metrics.CountSMSDelivery("failed")
		if errors.Is(err, notify.ErrRejected) {
			logger.Warn("sms retry dropped, provider rejected message",
				slog.String("phone", payload.Phone), slog.Any("error", err))
			return tracker.End(fmt.Errorf("jobs: sms rejected: %w", asynq.SkipRetry))
		}
		return tracker.End(fmt.Errorf("jobs: sms retry failed: %w", err))
	}
}

// NewIdempotencyCleanupTask constructs the maintenance task the scheduler
// fires nightly.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil, asynq.MaxRetry(1))
}

// NewIdempotencyCleanupHandler prunes idempotency keys older than retention.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, retention time.Duration, logger *slog.Logger, jm *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := jm.Track(TaskTypeIdempotencyCleanup)
		if err := store.Cleanup(ctx, retention); err != nil {
			return tracker.End(fmt.Errorf("jobs: idempotency cleanup: %w", err))
		}
		logger.Info("idempotency cleanup done", slog.Duration("retention", retention))
		return tracker.End(nil)
	}
}

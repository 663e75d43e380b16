package payments

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/meridian-dms/meridian-dms/internal/audit"
	"github.com/meridian-dms/meridian-dms/internal/notify"
	"github.com/meridian-dms/meridian-dms/internal/shared"
)

// AuditRecorder appends events after the financial transaction commits.
type AuditRecorder interface {
	Record(ctx context.Context, actorID int64, events ...audit.Event) error
}

// Notifier delivers best-effort shop notifications.
type Notifier interface {
	PaymentReceived(ctx context.Context, phone string, orderID int64, amount, outstanding decimal.Decimal) notify.Outcome
}

type Service struct {
	repo     Repository
	audit    AuditRecorder
	notifier Notifier
	logger   *slog.Logger
}

func NewService(repo Repository, auditor AuditRecorder, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		audit:    auditor,
		notifier: notifier,
		logger:   logger,
	}
}

// Record applies a payment to an approved order. The order row stays locked
// for the whole transaction, so the overpayment check and the insert see one
// consistent balance. Exact settlement is allowed; going past outstanding is
// not.
func (s *Service) Record(ctx context.Context, actor shared.Actor, orderID int64, req RecordPaymentRequest) (*PaymentResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("payments: amount must be positive: %w", shared.ErrValidation)
	}

	var (
		stored            Payment
		billing           *OrderBilling
		previousCollected decimal.Decimal
		newOutstanding    decimal.Decimal
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		var err error
		billing, err = tx.GetOrderBilling(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && billing.SalesRepID != actor.ID {
			return fmt.Errorf("payments: order %d belongs to rep %d: %w", orderID, billing.SalesRepID, shared.ErrAccessDenied)
		}
		if billing.Status != statusApproved {
			return fmt.Errorf("%w: can only record payments against approved orders", shared.ErrInvalidStatus)
		}

		collected, err := tx.SumPayments(ctx, orderID)
		if err != nil {
			return err
		}
		outstanding := billing.Total.Sub(collected)
		if req.Amount.GreaterThan(outstanding) {
			return &shared.OverpaymentError{
				OrderID:     orderID,
				Outstanding: outstanding,
				Attempted:   req.Amount,
			}
		}

		stored, err = tx.Insert(ctx, Payment{
			OrderID:    orderID,
			Amount:     req.Amount,
			Notes:      req.Notes,
			RecordedBy: actor.ID,
		})
		if err != nil {
			return err
		}
		previousCollected = collected
		newOutstanding = outstanding.Sub(req.Amount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor.ID, audit.PaymentRecorded{
		PaymentID:         stored.ID,
		OrderID:           orderID,
		Amount:            stored.Amount,
		PreviousCollected: previousCollected,
		NewOutstanding:    newOutstanding,
	})
	outcome := s.notifier.PaymentReceived(ctx, billing.ShopPhone, orderID, stored.Amount, newOutstanding)

	return &PaymentResult{
		Payment:      stored,
		Collected:    previousCollected.Add(stored.Amount),
		Outstanding:  newOutstanding,
		Notification: &outcome,
	}, nil
}

// ListForOrder returns an order's payments oldest first. Reps only see
// payments on their own orders.
func (s *Service) ListForOrder(ctx context.Context, actor shared.Actor, orderID int64) ([]Payment, error) {
	owner, err := s.repo.OrderOwner(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && owner != actor.ID {
		return nil, fmt.Errorf("payments: order %d: %w", orderID, shared.ErrAccessDenied)
	}
	list, err := s.repo.ListForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Payment{}
	}
	return list, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, events ...audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, actorID, events...); err != nil {
		s.logger.Warn("audit write failed", slog.Any("error", err))
	}
}

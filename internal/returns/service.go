package returns

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
	ReturnRecorded(ctx context.Context, phone string, orderID int64, newTotal decimal.Decimal) notify.Outcome
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

// Record takes back units from an approved order's lines. Quantities only
// ever decrease; a line that reaches zero is deleted and the order total is
// recomputed from the remaining lines. Product stock is not restored.
//
// A return that would drop the total below what has already been collected
// is refused, since the order would end up overpaid.
func (s *Service) Record(ctx context.Context, actor shared.Actor, orderID int64, req RecordReturnRequest) (*ReturnResult, error) {
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}

	var (
		ref         *OrderRef
		returned    []ReturnedLine
		totalBefore decimal.Decimal
		totalAfter  decimal.Decimal
		outstanding decimal.Decimal
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		var err error
		ref, err = tx.GetOrderRef(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && ref.SalesRepID != actor.ID {
			return fmt.Errorf("returns: order %d belongs to rep %d: %w", orderID, ref.SalesRepID, shared.ErrAccessDenied)
		}
		if ref.Status != statusApproved {
			return fmt.Errorf("%w: can only record returns against approved orders", shared.ErrInvalidStatus)
		}

		lines, err := tx.Lines(ctx, orderID)
		if err != nil {
			return err
		}
		byProduct := make(map[int64]*OrderLine, len(lines))
		for i := range lines {
			byProduct[lines[i].ProductID] = &lines[i]
		}

		// Check every requested line before touching any of them.
		for _, item := range req.Items {
			line, ok := byProduct[item.ProductID]
			if !ok {
				return fmt.Errorf("returns: product %d is not on order %d: %w", item.ProductID, orderID, shared.ErrNotFound)
			}
			if item.Quantity > line.Quantity {
				return &shared.ReturnQuantityError{
					OrderID:   orderID,
					ProductID: item.ProductID,
					Ordered:   line.Quantity,
					Attempted: item.Quantity,
				}
			}
		}

		for _, item := range req.Items {
			line := byProduct[item.ProductID]
			newQty := line.Quantity - item.Quantity
			if newQty == 0 {
				if err := tx.DeleteLine(ctx, line.ID); err != nil {
					return err
				}
			} else {
				newLineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(newQty)))
				if err := tx.SetLineQuantity(ctx, line.ID, newQty, newLineTotal); err != nil {
					return err
				}
				line.LineTotal = newLineTotal
			}
			line.Quantity = newQty
			returned = append(returned, ReturnedLine{
				ProductID:   item.ProductID,
				ProductName: line.ProductName,
				Quantity:    item.Quantity,
				LineDeleted: newQty == 0,
			})
		}

		totalBefore = ref.Total
		totalAfter = decimal.Zero
		for _, line := range lines {
			if line.Quantity > 0 {
				totalAfter = totalAfter.Add(line.LineTotal)
			}
		}
		if err := tx.UpdateOrderTotal(ctx, orderID, totalAfter); err != nil {
			return err
		}

		collected, err := tx.SumPayments(ctx, orderID)
		if err != nil {
			return err
		}
		if collected.GreaterThan(totalAfter) {
			return &shared.OverpaymentError{
				OrderID:     orderID,
				Outstanding: totalAfter,
				Attempted:   collected,
			}
		}
		outstanding = totalAfter.Sub(collected)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor.ID, audit.OrderReturned{
		OrderID:     orderID,
		Items:       auditItems(returned),
		TotalBefore: totalBefore,
		TotalAfter:  totalAfter,
	})
	outcome := s.notifier.ReturnRecorded(ctx, ref.ShopPhone, orderID, totalAfter)

	return &ReturnResult{
		OrderID:      orderID,
		Returned:     returned,
		TotalBefore:  totalBefore,
		TotalAfter:   totalAfter,
		Outstanding:  outstanding,
		Notification: &outcome,
	}, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, events ...audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, actorID, events...); err != nil {
		s.logger.Warn("audit write failed", slog.Any("error", err))
	}
}

func auditItems(returned []ReturnedLine) []audit.ReturnedItem {
	items := make([]audit.ReturnedItem, 0, len(returned))
	for _, line := range returned {
		items = append(items, audit.ReturnedItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			LineDeleted: line.LineDeleted,
		})
	}
	return items
}

func validateItems(items []ReturnItemRequest) error {
	if len(items) == 0 {
		return fmt.Errorf("returns: at least one item is required: %w", shared.ErrValidation)
	}
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			return fmt.Errorf("returns: item product_id is required: %w", shared.ErrValidation)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("returns: item quantity must be positive: %w", shared.ErrValidation)
		}
		if seen[it.ProductID] {
			return fmt.Errorf("returns: product %d appears more than once: %w", it.ProductID, shared.ErrValidation)
		}
		seen[it.ProductID] = true
	}
	return nil
}

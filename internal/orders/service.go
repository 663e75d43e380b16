package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-dms/meridian-dms/internal/audit"
	"github.com/meridian-dms/meridian-dms/internal/notify"
	"github.com/meridian-dms/meridian-dms/internal/observability"
	"github.com/meridian-dms/meridian-dms/internal/payments"
	"github.com/meridian-dms/meridian-dms/internal/shared"
)

// createScope namespaces idempotency keys so a reused key cannot collide
// with other operations.
const createScope = "orders:create"

// AuditRecorder appends events after the financial transaction commits.
type AuditRecorder interface {
	Record(ctx context.Context, actorID int64, events ...audit.Event) error
}

// Notifier delivers best-effort shop notifications.
type Notifier interface {
	OrderPlaced(ctx context.Context, phone string, orderID int64, shopName string, total decimal.Decimal) notify.Outcome
	OrderApproved(ctx context.Context, phone string, orderID int64, total decimal.Decimal) notify.Outcome
	OrderRejected(ctx context.Context, phone string, orderID int64, reason string) notify.Outcome
}

// IdempotencyStore deduplicates order creation retries.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, scope string) error
	Bind(ctx context.Context, key string, refID int64) error
	Lookup(ctx context.Context, key, scope string) (int64, error)
	Delete(ctx context.Context, key string) error
}

type Service struct {
	repo     Repository
	audit    AuditRecorder
	notifier Notifier
	idem     IdempotencyStore
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func NewService(repo Repository, auditor AuditRecorder, notifier Notifier, idem IdempotencyStore, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		audit:    auditor,
		notifier: notifier,
		idem:     idem,
		metrics:  metrics,
		logger:   logger,
	}
}

// Create records a new pending order after the shop passes the credit gate.
// The advisory lock serializes the check-then-insert sequence per shop, so
// two concurrent creates cannot both pass against the same stale state.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateOrderRequest) (*OrderResult, error) {
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	shop, err := s.repo.GetShop(ctx, req.ShopID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && shop.SalesRepID != actor.ID {
		return nil, fmt.Errorf("orders: shop %d is not assigned to rep %d: %w", shop.ID, actor.ID, shared.ErrAccessDenied)
	}

	if req.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, req.IdempotencyKey, createScope); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return s.replayCreate(ctx, req.IdempotencyKey)
			}
			return nil, err
		}
	}

	var created Order
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.LockShopCredit(ctx, req.ShopID); err != nil {
			return err
		}
		state, err := tx.CreditState(ctx, req.ShopID, 0)
		if err != nil {
			return err
		}
		items, total, err := buildItems(ctx, tx, req.Items)
		if err != nil {
			return err
		}
		if err := state.CheckNewTotal(total); err != nil {
			s.countDenial(err)
			return err
		}

		order := Order{ShopID: req.ShopID, SalesRepID: actor.ID, Status: StatusPending, Total: total, Notes: req.Notes}
		orderID, err := tx.Create(ctx, order)
		if err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = orderID
			itemID, err := tx.InsertItem(ctx, items[i])
			if err != nil {
				return err
			}
			items[i].ID = itemID
		}
		order.ID = orderID
		order.Items = items
		created = order
		return nil
	})
	if err != nil {
		s.releaseKey(ctx, req.IdempotencyKey)
		return nil, err
	}

	if req.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.Bind(ctx, req.IdempotencyKey, created.ID); err != nil {
			s.logger.Warn("bind idempotency key", slog.String("key", req.IdempotencyKey), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, actor.ID, audit.OrderCreated{
		OrderID: created.ID,
		ShopID:  created.ShopID,
		Total:   created.Total,
		Items:   itemSnapshots(created.Items),
	})
	outcome := s.notifier.OrderPlaced(ctx, shop.Phone, created.ID, shop.Name, created.Total)

	detail, err := s.detail(ctx, created.ID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: detail, Notification: &outcome}, nil
}

// replayCreate serves a retried create whose key was already processed. The
// original order is returned untouched and no new notification goes out.
func (s *Service) replayCreate(ctx context.Context, key string) (*OrderResult, error) {
	orderID, err := s.idem.Lookup(ctx, key, createScope)
	if err != nil {
		return nil, err
	}
	if orderID == 0 {
		return nil, fmt.Errorf("orders: create with key %q still in flight: %w", key, shared.ErrDuplicate)
	}
	detail, err := s.detail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: detail, Notification: &notify.Outcome{Sent: false, Error: "idempotent replay"}}, nil
}

// EditPending replaces a pending order's items. Only the rep who placed the
// order may edit it, and the credit gate re-runs against the resulting state
// with the order's own old total excluded.
func (s *Service) EditPending(ctx context.Context, actor shared.Actor, orderID int64, req EditOrderRequest) (*OrderResult, error) {
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing.SalesRepID != actor.ID {
		return nil, fmt.Errorf("orders: order %d belongs to rep %d: %w", orderID, existing.SalesRepID, shared.ErrAccessDenied)
	}

	var before, after audit.OrderSnapshot
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.LockShopCredit(ctx, existing.ShopID); err != nil {
			return err
		}
		current, err := tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			return fmt.Errorf("%w: can only edit pending orders", shared.ErrInvalidStatus)
		}
		state, err := tx.CreditState(ctx, current.ShopID, current.ID)
		if err != nil {
			return err
		}
		items, total, err := buildItems(ctx, tx, req.Items)
		if err != nil {
			return err
		}
		if err := state.CheckNewTotal(total); err != nil {
			s.countDenial(err)
			return err
		}

		before = audit.OrderSnapshot{Total: current.Total, Items: itemSnapshots(current.Items)}
		if err := replaceItems(ctx, tx, current.ID, items, total); err != nil {
			return err
		}
		after = audit.OrderSnapshot{Total: total, Items: itemSnapshots(items)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor.ID, audit.OrderEdited{OrderID: orderID, Before: before, After: after})

	detail, err := s.detail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: detail}, nil
}

// EditAsAdmin replaces any order's items regardless of status or ownership,
// trusting the admin to override the credit gate. Editing an approved order
// reconciles product stock by each line's quantity delta; any shortfall
// rolls the whole edit back.
func (s *Service) EditAsAdmin(ctx context.Context, actor shared.Actor, orderID int64, req EditOrderRequest) (*OrderResult, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("orders: admin edit requires the admin role: %w", shared.ErrAccessDenied)
	}
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}

	var (
		before, after  audit.OrderSnapshot
		previousStatus Status
		deltas         []audit.StockDelta
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		items, total, err := buildItems(ctx, tx, req.Items)
		if err != nil {
			return err
		}

		previousStatus = current.Status
		deltas = nil
		if current.Status == StatusApproved {
			deltas, err = reconcileStock(ctx, tx, current.Items, items)
			if err != nil {
				return err
			}
		}

		before = audit.OrderSnapshot{Total: current.Total, Items: itemSnapshots(current.Items)}
		if err := replaceItems(ctx, tx, current.ID, items, total); err != nil {
			return err
		}
		after = audit.OrderSnapshot{Total: total, Items: itemSnapshots(items)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor.ID, audit.OrderAdminEdited{
		OrderID:        orderID,
		PreviousStatus: string(previousStatus),
		Before:         before,
		After:          after,
		StockDeltas:    deltas,
	})

	detail, err := s.detail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: detail}, nil
}

// Approve moves a pending order to approved. Stock is not touched here;
// only admin edits of an approved order reconcile stock.
func (s *Service) Approve(ctx context.Context, actor shared.Actor, orderID int64) (*OrderResult, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("orders: approval requires the admin role: %w", shared.ErrAccessDenied)
	}
	var approved Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			return fmt.Errorf("%w: can only approve pending orders", shared.ErrInvalidStatus)
		}
		if err := tx.SetStatus(ctx, orderID, StatusApproved, nil); err != nil {
			return err
		}
		approved = *current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor.ID, audit.OrderApproved{OrderID: orderID, Total: approved.Total})

	var outcome notify.Outcome
	if shop, err := s.repo.GetShop(ctx, approved.ShopID); err != nil {
		outcome = notify.Outcome{Error: err.Error()}
	} else {
		outcome = s.notifier.OrderApproved(ctx, shop.Phone, orderID, approved.Total)
	}

	detail, err := s.detail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: detail, Notification: &outcome}, nil
}

// Reject moves a pending order to rejected, keeping the reason and the
// rejection time for the shop's record.
func (s *Service) Reject(ctx context.Context, actor shared.Actor, orderID int64, req RejectOrderRequest) (*OrderResult, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("orders: rejection requires the admin role: %w", shared.ErrAccessDenied)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, fmt.Errorf("orders: rejection reason is required: %w", shared.ErrValidation)
	}

	var rejected Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			return fmt.Errorf("%w: can only reject pending orders", shared.ErrInvalidStatus)
		}
		if err := tx.SetStatus(ctx, orderID, StatusRejected, &reason); err != nil {
			return err
		}
		rejected = *current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor.ID, audit.OrderRejected{OrderID: orderID, Reason: reason, RejectedAt: time.Now()})

	var outcome notify.Outcome
	if shop, err := s.repo.GetShop(ctx, rejected.ShopID); err != nil {
		outcome = notify.Outcome{Error: err.Error()}
	} else {
		outcome = s.notifier.OrderRejected(ctx, shop.Phone, orderID, reason)
	}

	detail, err := s.detail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: detail, Notification: &outcome}, nil
}

// Get returns the full order detail. Reps only see their own orders.
func (s *Service) Get(ctx context.Context, actor shared.Actor, orderID int64) (*OrderDetail, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.SalesRepID != actor.ID {
		return nil, fmt.Errorf("orders: order %d: %w", orderID, shared.ErrAccessDenied)
	}
	return s.assemble(ctx, order)
}

// List returns a page of orders. Reps are always scoped to their own orders
// no matter what filters they send.
func (s *Service) List(ctx context.Context, actor shared.Actor, req ListOrdersRequest) (*ListOrdersResponse, error) {
	if !actor.IsAdmin() {
		req.SalesRepID = &actor.ID
	}
	rows, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []OrderWithShop{}
	}
	return &ListOrdersResponse{
		Orders:     rows,
		Pagination: shared.NewPagination(req.Page, req.PerPage, total),
	}, nil
}

func (s *Service) detail(ctx context.Context, orderID int64) (*OrderDetail, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.assemble(ctx, order)
}

// assemble fans out the shop and payment reads, then derives the balance.
func (s *Service) assemble(ctx context.Context, order *Order) (*OrderDetail, error) {
	var (
		shop *ShopRef
		pays []payments.Payment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		shop, err = s.repo.GetShop(gctx, order.ShopID)
		return err
	})
	g.Go(func() error {
		var err error
		pays, err = s.repo.PaymentsForOrder(gctx, order.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	collected := decimal.Zero
	for _, p := range pays {
		collected = collected.Add(p.Amount)
	}
	if pays == nil {
		pays = []payments.Payment{}
	}
	return &OrderDetail{
		Order:       *order,
		ShopName:    shop.Name,
		Payments:    pays,
		Collected:   collected,
		Outstanding: order.Total.Sub(collected),
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

func (s *Service) releaseKey(ctx context.Context, key string) {
	if key == "" || s.idem == nil {
		return
	}
	if err := s.idem.Delete(ctx, key); err != nil {
		s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) countDenial(err error) {
	switch {
	case errors.Is(err, shared.ErrCreditLimit):
		s.metrics.CountCreditDenial("limit")
	case errors.Is(err, shared.ErrBillCap):
		s.metrics.CountCreditDenial("cap")
	}
}

// buildItems resolves product snapshots and prices the requested lines.
// Unit prices come from the catalog at this instant and are frozen into the
// line rows.
func buildItems(ctx context.Context, tx Repository, reqItems []OrderItemRequest) ([]OrderItem, decimal.Decimal, error) {
	ids := make([]int64, 0, len(reqItems))
	for _, it := range reqItems {
		ids = append(ids, it.ProductID)
	}
	snapshots, err := tx.Products(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}

	total := decimal.Zero
	items := make([]OrderItem, 0, len(reqItems))
	for _, it := range reqItems {
		p, ok := snapshots[it.ProductID]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("orders: product %d: %w", it.ProductID, shared.ErrNotFound)
		}
		lineTotal := p.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		items = append(items, OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   p.UnitPrice,
			Quantity:    it.Quantity,
			LineTotal:   lineTotal,
		})
		total = total.Add(lineTotal)
	}
	return items, total, nil
}

// replaceItems swaps an order's lines for the given set and stores the new
// total, keeping order.total equal to the sum of its lines.
func replaceItems(ctx context.Context, tx Repository, orderID int64, items []OrderItem, total decimal.Decimal) error {
	if err := tx.DeleteItems(ctx, orderID); err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = orderID
		itemID, err := tx.InsertItem(ctx, items[i])
		if err != nil {
			return err
		}
		items[i].ID = itemID
	}
	return tx.UpdateTotal(ctx, orderID, total)
}

// reconcileStock applies quantity deltas between the old and new item sets
// to product stock. Rows lock in ascending product id so concurrent admin
// edits cannot deadlock.
func reconcileStock(ctx context.Context, tx Repository, oldItems, newItems []OrderItem) ([]audit.StockDelta, error) {
	oldQty := make(map[int64]int, len(oldItems))
	for _, it := range oldItems {
		oldQty[it.ProductID] = it.Quantity
	}
	newQty := make(map[int64]int, len(newItems))
	for _, it := range newItems {
		newQty[it.ProductID] = it.Quantity
	}

	seen := make(map[int64]bool, len(oldQty)+len(newQty))
	productIDs := make([]int64, 0, len(oldQty)+len(newQty))
	for _, it := range oldItems {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			productIDs = append(productIDs, it.ProductID)
		}
	}
	for _, it := range newItems {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			productIDs = append(productIDs, it.ProductID)
		}
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	var deltas []audit.StockDelta
	for _, pid := range productIDs {
		delta := newQty[pid] - oldQty[pid]
		if delta == 0 {
			continue
		}
		product, err := tx.ProductForUpdate(ctx, pid)
		if err != nil {
			return nil, err
		}
		newStock := product.Stock - delta
		if newStock < 0 {
			return nil, &shared.InsufficientStockError{
				ProductID: pid,
				Requested: delta,
				Available: product.Stock,
			}
		}
		if err := tx.SetProductStock(ctx, pid, newStock); err != nil {
			return nil, err
		}
		deltas = append(deltas, audit.StockDelta{ProductID: pid, Delta: delta, NewStock: newStock})
	}
	return deltas, nil
}

func itemSnapshots(items []OrderItem) []audit.ItemSnapshot {
	snaps := make([]audit.ItemSnapshot, 0, len(items))
	for _, it := range items {
		snaps = append(snaps, audit.ItemSnapshot{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			LineTotal:   it.LineTotal,
		})
	}
	return snaps
}

func validateItems(items []OrderItemRequest) error {
	if len(items) == 0 {
		return fmt.Errorf("orders: at least one item is required: %w", shared.ErrValidation)
	}
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			return fmt.Errorf("orders: item product_id is required: %w", shared.ErrValidation)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("orders: item quantity must be positive: %w", shared.ErrValidation)
		}
		if seen[it.ProductID] {
			return fmt.Errorf("orders: product %d appears more than once: %w", it.ProductID, shared.ErrValidation)
		}
		seen[it.ProductID] = true
	}
	return nil
}

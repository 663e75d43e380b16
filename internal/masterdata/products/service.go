package products

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/meridian-dms/meridian-dms/internal/audit"
	"github.com/meridian-dms/meridian-dms/internal/shared"
)

// AuditRecorder appends events after a write lands.
type AuditRecorder interface {
	Record(ctx context.Context, actorID int64, events ...audit.Event) error
}

// BackfillEnqueuer schedules the rewrite of historical order logs after a
// product rename.
type BackfillEnqueuer interface {
	EnqueueProductNameBackfill(ctx context.Context, productID int64, newName string) error
}

type Service struct {
	repo     Repository
	cache    *Cache
	audit    AuditRecorder
	backfill BackfillEnqueuer
	logger   *slog.Logger
}

func NewService(repo Repository, cache *Cache, auditor AuditRecorder, backfill BackfillEnqueuer, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		audit:    auditor,
		backfill: backfill,
		logger:   logger,
	}
}

// List returns a page of the catalog. Reps read it to build orders, so
// there is no role gate here.
func (s *Service) List(ctx context.Context, req ListProductsRequest) (*ListProductsResponse, error) {
	products, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []Product{}
	}
	return &ListProductsResponse{
		Products:   products,
		Pagination: shared.NewPagination(req.Page, req.PerPage, total),
	}, nil
}

// Get serves product detail through the cache. Stale stock is acceptable
// here; order placement always reads the row directly.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	if p, ok := s.cache.Get(ctx, id); ok {
		return p, nil
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, p)
	return p, nil
}

func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateProductRequest) (*Product, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("products: only admins manage the catalog: %w", shared.ErrAccessDenied)
	}
	if req.UnitPrice.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("products: unit price must be positive: %w", shared.ErrValidation)
	}

	created, err := s.repo.Create(ctx, Product{
		Name:      req.Name,
		SKU:       req.SKU,
		UnitPrice: req.UnitPrice,
		Stock:     req.Stock,
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor.ID, audit.ProductSaved{
		ProductID: created.ID,
		Created:   true,
		Fields: map[string]any{
			"name":       created.Name,
			"sku":        created.SKU,
			"unit_price": created.UnitPrice,
			"stock":      created.Stock,
		},
	})
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req UpdateProductRequest) (*Product, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("products: only admins manage the catalog: %w", shared.ErrAccessDenied)
	}
	if req.UnitPrice.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("products: unit price must be positive: %w", shared.ErrValidation)
	}
	old, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, Product{Name: req.Name, SKU: req.SKU, UnitPrice: req.UnitPrice}); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, id)

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if old.Name != updated.Name && s.backfill != nil {
		if err := s.backfill.EnqueueProductNameBackfill(ctx, id, updated.Name); err != nil {
			s.logger.Warn("enqueue product name backfill failed",
				slog.Int64("product_id", id), slog.Any("error", err))
		}
	}
	if diff := changes(old, updated); len(diff) > 0 {
		s.recordAudit(ctx, actor.ID, audit.ProductSaved{ProductID: id, Fields: diff})
	}
	return updated, nil
}

// AdjustStock applies a manual stock correction. The row stays locked while
// the new counter is computed so concurrent corrections and order edits
// serialize; the counter can never go negative.
func (s *Service) AdjustStock(ctx context.Context, actor shared.Actor, id int64, delta int) (*Product, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("products: only admins adjust stock: %w", shared.ErrAccessDenied)
	}
	if delta == 0 {
		return nil, fmt.Errorf("products: stock delta cannot be zero: %w", shared.ErrValidation)
	}

	var adjusted *Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		p, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		newStock := p.Stock + delta
		if newStock < 0 {
			return &shared.InsufficientStockError{
				ProductID: id,
				Requested: -delta,
				Available: p.Stock,
			}
		}
		if err := tx.SetStock(ctx, id, newStock); err != nil {
			return err
		}
		p.Stock = newStock
		adjusted = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, id)
	s.recordAudit(ctx, actor.ID, audit.ProductStockAdjusted{
		ProductID: id,
		Delta:     delta,
		NewStock:  adjusted.Stock,
	})
	return adjusted, nil
}

func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("products: only admins manage the catalog: %w", shared.ErrAccessDenied)
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)
	s.recordAudit(ctx, actor.ID, audit.ProductDeleted{ProductID: id, Name: p.Name})
	return nil
}

func changes(old, updated *Product) map[string]any {
	diff := make(map[string]any)
	if old.Name != updated.Name {
		diff["name"] = changed(old.Name, updated.Name)
	}
	if old.SKU != updated.SKU {
		diff["sku"] = changed(old.SKU, updated.SKU)
	}
	if !old.UnitPrice.Equal(updated.UnitPrice) {
		diff["unit_price"] = changed(old.UnitPrice, updated.UnitPrice)
	}
	return diff
}

func changed(from, to any) map[string]any {
	return map[string]any{"from": from, "to": to}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, actorID, event); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}

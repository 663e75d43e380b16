package shops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meridian-dms/meridian-dms/internal/audit"
	"github.com/meridian-dms/meridian-dms/internal/notify"
	"github.com/meridian-dms/meridian-dms/internal/shared"
)

// AuditRecorder appends events after a write lands.
type AuditRecorder interface {
	Record(ctx context.Context, actorID int64, events ...audit.Event) error
}

type Service struct {
	repo        Repository
	audit       AuditRecorder
	countryCode string
	logger      *slog.Logger
}

// NewService wires the shop master. countryCode is the default dialing
// prefix applied when normalizing stored phone numbers.
func NewService(repo Repository, auditor AuditRecorder, countryCode string, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		audit:       auditor,
		countryCode: countryCode,
		logger:      logger,
	}
}

// List returns shops visible to the actor. Reps only ever see their own
// assignments regardless of the requested filter.
func (s *Service) List(ctx context.Context, actor shared.Actor, req ListShopsRequest) (*ListShopsResponse, error) {
	if !actor.IsAdmin() {
		req.SalesRepID = &actor.ID
	}
	shops, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, err
	}
	if shops == nil {
		shops = []Shop{}
	}
	return &ListShopsResponse{
		Shops:      shops,
		Pagination: shared.NewPagination(req.Page, req.PerPage, total),
	}, nil
}

func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (*Shop, error) {
	shop, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && shop.SalesRepID != actor.ID {
		return nil, fmt.Errorf("shops: shop %d is assigned to rep %d: %w", id, shop.SalesRepID, shared.ErrAccessDenied)
	}
	return shop, nil
}

func (s *Service) Create(ctx context.Context, actor shared.Actor, req SaveShopRequest) (*Shop, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("shops: only admins manage shops: %w", shared.ErrAccessDenied)
	}
	shop, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, *shop)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor.ID, audit.ShopSaved{
		ShopID:  created.ID,
		Created: true,
		Fields: map[string]any{
			"name":             created.Name,
			"phone":            created.Phone,
			"max_bill_amount":  created.MaxBillAmount,
			"max_active_bills": created.MaxActiveBills,
			"sales_rep_id":     created.SalesRepID,
		},
	})
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req SaveShopRequest) (*Shop, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("shops: only admins manage shops: %w", shared.ErrAccessDenied)
	}
	old, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	shop, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, *shop); err != nil {
		return nil, err
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if diff := changes(old, updated); len(diff) > 0 {
		s.recordAudit(ctx, actor.ID, audit.ShopSaved{ShopID: id, Fields: diff})
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("shops: only admins manage shops: %w", shared.ErrAccessDenied)
	}
	shop, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, audit.ShopDeleted{ShopID: id, Name: shop.Name})
	return nil
}

// prepare validates the cross-field rules a struct tag cannot express and
// canonicalizes the phone number before it is stored.
func (s *Service) prepare(ctx context.Context, req SaveShopRequest) (*Shop, error) {
	if req.MaxBillAmount.IsNegative() {
		return nil, fmt.Errorf("shops: max bill amount cannot be negative: %w", shared.ErrValidation)
	}
	phone, err := notify.NormalizePhone(req.Phone, s.countryCode)
	if err != nil {
		return nil, fmt.Errorf("shops: %w: %w", err, shared.ErrValidation)
	}

	role, err := s.repo.UserRole(ctx, req.SalesRepID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("shops: sales rep %d not found: %w", req.SalesRepID, shared.ErrValidation)
		}
		return nil, err
	}
	if role != shared.RoleSalesRep {
		return nil, fmt.Errorf("shops: user %d is not a sales rep: %w", req.SalesRepID, shared.ErrValidation)
	}

	return &Shop{
		Name:           req.Name,
		Address:        req.Address,
		Phone:          phone,
		MaxBillAmount:  req.MaxBillAmount,
		MaxActiveBills: req.MaxActiveBills,
		SalesRepID:     req.SalesRepID,
	}, nil
}

func changes(old, updated *Shop) map[string]any {
	diff := make(map[string]any)
	if old.Name != updated.Name {
		diff["name"] = changed(old.Name, updated.Name)
	}
	if old.Address != updated.Address {
		diff["address"] = changed(old.Address, updated.Address)
	}
	if old.Phone != updated.Phone {
		diff["phone"] = changed(old.Phone, updated.Phone)
	}
	if !old.MaxBillAmount.Equal(updated.MaxBillAmount) {
		diff["max_bill_amount"] = changed(old.MaxBillAmount, updated.MaxBillAmount)
	}
	if old.MaxActiveBills != updated.MaxActiveBills {
		diff["max_active_bills"] = changed(old.MaxActiveBills, updated.MaxActiveBills)
	}
	if old.SalesRepID != updated.SalesRepID {
		diff["sales_rep_id"] = changed(old.SalesRepID, updated.SalesRepID)
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

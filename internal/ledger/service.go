package ledger

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/meridian-dms/meridian-dms/internal/shared"
)

// RepositoryPort is the data access the service needs.
type RepositoryPort interface {
	GetCreditState(ctx context.Context, shopID int64) (CreditState, error)
}

// Service exposes read access to shop credit state.
type Service struct {
	repo  RepositoryPort
	group singleflight.Group
}

func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ShopCreditState returns the shop's current credit position. Concurrent
// calls for the same shop collapse into one query; singleflight shares only
// in-flight calls, so every returned state was computed fresh, never served
// from a cache.
func (s *Service) ShopCreditState(ctx context.Context, actor shared.Actor, shopID int64) (CreditState, error) {
	resultChan := s.group.DoChan(fmt.Sprintf("shop:%d", shopID), func() (interface{}, error) {
		return s.repo.GetCreditState(context.WithoutCancel(ctx), shopID)
	})

	var state CreditState
	select {
	case <-ctx.Done():
		return CreditState{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return CreditState{}, res.Err
		}
		state = res.Val.(CreditState)
	}

	if !actor.IsAdmin() && state.SalesRepID != actor.ID {
		return CreditState{}, fmt.Errorf("ledger: shop %d is not assigned to rep %d: %w", shopID, actor.ID, shared.ErrAccessDenied)
	}
	return state, nil
}

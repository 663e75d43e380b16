package users

import (
	"context"

	"github.com/meridian-dms/meridian-dms/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, req ListUsersRequest) (*ListUsersResponse, error) {
	users, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return &ListUsersResponse{
		Users:      users,
		Pagination: shared.NewPagination(req.Page, req.PerPage, total),
	}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

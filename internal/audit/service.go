package audit

import (
	"context"
	"fmt"
)

// TimelineRepository reads merged log rows ordered newest first.
type TimelineRepository interface {
	Window(ctx context.Context, filters TimelineFilters, limit, offset int) ([]LogEntry, error)
}

// Service coordinates timeline reads.
type Service struct {
	repo TimelineRepository
}

func NewService(repo TimelineRepository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of the merged timeline. Requesting one row past
// the page tells us whether a next page exists without a count query.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize
	entries, err := s.repo.Window(ctx, filters, pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Entries: entries, Paging: paging}, nil
}

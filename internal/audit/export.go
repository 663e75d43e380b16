package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

const exportPageSize = 500

// ExportTimeline writes every timeline row matching the filters as CSV.
// Rows stream page by page so a large log never sits in memory.
func (s *Service) ExportTimeline(ctx context.Context, filters TimelineFilters, w io.Writer) error {
	if s.repo == nil {
		return fmt.Errorf("audit: repository not configured")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"entity", "entity_id", "actor_id", "action", "details", "at"}); err != nil {
		return fmt.Errorf("audit: write csv header: %w", err)
	}

	offset := 0
	for {
		entries, err := s.repo.Window(ctx, filters, exportPageSize, offset)
		if err != nil {
			return err
		}
		for _, e := range entries {
			row := []string{
				string(e.Entity),
				strconv.FormatInt(e.EntityID, 10),
				strconv.FormatInt(e.ActorID, 10),
				e.Action,
				string(e.Details),
				e.At.UTC().Format(time.RFC3339),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("audit: write csv row: %w", err)
			}
		}
		if len(entries) < exportPageSize {
			break
		}
		offset += exportPageSize
	}

	cw.Flush()
	return cw.Error()
}

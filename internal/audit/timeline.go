package audit

import (
	"encoding/json"
	"time"
)

// TimelineFilters narrows the merged timeline. EntityID without Entity
// matches that id in any log table; Action matches the stored verb exactly.
type TimelineFilters struct {
	Entity   Entity
	EntityID int64
	Action   string
	Page     int
	PageSize int
}

// LogEntry is one row of the merged timeline.
type LogEntry struct {
	Entity   Entity          `json:"entity"`
	EntityID int64           `json:"entity_id"`
	ActorID  int64           `json:"actor_id"`
	Action   string          `json:"action"`
	Details  json.RawMessage `json:"details"`
	At       time.Time       `json:"at"`
}

// PagingInfo carries simple page metadata for the timeline response.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result bundles timeline rows with their paging info.
type Result struct {
	Entries []LogEntry `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}

/*
store.go - Persistence interface for timelines and their filter history

PURPOSE:
  Defines the interface between timelines and the database. A Record is
  the durable form of a Timeline: its settings, its dates and the selected
  range. The Timeline itself (partitions, fragments) is always rebuilt from
  the record and never stored.

KEY INTERFACES:
  Store:     Record CRUD
  FilterLog: Append-only history of the filters a timeline published

FILTER LOG CONTRACT:
  FilterLog is append-only like an audit trail: Append and Query, no
  Update, no Delete. Deleting a timeline keeps its history.

IMPLEMENTATIONS:
  - timeline/store/memory.go: In-memory for tests and dev
  - store/sqlite/sqlite.go: SQLite
  - store/postgres/postgres.go: PostgreSQL, optionally with RDS IAM auth

SEE ALSO:
  - record.go: Capture and Restore
*/
package timeline

import (
	"context"
	"time"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/granularity"
)

// =============================================================================
// STORE - Timeline records
// =============================================================================

// Store persists timeline records.
type Store interface {
	// Create persists a new record. Returns ErrDuplicateID if the ID exists.
	Create(ctx context.Context, rec Record) error

	// Save overwrites an existing record. Returns ErrTimelineNotFound if
	// there is none.
	Save(ctx context.Context, rec Record) error

	// Get returns the record with id or ErrTimelineNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// List returns every record ordered by ID, which is creation order.
	List(ctx context.Context) ([]Record, error)

	// Delete removes a record. Returns ErrTimelineNotFound if there is none.
	Delete(ctx context.Context, id string) error
}

// =============================================================================
// FILTER LOG - What each timeline published, and when
// =============================================================================

// FilterAction is what produced a filter event.
type FilterAction string

const (
	FilterSelected    FilterAction = "selected"     // explicit date or cell selection
	FilterForced      FilterAction = "forced"       // forced selection applied
	FilterCleared     FilterAction = "cleared"      // back to the full range
	FilterRecomputed  FilterAction = "recomputed"   // settings or dates changed
	FilterLevelChange FilterAction = "level_change" // active granularity changed
)

// FilterEvent records one published filter. Active is false when the
// timeline stopped filtering; Start and End are then zero.
type FilterEvent struct {
	ID          string           `json:"id"`
	TimelineID  string           `json:"timeline_id"`
	Timestamp   time.Time        `json:"timestamp"`
	Action      FilterAction     `json:"action"`
	Granularity granularity.Type `json:"granularity"`
	Active      bool             `json:"active"`
	Start       calendar.Date    `json:"start"`
	End         calendar.Date    `json:"end"`
}

// FilterLog stores filter events. Append-only.
type FilterLog interface {
	Append(ctx context.Context, event FilterEvent) error
	Query(ctx context.Context, q FilterQuery) ([]FilterEvent, error)
}

// FilterQuery narrows FilterLog.Query. Zero fields match everything.
type FilterQuery struct {
	TimelineID string
	Actions    []FilterAction
	From       *time.Time
	To         *time.Time
	Limit      int
}

// Matches reports whether e passes every set field of q except Limit.
func (q FilterQuery) Matches(e FilterEvent) bool {
	if q.TimelineID != "" && e.TimelineID != q.TimelineID {
		return false
	}
	if len(q.Actions) > 0 {
		found := false
		for _, a := range q.Actions {
			if a == e.Action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.From != nil && e.Timestamp.Before(*q.From) {
		return false
	}
	if q.To != nil && e.Timestamp.After(*q.To) {
		return false
	}
	return true
}

package timeline

import (
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/warp/timeline-engine/calendar"
)

// Record is the stored form of a timeline.
type Record struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Settings  Settings              `json:"settings"`
	Dates     []calendar.Date       `json:"dates"`
	Selection *calendar.PeriodDates `json:"selection,omitempty"` // nil: full range
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// NewID returns a sortable unique ID.
func NewID() string {
	return ulid.Make().String()
}

// NewRecord captures a freshly built timeline under a new ID.
func NewRecord(name string, dates []calendar.Date, t *Timeline, now time.Time) Record {
	rec := Record{
		ID:        NewID(),
		Name:      name,
		Dates:     dates,
		CreatedAt: now,
	}
	rec.Capture(t, now)
	return rec
}

// Capture copies the timeline's settings and selection into the record.
// The active granularity is part of the settings, so a level change
// survives a round trip.
func (r *Record) Capture(t *Timeline, now time.Time) {
	r.Settings = t.Settings()
	r.Selection = nil
	if f, ok := t.Filter(); ok {
		r.Selection = &calendar.PeriodDates{Start: f.Start, End: f.End}
	}
	r.UpdatedAt = now
}

// Restore rebuilds the timeline and re-applies the stored selection. A
// stored selection that no longer overlaps the dates is dropped. A forced
// selection configured in the settings wins over the stored one.
func (r Record) Restore(opts ...Option) (*Timeline, error) {
	t, err := New(r.Settings, r.Dates, opts...)
	if err != nil {
		return nil, err
	}
	if r.Selection != nil && r.Settings.ForceSelection.Mode == ForceNone {
		if err := t.Select(r.Selection.Start, r.Selection.End); err != nil {
			t.logger.Warn("stored selection dropped",
				slog.String("timeline_id", r.ID),
				slog.String("error", err.Error()))
		}
	}
	return t, nil
}

package timeline

import (
	"github.com/shopspring/decimal"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/granularity"
	"github.com/warp/timeline-engine/selection"
)

// Snapshot is the serializable view of a timeline: everything a client
// needs to draw it.
type Snapshot struct {
	Granularity granularity.Type         `json:"granularity"`
	Range       calendar.PeriodDates     `json:"range"`
	Periods     []granularity.DatePeriod `json:"periods"`
	Selection   selection.Selection      `json:"selection"`
	Cursors     *Cursors                 `json:"cursors,omitempty"`
	Filter      *Filter                  `json:"filter,omitempty"`
	Labels      []granularity.LabelStrip `json:"labels"`
	RangeText   string                   `json:"range_text"`
	Settings    Settings                 `json:"settings"`
}

// Cursors are the selection edges in index coordinates.
type Cursors struct {
	Start decimal.Decimal `json:"start"`
	End   decimal.Decimal `json:"end"`
}

// Snapshot captures the current state.
func (t *Timeline) Snapshot() Snapshot {
	s := Snapshot{
		Granularity: t.Granularity(),
		Range:       t.Range(),
		Periods:     t.Periods(),
		Selection:   t.sel,
		Labels:      t.Labels(),
		RangeText:   t.RangeText(),
		Settings:    t.settings,
	}
	if start, end, ok := t.Cursors(); ok {
		s.Cursors = &Cursors{Start: start, End: end}
	}
	if f, ok := t.Filter(); ok {
		s.Filter = &f
	}
	return s
}

/*
timeline.go - One date-range selection control

PURPOSE:
  A Timeline ties the pieces together for one stream of dates: it owns the
  Calendar, the five-level granularity set, the active level and the
  current selection, and keeps them consistent as settings, data and the
  selection change.

LIFECYCLE:
  New         calendar from settings -> levels over [min, max] of the dates
              -> full selection -> forced selection if configured
  Update      range changed    -> rebuild, reset to the full selection
              calendar changed -> rebuild, re-apply the previous selection
              level changed    -> ChangeGranularity
  Select*     unseparate the active level, separate at the new dates

OUTPUT:
  Periods and Selection feed rendering; Filter is the half-open range an
  external query layer applies. A selection covering the whole range is
  "no filter".

  A Timeline is not safe for concurrent use.

SEE ALSO:
  - selection/: Separate and Unseparate
  - granularity/set.go: the levels
  - record.go: persistence round trip
*/
package timeline

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/granularity"
	"github.com/warp/timeline-engine/selection"
)

// Timeline is one selection control over one date stream.
type Timeline struct {
	settings  Settings
	cal       calendar.Calendar
	factory   *calendar.Factory
	set       *granularity.Set
	active    *granularity.Granularity
	sel       selection.Selection
	formatter granularity.Formatter
	logger    *slog.Logger
	today     func() calendar.Date
}

// Option customizes a Timeline.
type Option func(*Timeline)

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Timeline) { t.logger = logger }
}

// WithFormatter replaces the label formatter built from Settings.Labels.
func WithFormatter(f granularity.Formatter) Option {
	return func(t *Timeline) { t.formatter = f }
}

// WithClock sets the source of "today" for forced selections.
func WithClock(today func() calendar.Date) Option {
	return func(t *Timeline) { t.today = today }
}

// New builds a timeline over the span of dates. The dates need not be sorted
// or unique.
func New(settings Settings, dates []calendar.Date, opts ...Option) (*Timeline, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	start, end, ok := calendar.Bounds(dates)
	if !ok {
		return nil, ErrEmptyDates
	}

	t := &Timeline{
		settings: settings,
		factory:  calendar.NewFactory(),
		logger:   slog.Default(),
		today:    calendar.Today,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.formatter == nil {
		t.formatter = settings.Labels
	}
	t.logger = t.logger.With(slog.String("component", "timeline"))

	t.cal = t.factory.Create(settings.Calendar.WeekStandard, settings.Calendar)
	t.rebuild(start, end)
	t.selectAll()
	t.applyForced()
	return t, nil
}

// rebuild partitions [start, end] with the current calendar and activates
// the configured level. The selection is left for the caller to restore.
func (t *Timeline) rebuild(start, end calendar.Date) {
	t.set = granularity.NewSet(t.cal, start, end)
	t.active = t.set.Granularity(t.settings.Granularity)
	t.logger.Debug("partitioned",
		slog.String("start", start.String()),
		slog.String("end", end.String()),
		slog.String("granularity", t.settings.Granularity.String()),
		slog.Int("periods", t.active.Len()))
}

func (t *Timeline) selectAll() {
	t.sel = selection.FromIndices(t.active, 0, t.active.Len()-1)
}

// =============================================================================
// ACCESSORS
// =============================================================================

func (t *Timeline) Settings() Settings                { return t.settings }
func (t *Timeline) Calendar() calendar.Calendar       { return t.cal }
func (t *Timeline) Granularity() granularity.Type     { return t.active.Type() }
func (t *Timeline) Selection() selection.Selection    { return t.sel }
func (t *Timeline) Periods() []granularity.DatePeriod { return t.active.Periods() }
func (t *Timeline) Formatter() granularity.Formatter  { return t.formatter }
func (t *Timeline) Set() *granularity.Set             { return t.set }

// Range is the half-open span of the available dates.
func (t *Timeline) Range() calendar.PeriodDates { return t.set.Range() }

// Labels returns the active level's strips: its own cells and every coarser
// header.
func (t *Timeline) Labels() []granularity.LabelStrip {
	var strips []granularity.LabelStrip
	for _, header := range granularity.Types {
		if header > t.active.Type() {
			break
		}
		strips = append(strips, granularity.LabelStrip{
			Level:  t.active.Type(),
			Header: header,
			Labels: t.active.CreateLabels(t.set.Granularity(header), t.formatter),
		})
	}
	return strips
}

// Cursors returns the selection edges in index coordinates.
func (t *Timeline) Cursors() (start, end decimal.Decimal, ok bool) {
	return selection.Cursors(t.active, t.sel)
}

// IsFullSelection reports whether the selection covers every available date.
func (t *Timeline) IsFullSelection() bool {
	if t.sel.Empty() {
		return false
	}
	r := t.Range()
	return t.sel.Start.Equal(r.Start) && t.sel.End.Equal(r.End)
}

// Filter is the range predicate Start <= d < End published to the query
// layer.
type Filter struct {
	Start calendar.Date `json:"start"`
	End   calendar.Date `json:"end"`
}

// Filter returns the current filter. ok is false when nothing narrows the
// data: an empty selection or one covering the whole range.
func (t *Timeline) Filter() (Filter, bool) {
	if t.sel.Empty() || t.IsFullSelection() {
		return Filter{}, false
	}
	return Filter{Start: t.sel.Start, End: t.sel.End}, true
}

// RangeText is the caption of the selected range.
func (t *Timeline) RangeText() string {
	if t.sel.Empty() {
		return ""
	}
	return granularity.RangeText(t.formatter, t.sel.Start, t.sel.End)
}

// =============================================================================
// UPDATES
// =============================================================================

// Update applies new settings and dates.
func (t *Timeline) Update(settings Settings, dates []calendar.Date) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	start, end, ok := calendar.Bounds(dates)
	if !ok {
		return ErrEmptyDates
	}

	previous := t.sel
	rangeChanged := !start.Equal(t.set.Start()) || !end.Equal(t.set.End())
	calendarChanged := t.cal.IsChanged(settings.Calendar)
	levelChanged := settings.Granularity != t.settings.Granularity
	if settings.Labels != t.settings.Labels {
		t.formatter = settings.Labels
	}
	t.settings = settings

	switch {
	case rangeChanged:
		if calendarChanged {
			t.cal = t.factory.Create(settings.Calendar.WeekStandard, settings.Calendar)
		}
		t.rebuild(start, end)
		t.selectAll()
		t.logger.Info("range changed, selection reset")

	case calendarChanged:
		full := t.IsFullSelection()
		t.cal = t.factory.Create(settings.Calendar.WeekStandard, settings.Calendar)
		t.rebuild(start, end)
		t.restore(previous, full)
		t.logger.Info("calendar changed, selection re-applied")

	case levelChanged:
		t.switchLevel(settings.Granularity)
	}

	t.applyForced()
	return nil
}

// restore re-separates a previous selection on freshly built levels.
func (t *Timeline) restore(previous selection.Selection, full bool) {
	if previous.Empty() || full {
		t.selectAll()
		return
	}
	t.sel = selection.Separate(t.active, previous.Start, previous.End)
	if t.sel.Empty() {
		t.selectAll()
	}
}

// ChangeGranularity makes level the active one, carrying the selected dates
// over to it.
func (t *Timeline) ChangeGranularity(level granularity.Type) error {
	if !level.Valid() {
		return ErrInvalidGranularity
	}
	t.settings.Granularity = level
	t.switchLevel(level)
	return nil
}

func (t *Timeline) switchLevel(level granularity.Type) {
	previous := t.sel
	full := t.IsFullSelection()

	selection.Unseparate(t.active)
	t.active = t.set.Granularity(level)
	t.restore(previous, full)
	t.logger.Debug("granularity changed", slog.String("granularity", level.String()))
}

// =============================================================================
// SELECTION
// =============================================================================

// Select narrows the selection to [start, end), clipped to the available
// range. A range that misses the data keeps the previous selection and
// returns a *SelectionOutOfRangeError.
func (t *Timeline) Select(start, end calendar.Date) error {
	previous := t.sel

	selection.Unseparate(t.active)
	sel := selection.Separate(t.active, start, end)
	if sel.Empty() {
		if !previous.Empty() {
			t.sel = selection.Separate(t.active, previous.Start, previous.End)
		}
		return &SelectionOutOfRangeError{
			Requested: calendar.PeriodDates{Start: start, End: end},
			Available: t.Range(),
		}
	}
	t.sel = sel
	return nil
}

// SelectIndices selects cells [startIndex, endIndex] of the active level as
// they are now, the way dragging the two cursors does.
func (t *Timeline) SelectIndices(startIndex, endIndex int) error {
	sel := selection.FromIndices(t.active, startIndex, endIndex)
	if sel.Empty() {
		return ErrInvalidSelection
	}
	t.sel = sel
	return nil
}

// Click selects the cell at index. With multi, the selection instead grows
// to index: the end moves when index is past it, otherwise the start does.
func (t *Timeline) Click(index int, multi bool) error {
	if index < 0 || index >= t.active.Len() {
		return ErrInvalidSelection
	}
	if !multi || t.sel.Empty() {
		return t.SelectIndices(index, index)
	}
	if t.sel.EndIndex < index {
		return t.SelectIndices(t.sel.StartIndex, index)
	}
	return t.SelectIndices(index, t.sel.EndIndex)
}

// ClearSelection selects every available date.
func (t *Timeline) ClearSelection() {
	selection.Unseparate(t.active)
	t.selectAll()
}

// SelectCurrentPeriod selects the active-level period containing date, if
// it overlaps the available range.
func (t *Timeline) SelectCurrentPeriod(date calendar.Date) error {
	p, ok := selection.CurrentPeriod(t.cal, t.active.Type(), date, t.Range())
	if !ok {
		return &SelectionOutOfRangeError{Requested: p, Available: t.Range()}
	}
	return t.Select(p.Start, p.End)
}

// SelectLastPeriods selects the count most recent periods of unit ending
// with the one containing date.
func (t *Timeline) SelectLastPeriods(count int, unit granularity.Type, date calendar.Date) error {
	p, ok := selection.LastPeriods(t.cal, unit, count, date)
	if !ok {
		return ErrInvalidGranularity
	}
	return t.Select(p.Start, p.End)
}

// ApplyForcedSelection runs the configured forced selection against date.
// It reports whether one is configured; an unavailable period leaves the
// selection alone and returns its error.
func (t *Timeline) ApplyForcedSelection(date calendar.Date) (bool, error) {
	fs := t.settings.ForceSelection
	switch fs.Mode {
	case ForceCurrent:
		return true, t.SelectCurrentPeriod(date)
	case ForceLatest:
		return true, t.SelectLastPeriods(fs.Count, fs.Unit, date)
	}
	return false, nil
}

func (t *Timeline) applyForced() {
	if applied, err := t.ApplyForcedSelection(t.today()); applied && err != nil {
		t.logger.Warn("forced selection not applied",
			slog.String("mode", string(t.settings.ForceSelection.Mode)),
			slog.String("error", err.Error()))
	}
}

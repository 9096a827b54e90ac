/*
granularity.go - Folding a day stream into the periods of one level

PURPOSE:
  A Granularity holds the ordered, contiguous, gap-free periods of one
  level (year, quarter, month, week or day) over the set's date range.
  It is built once by folding days in ascending order and afterwards only
  changes through Split and Merge, which the selection engine uses to line
  period edges up with a selection.

ACCUMULATION:
  AddDate is a two-state fold. With an OPEN period, a day with the same
  Identifier extends it; a different Identifier closes it at that day and
  opens a new one. Days must arrive in non-decreasing order: an out-of-order
  stream produces a wrong partition, not an error.

STORAGE:
  Periods live in a slice addressed by position. Index is recomputed from
  the fractions after every structural change; nothing patches it in place.
  Positions and copies returned by Periods are stale after Split or Merge.

SEE ALSO:
  - policy.go: the per-level identifier, grouping and label rules
  - set.go: builds all five levels over one range
  - selection/: Separate and Unseparate
*/
package granularity

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/warp/timeline-engine/calendar"
)

var one = decimal.NewFromInt(1)

// Granularity is the period sequence of one level. Not safe for concurrent
// use.
type Granularity struct {
	kind    Type
	cal     calendar.Calendar
	policy  policy
	periods []DatePeriod
}

// New returns an empty level of type t over cal.
func New(t Type, cal calendar.Calendar) *Granularity {
	return &Granularity{kind: t, cal: cal, policy: policyFor(t)}
}

func (g *Granularity) Type() Type                  { return g.kind }
func (g *Granularity) Calendar() calendar.Calendar { return g.cal }
func (g *Granularity) Len() int                    { return len(g.periods) }

// Periods returns a copy of the current sequence.
func (g *Granularity) Periods() []DatePeriod { return slices.Clone(g.periods) }

// Period returns the period at pos.
func (g *Granularity) Period(pos int) DatePeriod { return g.periods[pos] }

// Identifier computes the grouping key of d at this level.
func (g *Granularity) Identifier(d calendar.Date) Identifier {
	return g.policy.identifier(g.cal, d)
}

// =============================================================================
// BUILDING
// =============================================================================

// Reset drops every period.
func (g *Granularity) Reset() {
	g.periods = g.periods[:0]
}

// AddDate folds the next day of the stream into the sequence.
func (g *Granularity) AddDate(d calendar.Date) {
	id := g.Identifier(d)

	if n := len(g.periods); n > 0 && g.periods[n-1].Identifier.Equal(id) {
		g.periods[n-1].EndDate = d
		return
	}

	if n := len(g.periods); n > 0 {
		g.periods[n-1].EndDate = d
	}
	g.periods = append(g.periods, DatePeriod{
		StartDate:  d,
		EndDate:    d,
		Fraction:   one,
		Index:      decimal.NewFromInt(int64(len(g.periods))),
		Identifier: id,
		Week:       g.cal.DetermineWeek(d),
		Year:       g.cal.DetermineYear(d),
		Month:      g.cal.DetermineMonth(d),
		Origin:     len(g.periods),
	})
}

// SetNewEndDate sets the exclusive end of the last period once the stream is
// consumed. It is a no-op on an empty sequence.
func (g *Granularity) SetNewEndDate(d calendar.Date) {
	if n := len(g.periods); n > 0 {
		g.periods[n-1].EndDate = d
	}
}

// =============================================================================
// SPLIT / MERGE
// =============================================================================

// Split cuts the period at pos in two at newDate. The head keeps
// [StartDate, newDate) and its fraction minus newFraction; the tail covers
// [newDate, EndDate) with newFraction and is inserted right after it. Both
// keep the Identifier and Origin; the tail's week, year and month are those
// of newDate.
//
// Split reports false and changes nothing unless newDate is strictly inside
// the period and newFraction is strictly between 0 and the period's fraction.
func (g *Granularity) Split(pos int, newFraction decimal.Decimal, newDate calendar.Date) bool {
	if pos < 0 || pos >= len(g.periods) {
		return false
	}
	head := g.periods[pos]
	if !newDate.After(head.StartDate) || !newDate.Before(head.EndDate) {
		return false
	}
	if !newFraction.IsPositive() || !newFraction.LessThan(head.Fraction) {
		return false
	}

	tail := DatePeriod{
		StartDate:  newDate,
		EndDate:    head.EndDate,
		Fraction:   newFraction,
		Identifier: head.Identifier,
		Week:       g.cal.DetermineWeek(newDate),
		Year:       g.cal.DetermineYear(newDate),
		Month:      g.cal.DetermineMonth(newDate),
		Origin:     head.Origin,
	}
	head.EndDate = newDate
	head.Fraction = head.Fraction.Sub(newFraction)

	g.periods[pos] = head
	g.periods = slices.Insert(g.periods, pos+1, tail)
	g.reindex()
	return true
}

// Mergeable reports whether the periods at pos and pos+1 are adjacent
// fragments of one original period.
func (g *Granularity) Mergeable(pos int) bool {
	if pos < 0 || pos+1 >= len(g.periods) {
		return false
	}
	a, b := g.periods[pos], g.periods[pos+1]
	return a.Origin == b.Origin && a.Identifier.Equal(b.Identifier) && a.EndDate.Equal(b.StartDate)
}

// Merge joins the period at pos+1 into the one at pos, undoing a Split.
// It reports false and changes nothing when the two are not Mergeable.
func (g *Granularity) Merge(pos int) bool {
	if !g.Mergeable(pos) {
		return false
	}
	g.periods[pos].EndDate = g.periods[pos+1].EndDate
	g.periods[pos].Fraction = g.periods[pos].Fraction.Add(g.periods[pos+1].Fraction)
	g.periods = slices.Delete(g.periods, pos+1, pos+2)
	g.reindex()
	return true
}

// reindex derives every Index as the running sum of preceding fractions.
func (g *Granularity) reindex() {
	sum := decimal.Zero
	for i := range g.periods {
		g.periods[i].Index = sum
		sum = sum.Add(g.periods[i].Fraction)
	}
}

// PositionAt returns the position of the period containing d, or -1.
func (g *Granularity) PositionAt(d calendar.Date) int {
	for i, p := range g.periods {
		if p.Contains(d) {
			return i
		}
	}
	return -1
}

// =============================================================================
// LABELS
// =============================================================================

// SameLabel reports whether a and b fall under one label at this level.
func (g *Granularity) SameLabel(a, b DatePeriod) bool {
	return g.policy.sameLabel(g.cal, a, b)
}

// GenerateLabel returns this level's label for p. ID is p.Index.
func (g *Granularity) GenerateLabel(f Formatter, p DatePeriod) Label {
	text, title := g.policy.label(g.cal, f, p)
	return Label{ID: p.Index, Text: text, Title: title}
}

// CreateLabels groups this level's periods into maximal runs that header
// considers the same label, and returns one header label per run, generated
// from the run's first period.
func (g *Granularity) CreateLabels(header *Granularity, f Formatter) []Label {
	var labels []Label
	var first DatePeriod
	for i, p := range g.periods {
		if i == 0 || !header.SameLabel(p, first) {
			first = p
			labels = append(labels, header.GenerateLabel(f, p))
		}
	}
	return labels
}

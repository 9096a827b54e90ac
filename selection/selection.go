/*
selection.go - Aligning period edges with a selection

PURPOSE:
  A selection [Start, End) rarely starts or ends on a period edge of the
  active level: selecting Feb 10 - Feb 20 at month level lands inside
  February. Separate splits the periods containing the two boundaries so
  the selection covers whole periods; Unseparate merges the fragments back.

FRAGMENT SIZING:
  A fragment's fraction is proportional to its days. Cutting a full 28-day
  February at the 10th leaves 9/28 in the head and 19/28 in the tail.
  Fractions are decimals: head + tail always equals the pre-split fraction.

PROVENANCE:
  Fragments carry the Origin of the period they came from. Unseparate
  merges every adjacent pair sharing an Origin, wherever it sits in the
  sequence, so any number of earlier splits are undone.

ROUND TRIP:
  Separate, Unseparate, Separate with the same dates gives the same
  boundaries and fractions as the first Separate.
*/
package selection

import (
	"github.com/shopspring/decimal"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/granularity"
)

// Selection is a run of periods of the active level, by position. Start and
// End are the dates the run resolves to, half-open.
type Selection struct {
	StartIndex int           `json:"start_index"`
	EndIndex   int           `json:"end_index"`
	Start      calendar.Date `json:"start"`
	End        calendar.Date `json:"end"`
}

// None is the empty selection.
func None() Selection { return Selection{StartIndex: -1, EndIndex: -1} }

// Empty reports whether s selects nothing.
func (s Selection) Empty() bool { return s.StartIndex < 0 || s.EndIndex < s.StartIndex }

// Dates returns the selected range.
func (s Selection) Dates() calendar.PeriodDates {
	return calendar.PeriodDates{Start: s.Start, End: s.End}
}

// Separate cuts the periods of g containing start and end so both fall on
// period edges, then selects the periods inside [start, end). Boundaries
// outside the range clip to it. A range that misses every period, or an
// empty one, selects nothing and leaves g unchanged.
func Separate(g *granularity.Granularity, start, end calendar.Date) Selection {
	if !start.Before(end) {
		return None()
	}

	// the end scan must see the sequence after the start cut
	cutAt(g, start)
	cutAt(g, end)

	return Resolve(g, start, end)
}

// cutAt splits the period that strictly contains date.
func cutAt(g *granularity.Granularity, date calendar.Date) {
	for pos := 0; pos < g.Len(); pos++ {
		p := g.Period(pos)
		if p.StartDate.Before(date) && date.Before(p.EndDate) {
			g.Split(pos, tailFraction(p, date), date)
			return
		}
	}
}

// Resolve selects the periods of g overlapping [start, end) without
// splitting anything.
func Resolve(g *granularity.Granularity, start, end calendar.Date) Selection {
	first, last := -1, -1
	for pos := 0; pos < g.Len(); pos++ {
		p := g.Period(pos)
		if first < 0 && p.EndDate.After(start) {
			first = pos
		}
		if p.StartDate.Before(end) {
			last = pos
		}
	}
	if first < 0 || last < first {
		return None()
	}
	return FromIndices(g, first, last)
}

// FromIndices selects positions [startIndex, endIndex] of g. Out-of-range or
// inverted positions select nothing.
func FromIndices(g *granularity.Granularity, startIndex, endIndex int) Selection {
	if startIndex < 0 || endIndex >= g.Len() || endIndex < startIndex {
		return None()
	}
	return Selection{
		StartIndex: startIndex,
		EndIndex:   endIndex,
		Start:      g.Period(startIndex).StartDate,
		End:        g.Period(endIndex).EndDate,
	}
}

// Unseparate merges every adjacent pair of fragments of g that came from
// the same period and returns how many merges it made.
func Unseparate(g *granularity.Granularity) int {
	merges := 0
	for pos := 0; pos < g.Len()-1; {
		if g.Merge(pos) {
			merges++
			continue
		}
		pos++
	}
	return merges
}

// Cursors returns the positions of the selection's two edges in index
// coordinates: the Index of the first period and Index + Fraction of the
// last.
func Cursors(g *granularity.Granularity, s Selection) (start, end decimal.Decimal, ok bool) {
	if s.Empty() || s.EndIndex >= g.Len() {
		return decimal.Zero, decimal.Zero, false
	}
	return g.Period(s.StartIndex).Index, g.Period(s.EndIndex).End(), true
}

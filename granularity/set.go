package granularity

import (
	"github.com/warp/timeline-engine/calendar"
)

// Set owns the five levels built over one inclusive date range and the
// Calendar they share.
type Set struct {
	cal    calendar.Calendar
	start  calendar.Date
	end    calendar.Date
	levels [numTypes]*Granularity
}

// NewSet partitions [start, end] at every level. Each level is reset, fed
// every day of the range in order and closed at end + 1 day. An inverted
// range is swapped; a single-day range gives one period per level.
func NewSet(cal calendar.Calendar, start, end calendar.Date) *Set {
	if end.Before(start) {
		start, end = end, start
	}
	s := &Set{cal: cal, start: start, end: end}

	days := calendar.Days(start, end)
	for _, t := range Types {
		g := New(t, cal)
		g.Reset()
		for _, d := range days {
			g.AddDate(d)
		}
		g.SetNewEndDate(end.AddDays(1))
		s.levels[t] = g
	}
	return s
}

func (s *Set) Calendar() calendar.Calendar { return s.cal }

// Granularity returns the level of type t.
func (s *Set) Granularity(t Type) *Granularity { return s.levels[t] }

// Start and End are the inclusive bounds the set was built from.
func (s *Set) Start() calendar.Date { return s.start }
func (s *Set) End() calendar.Date   { return s.end }

// Range is the half-open span every level tiles.
func (s *Set) Range() calendar.PeriodDates {
	return calendar.PeriodDates{Start: s.start, End: s.end.AddDays(1)}
}

// CreateLabels builds, for every level L and every level C <= L, the labels
// of L's periods grouped by C.
func (s *Set) CreateLabels(f Formatter) []LabelStrip {
	var strips []LabelStrip
	for _, level := range Types {
		for _, header := range Types {
			if header > level {
				break
			}
			strips = append(strips, LabelStrip{
				Level:  level,
				Header: header,
				Labels: s.levels[level].CreateLabels(s.levels[header], f),
			})
		}
	}
	return strips
}

// Labels returns the strip of level grouped by header, or nil when header is
// finer than level.
func (s *Set) Labels(level, header Type, f Formatter) []Label {
	if header > level {
		return nil
	}
	return s.levels[level].CreateLabels(s.levels[header], f)
}

package granularity

import (
	"github.com/warp/timeline-engine/calendar"
)

// =============================================================================
// LEVEL POLICIES - What makes each level different
// =============================================================================
//
// Every level shares one accumulation algorithm (see Granularity.AddDate).
// The three things that vary are looked up here by Type: how a day's
// grouping key is computed, when two periods share a header label, and what
// that label says.

type policy struct {
	identifier func(cal calendar.Calendar, d calendar.Date) Identifier
	sameLabel  func(cal calendar.Calendar, a, b DatePeriod) bool
	label      func(cal calendar.Calendar, f Formatter, p DatePeriod) (text, title string)
}

var policies = [numTypes]policy{
	Year: {
		identifier: func(cal calendar.Calendar, d calendar.Date) Identifier {
			return Identifier{cal.DetermineYear(d)}
		},
		sameLabel: func(_ calendar.Calendar, a, b DatePeriod) bool {
			return a.Year == b.Year
		},
		label: func(cal calendar.Calendar, f Formatter, p DatePeriod) (string, string) {
			text := f.Year(displayYear(cal, p.Year))
			return text, text
		},
	},
	Quarter: {
		identifier: func(cal calendar.Calendar, d calendar.Date) Identifier {
			q, y := cal.FiscalQuarter(d)
			return Identifier{q, y}
		},
		sameLabel: func(cal calendar.Calendar, a, b DatePeriod) bool {
			qa, _ := cal.FiscalQuarter(a.StartDate)
			qb, _ := cal.FiscalQuarter(b.StartDate)
			return qa == qb && a.Year == b.Year
		},
		label: func(cal calendar.Calendar, f Formatter, p DatePeriod) (string, string) {
			q, y := cal.FiscalQuarter(p.StartDate)
			text := f.Quarter(q, displayYear(cal, y))
			return text, text
		},
	},
	Month: {
		identifier: func(cal calendar.Calendar, d calendar.Date) Identifier {
			return Identifier{int(cal.DetermineMonth(d)), cal.DetermineYear(d)}
		},
		sameLabel: func(cal calendar.Calendar, a, b DatePeriod) bool {
			return cal.DetermineMonth(a.StartDate) == cal.DetermineMonth(b.StartDate) &&
				cal.DetermineYear(a.StartDate) == cal.DetermineYear(b.StartDate)
		},
		label: func(cal calendar.Calendar, f Formatter, p DatePeriod) (string, string) {
			start := cal.MonthPeriod(p.StartDate).Start
			text := f.Month(cal.DetermineMonth(p.StartDate), start.Year())
			return text, text
		},
	},
	Week: {
		identifier: func(cal calendar.Calendar, d calendar.Date) Identifier {
			w := cal.DetermineWeek(d)
			return Identifier{w.Number, w.Year}
		},
		sameLabel: func(_ calendar.Calendar, a, b DatePeriod) bool {
			return a.Week == b.Week
		},
		label: func(cal calendar.Calendar, f Formatter, p DatePeriod) (string, string) {
			start := cal.WeekPeriod(p.StartDate).Start
			return f.Week(start, p.Week), f.WeekTitle(start, p.Week)
		},
	},
	Day: {
		identifier: func(_ calendar.Calendar, d calendar.Date) Identifier {
			return Identifier{int(d.Month()), d.Day(), d.Year()}
		},
		sameLabel: func(_ calendar.Calendar, a, b DatePeriod) bool {
			return a.StartDate.Equal(b.StartDate)
		},
		label: func(_ calendar.Calendar, f Formatter, p DatePeriod) (string, string) {
			text := f.Day(p.StartDate)
			return text, text
		},
	},
}

// displayYear names a fiscal year the way people read it: FY starting in
// April 2022 is "2023".
func displayYear(cal calendar.Calendar, fiscalYear int) int {
	return fiscalYear + cal.FiscalYearAdjustment()
}

func policyFor(t Type) policy {
	if !t.Valid() {
		panic("granularity: invalid type " + t.String())
	}
	return policies[t]
}

package selection

import (
	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/granularity"
)

// CurrentPeriod returns the period of level t containing date, if any of it
// lies in available. A day must lie wholly inside available; coarser
// periods qualify when either edge does.
func CurrentPeriod(cal calendar.Calendar, t granularity.Type, date calendar.Date, available calendar.PeriodDates) (calendar.PeriodDates, bool) {
	var p calendar.PeriodDates
	switch t {
	case granularity.Day:
		p = calendar.PeriodDates{Start: date, End: cal.NextDay(date)}
		return p, available.Contains(p.Start)
	case granularity.Week:
		p = cal.WeekPeriod(date)
	case granularity.Month:
		p = cal.MonthPeriod(date)
	case granularity.Quarter:
		p = cal.QuarterPeriod(date)
	case granularity.Year:
		p = cal.YearPeriod(date)
	default:
		return calendar.PeriodDates{}, false
	}

	startAvailable := available.Contains(p.Start)
	endAvailable := p.End.After(available.Start) && p.End.BeforeOrEqual(available.End)
	return p, startAvailable || endAvailable
}

// LastPeriods returns the window made of the count most recent periods of
// unit, the one containing date included. count below 1 counts as 1.
func LastPeriods(cal calendar.Calendar, unit granularity.Type, count int, date calendar.Date) (calendar.PeriodDates, bool) {
	n := count - 1
	if n < 0 {
		n = 0
	}
	switch unit {
	case granularity.Day:
		return cal.LastDayPeriod(n, date), true
	case granularity.Week:
		return cal.LastWeekPeriod(n, date), true
	case granularity.Month:
		return cal.LastMonthPeriod(n, date), true
	case granularity.Quarter:
		return cal.LastQuarterPeriod(n, date), true
	case granularity.Year:
		return cal.LastYearPeriod(n, date), true
	}
	return calendar.PeriodDates{}, false
}

package granularity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timeline-engine/calendar"
)

// DatePeriod is one cell of a level: the half-open range [StartDate, EndDate)
// plus its grouping metadata.
//
// Fraction is the share of the unsplit period this fragment covers, in
// (0, 1]. Index is the sum of the fractions of every period before this one,
// so unsplit periods sit at 0, 1, 2... and a fragment at 3.4 is the tail of
// period 3. Index is derived by the owning Granularity and never set by
// callers.
type DatePeriod struct {
	StartDate  calendar.Date   `json:"start_date"`
	EndDate    calendar.Date   `json:"end_date"`
	Fraction   decimal.Decimal `json:"fraction"`
	Index      decimal.Decimal `json:"index"`
	Identifier Identifier      `json:"identifier"`
	Week       calendar.Week   `json:"week"`
	Year       int             `json:"year"`
	Month      time.Month      `json:"month"`

	// Origin is the position the period had when the level was built.
	// Fragments produced by Split share it, which is how Merge finds them.
	Origin int `json:"origin"`
}

// Dates returns the period's range.
func (p DatePeriod) Dates() calendar.PeriodDates {
	return calendar.PeriodDates{Start: p.StartDate, End: p.EndDate}
}

// Days is the period length in days.
func (p DatePeriod) Days() int { return calendar.DaysBetween(p.StartDate, p.EndDate) }

// Contains reports whether d lies in [StartDate, EndDate).
func (p DatePeriod) Contains(d calendar.Date) bool { return p.Dates().Contains(d) }

// IsFragment is true when the period is a piece of a split period.
func (p DatePeriod) IsFragment() bool { return !p.Fraction.Equal(decimal.NewFromInt(1)) }

// End returns Index + Fraction, the coordinate where the period ends.
func (p DatePeriod) End() decimal.Decimal { return p.Index.Add(p.Fraction) }

package selection

import (
	"github.com/shopspring/decimal"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/granularity"
)

// DateRatio is the share of p's days that lie before date, or after it when
// fromStart is false. A zero-length period yields zero.
func DateRatio(p granularity.DatePeriod, date calendar.Date, fromStart bool) decimal.Decimal {
	total := p.Days()
	if total == 0 {
		return decimal.Zero
	}
	ratio := decimal.NewFromInt(int64(calendar.DaysBetween(p.StartDate, date))).
		Div(decimal.NewFromInt(int64(total)))
	if fromStart {
		return ratio
	}
	return decimal.NewFromInt(1).Sub(ratio)
}

// tailFraction is the fraction the fragment [date, p.EndDate) takes over
// when p is cut at date.
func tailFraction(p granularity.DatePeriod, date calendar.Date) decimal.Decimal {
	return p.Fraction.Mul(DateRatio(p, date, false))
}

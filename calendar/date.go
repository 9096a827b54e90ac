package calendar

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Civil day abstraction (every period boundary is a Date)
// =============================================================================

// DateLayout is the wire format for dates in settings, storage and the API.
const DateLayout = "2006-01-02"

// Date is a calendar day held at UTC midnight. Day arithmetic on it never
// drifts across DST transitions.
type Date struct {
	Time time.Time
}

// Constructors

// NewDate builds a Date. Out-of-range months and days are normalized the
// way time.Date does (month 13 is January of the next year).
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar day in t's own location.
func FromTime(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date { return FromTime(time.Now()) }

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return FromTime(t), nil
}

// MustParseDate is ParseDate for literals in tests and presets.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return NewDate(d.Year(), d.Month(), d.Day()+n) }
func (d Date) AddMonths(n int) Date { return NewDate(d.Year(), d.Month()+time.Month(n), d.Day()) }

// Properties
func (d Date) Year() int              { return d.Time.Year() }
func (d Date) Month() time.Month      { return d.Time.Month() }
func (d Date) Day() int               { return d.Time.Day() }
func (d Date) Weekday() time.Weekday  { return d.Time.Weekday() }
func (d Date) IsZero() bool           { return d.Time.IsZero() }
func (d Date) String() string         { return d.Time.Format(DateLayout) }

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// DATE UTILITIES
// =============================================================================

// DaysBetween returns the signed number of days from -> to.
func DaysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

// DaysInMonth returns the length of month in year.
func DaysInMonth(year int, month time.Month) int {
	return NewDate(year, month+1, 0).Day()
}

// Days lists every day of [start, end] inclusive. An inverted range yields nil.
func Days(start, end Date) []Date {
	if end.Before(start) {
		return nil
	}
	days := make([]Date, 0, DaysBetween(start, end)+1)
	for current := start; current.BeforeOrEqual(end); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Bounds returns the earliest and latest of dates. ok is false for an empty
// input.
func Bounds(dates []Date) (first, last Date, ok bool) {
	if len(dates) == 0 {
		return Date{}, Date{}, false
	}
	first, last = dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	return first, last, true
}

// PeriodDates is a half-open [Start, End) range of days.
type PeriodDates struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Contains reports whether d lies in [Start, End).
func (p PeriodDates) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.Before(p.End)
}

// Days returns the length of the range in days.
func (p PeriodDates) Days() int { return DaysBetween(p.Start, p.End) }

func (p PeriodDates) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + ")"
}

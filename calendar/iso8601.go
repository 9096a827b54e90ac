package calendar

import "time"

// ISO8601 numbers weeks by ISO-8601: weeks start on Monday and week 1 is the
// week containing the year's first Thursday, so the first and last days of a
// calendar year may belong to a neighbouring week-year. Fiscal arithmetic is
// that of a January 1 fiscal year; the configured week start is ignored.
type ISO8601 struct {
	*Fiscal
	firstFullWeek map[int]Date
}

func NewISO8601() *ISO8601 {
	return &ISO8601{
		Fiscal:        NewFiscal(ISO8601Config()),
		firstFullWeek: make(map[int]Date),
	}
}

func (c *ISO8601) DetermineWeek(d Date) Week {
	year, number := d.Time.ISOWeek()
	return Week{Number: number, Year: year}
}

// DateOfFirstWeek is the Monday starting ISO week 1 of year.
func (c *ISO8601) DateOfFirstWeek(year int) Date {
	return c.DateOfFirstFullWeek(year)
}

// DateOfFirstFullWeek is the Monday of the week containing January 4th. It
// can fall in the previous December.
func (c *ISO8601) DateOfFirstFullWeek(year int) Date {
	if d, ok := c.firstFullWeek[year]; ok {
		return d
	}
	jan4 := NewDate(year, time.January, 4)
	offset := (int(jan4.Weekday()) + 6) % 7
	d := jan4.AddDays(-offset)
	c.firstFullWeek[year] = d
	return d
}

// WeekPeriod is the Monday-to-Monday week containing d. ISO weeks run
// across the turn of the year.
func (c *ISO8601) WeekPeriod(d Date) PeriodDates {
	start := d.AddDays(-((int(d.Weekday()) + 6) % 7))
	return PeriodDates{Start: start, End: start.AddDays(7)}
}

func (c *ISO8601) LastWeekPeriod(n int, d Date) PeriodDates {
	return lastWeeks(c.WeekPeriod, n, d)
}

// IsChanged is true unless cfg also asks for ISO-8601 numbering.
func (c *ISO8601) IsChanged(cfg Config) bool {
	return cfg.standard() != WeekStandardISO8601
}

/*
calendar.go - Fiscal-aware date arithmetic

PURPOSE:
  Every period boundary the granularity engine produces comes from here.
  A Calendar answers "which fiscal year / quarter / month / week does this
  day belong to" and "where does the period containing this day start and
  end", under a configurable first day of week and fiscal year start.

KEY CONCEPTS:
  Fiscal anchor     Date(year, FiscalStartMonth, FiscalStartDay). A day before
                    the anchor belongs to the previous fiscal year.
  Month anchor      FiscalStartDay of a month, or its last day when the month
                    is shorter. Fiscal months and quarters start on these.
  First full week   The first day of a calendar year that falls on the anchor
                    weekday. Days of January before it form week 1; weeks
                    then run every seven days to December 31.
  Periods           Always half-open [Start, End).

CACHING:
  The first-week and first-full-week anchors are memoized per year inside
  the Calendar value. Nothing invalidates them: a configuration change
  builds a new Calendar (see IsChanged and Factory).

  A Calendar is not safe for concurrent use because of these caches.

SEE ALSO:
  - iso8601.go: ISO week numbering variant
  - factory.go: picks the variant from a Config
*/
package calendar

import "time"

// Calendar is the date arithmetic the granularity and selection engines
// depend on. Fiscal and ISO8601 implement it.
type Calendar interface {
	Config() Config

	DetermineYear(d Date) int
	DetermineMonth(d Date) time.Month
	DetermineWeek(d Date) Week
	FiscalQuarter(d Date) (quarter, year int)
	FiscalYearAdjustment() int

	DateOfFirstWeek(year int) Date
	DateOfFirstFullWeek(year int) Date

	QuarterStartDate(year, quarterIndex int) Date
	QuarterEndDate(d Date) Date
	QuarterPeriod(d Date) PeriodDates
	MonthPeriod(d Date) PeriodDates
	YearPeriod(d Date) PeriodDates
	WeekPeriod(d Date) PeriodDates

	LastDayPeriod(n int, d Date) PeriodDates
	LastWeekPeriod(n int, d Date) PeriodDates
	LastMonthPeriod(n int, d Date) PeriodDates
	LastQuarterPeriod(n int, d Date) PeriodDates
	LastYearPeriod(n int, d Date) PeriodDates

	NextDay(d Date) Date
	IsChanged(cfg Config) bool
}

// Week is a week number within a week-numbering year.
type Week struct {
	Number int `json:"number"`
	Year   int `json:"year"`
}

// =============================================================================
// FISCAL - The default calendar
// =============================================================================

// Fiscal is the default Calendar.
type Fiscal struct {
	cfg           Config
	firstWeek     map[int]Date
	firstFullWeek map[int]Date
}

// NewFiscal builds a default calendar from cfg.
func NewFiscal(cfg Config) *Fiscal {
	cfg.WeekStandard = cfg.standard()
	cfg.WeekAnchor = cfg.anchor()
	return &Fiscal{
		cfg:           cfg,
		firstWeek:     make(map[int]Date),
		firstFullWeek: make(map[int]Date),
	}
}

func (c *Fiscal) Config() Config { return c.cfg }

func (c *Fiscal) anchorDate(year int) Date {
	return c.monthAnchor(year, c.cfg.FiscalStartMonth)
}

// FiscalYearAdjustment is the offset from a fiscal year's starting calendar
// year to its display year: 0 when the fiscal year starts on January 1,
// otherwise 1 (FY starting April 2022 is shown as 2023).
func (c *Fiscal) FiscalYearAdjustment() int {
	if c.cfg.FiscalStartMonth == time.January && c.cfg.FiscalStartDay == 1 {
		return 0
	}
	return 1
}

// DetermineYear returns the fiscal year d belongs to, named by the calendar
// year it starts in.
func (c *Fiscal) DetermineYear(d Date) int {
	if d.AfterOrEqual(c.anchorDate(d.Year())) {
		return d.Year()
	}
	return d.Year() - 1
}

// DetermineMonth returns d's month, shifted back one month when d is before
// the fiscal start day of its calendar month (the last day in months too
// short to have it).
func (c *Fiscal) DetermineMonth(d Date) time.Month {
	m := d.Month()
	if d.Day() >= c.monthAnchor(d.Year(), m).Day() {
		return m
	}
	if m == time.January {
		return time.December
	}
	return m - 1
}

// DetermineWeek numbers weeks within the calendar year. Days of January
// before the first full week are week 1 and the first full week is week 2;
// when January 1 starts the first full week, that week is week 1.
func (c *Fiscal) DetermineWeek(d Date) Week {
	year := d.Year()
	fullWeek := c.DateOfFirstFullWeek(year)
	if d.Before(fullWeek) {
		return Week{Number: 1, Year: year}
	}

	number := DaysBetween(fullWeek, d)/7 + 1
	if NewDate(year, time.January, 1).Before(fullWeek) {
		number++
	}
	return Week{Number: number, Year: year}
}

// DateOfFirstWeek returns the fiscal anchor of year.
func (c *Fiscal) DateOfFirstWeek(year int) Date {
	if d, ok := c.firstWeek[year]; ok {
		return d
	}
	d := c.anchorDate(year)
	c.firstWeek[year] = d
	return d
}

// DateOfFirstFullWeek returns the first day of year falling on the anchor
// weekday.
func (c *Fiscal) DateOfFirstFullWeek(year int) Date {
	if d, ok := c.firstFullWeek[year]; ok {
		return d
	}

	weekday := c.cfg.WeekStart
	if c.cfg.WeekAnchor == WeekAnchorFiscalStart {
		weekday = c.anchorDate(year).Weekday()
	}

	d := NewDate(year, time.January, 1)
	for d.Weekday() != weekday {
		d = c.NextDay(d)
	}
	c.firstFullWeek[year] = d
	return d
}

// =============================================================================
// QUARTERS
// =============================================================================

// QuarterStartDate returns the first day of the quarterIndex-th (0-based)
// quarter of fiscal year. Indices outside 0..3 roll into neighbouring years.
func (c *Fiscal) QuarterStartDate(year, quarterIndex int) Date {
	return c.monthAnchor(year, c.cfg.FiscalStartMonth+time.Month(3*quarterIndex))
}

// quarterIndex walks back from the last quarter of d's fiscal year until it
// finds the quarter that starts on or before d.
func (c *Fiscal) quarterIndex(d Date) (index, year int) {
	index, year = 3, c.DetermineYear(d)
	for d.Before(c.QuarterStartDate(year, index)) {
		if index > 0 {
			index--
		} else {
			index = 3
			year--
		}
	}
	return index, year
}

// FiscalQuarter returns the 1-based fiscal quarter of d and its fiscal year.
func (c *Fiscal) FiscalQuarter(d Date) (quarter, year int) {
	index, year := c.quarterIndex(d)
	return index + 1, year
}

// QuarterEndDate returns the exclusive end of the fiscal quarter containing d.
func (c *Fiscal) QuarterEndDate(d Date) Date {
	index, year := c.quarterIndex(d)
	return c.QuarterStartDate(year, index+1)
}

func (c *Fiscal) QuarterPeriod(d Date) PeriodDates {
	index, year := c.quarterIndex(d)
	return PeriodDates{
		Start: c.QuarterStartDate(year, index),
		End:   c.QuarterStartDate(year, index+1),
	}
}

// =============================================================================
// MONTH / YEAR / WEEK PERIODS
// =============================================================================

// MonthPeriod returns the fiscal month containing d. Fiscal months start on
// FiscalStartDay of each calendar month, or on the last day of months too
// short to have it.
func (c *Fiscal) MonthPeriod(d Date) PeriodDates {
	month := d.Month()
	if d.Day() < c.monthAnchor(d.Year(), month).Day() {
		month--
	}
	return PeriodDates{
		Start: c.monthAnchor(d.Year(), month),
		End:   c.monthAnchor(d.Year(), month+1),
	}
}

func (c *Fiscal) monthAnchor(year int, month time.Month) Date {
	first := NewDate(year, month, 1)
	day := c.cfg.FiscalStartDay
	if n := DaysInMonth(first.Year(), first.Month()); day > n {
		day = n
	}
	return NewDate(first.Year(), first.Month(), day)
}

func (c *Fiscal) YearPeriod(d Date) PeriodDates {
	year := c.DetermineYear(d)
	return PeriodDates{Start: c.anchorDate(year), End: c.anchorDate(year + 1)}
}

// WeekPeriod returns the week containing d as DetermineWeek numbers it.
// Weeks start every seven days from DateOfFirstFullWeek, so on the fiscal
// anchor's weekday when weeks are anchored there. The days of January
// before the first full week form a short week 1 and the last week of a
// year ends on December 31.
func (c *Fiscal) WeekPeriod(d Date) PeriodDates {
	year := d.Year()
	fullWeek := c.DateOfFirstFullWeek(year)
	if d.Before(fullWeek) {
		return PeriodDates{Start: NewDate(year, time.January, 1), End: fullWeek}
	}

	start := d.AddDays(-(DaysBetween(fullWeek, d) % 7))
	end := start.AddDays(7)
	if next := NewDate(year+1, time.January, 1); end.After(next) {
		end = next
	}
	return PeriodDates{Start: start, End: end}
}

// =============================================================================
// LAST-N WINDOWS - "the current period and the n before it"
// =============================================================================

func (c *Fiscal) LastDayPeriod(n int, d Date) PeriodDates {
	return PeriodDates{Start: d.AddDays(-n), End: d.AddDays(1)}
}

func (c *Fiscal) LastWeekPeriod(n int, d Date) PeriodDates {
	return lastWeeks(c.WeekPeriod, n, d)
}

// lastWeeks steps back n weeks of week from the one containing d.
func lastWeeks(week func(Date) PeriodDates, n int, d Date) PeriodDates {
	p := week(d)
	for i := 0; i < n; i++ {
		p.Start = week(p.Start.AddDays(-1)).Start
	}
	return p
}

func (c *Fiscal) LastMonthPeriod(n int, d Date) PeriodDates {
	current := c.MonthPeriod(d)
	return PeriodDates{
		Start: c.monthAnchor(current.Start.Year(), current.Start.Month()-time.Month(n)),
		End:   current.End,
	}
}

func (c *Fiscal) LastQuarterPeriod(n int, d Date) PeriodDates {
	index, year := c.quarterIndex(d)
	return PeriodDates{
		Start: c.QuarterStartDate(year, index-n),
		End:   c.QuarterStartDate(year, index+1),
	}
}

func (c *Fiscal) LastYearPeriod(n int, d Date) PeriodDates {
	year := c.DetermineYear(d)
	return PeriodDates{Start: c.anchorDate(year - n), End: c.anchorDate(year + 1)}
}

func (c *Fiscal) NextDay(d Date) Date { return d.AddDays(1) }

// IsChanged reports whether cfg needs a different Calendar. A non-default
// week standard always forces a rebuild.
func (c *Fiscal) IsChanged(cfg Config) bool {
	return c.cfg.FiscalStartMonth != cfg.FiscalStartMonth ||
		c.cfg.FiscalStartDay != cfg.FiscalStartDay ||
		c.cfg.WeekStart != cfg.WeekStart ||
		c.cfg.WeekAnchor != cfg.anchor() ||
		cfg.standard() != WeekStandardDefault
}

package granularity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timeline-engine/calendar"
)

// Label is the display text of a run of periods. ID is the Index of the
// first period of the run.
type Label struct {
	ID    decimal.Decimal `json:"id"`
	Text  string          `json:"text"`
	Title string          `json:"title"`
}

// LabelStrip is the labels of Level's periods grouped by Header's rule.
// Header == Level is the cell strip itself.
type LabelStrip struct {
	Level  Type    `json:"level"`
	Header Type    `json:"header"`
	Labels []Label `json:"labels"`
}

// Formatter turns date components into display text. Locale-aware
// implementations live outside this package.
type Formatter interface {
	Year(year int) string
	Quarter(quarter, year int) string
	Month(month time.Month, year int) string
	Week(weekStart calendar.Date, week calendar.Week) string
	WeekTitle(weekStart calendar.Date, week calendar.Week) string
	Day(d calendar.Date) string
}

// =============================================================================
// DEFAULT FORMATTER - English, configurable year/quarter/month styles
// =============================================================================

const (
	YearFormatFull  = "yyyy"
	YearFormatShort = "yy"

	QuarterFormatShort = "QX"
	QuarterFormatLong  = "Quarter X"

	MonthFormatShort = "MMM"
	MonthFormatLong  = "MMMM"
)

// DefaultFormatter formats labels in English.
type DefaultFormatter struct {
	YearFormat    string `json:"year_format" yaml:"year_format" validate:"omitempty,oneof=yyyy yy"`
	QuarterFormat string `json:"quarter_format" yaml:"quarter_format" validate:"omitempty,oneof=QX 'Quarter X'"`
	MonthFormat   string `json:"month_format" yaml:"month_format" validate:"omitempty,oneof=MMM MMMM"`
	DayOfWeek     bool   `json:"day_of_week" yaml:"day_of_week"`
}

func (f DefaultFormatter) Year(year int) string {
	if f.YearFormat == YearFormatShort {
		return fmt.Sprintf("'%02d", year%100)
	}
	return fmt.Sprintf("%d", year)
}

func (f DefaultFormatter) Quarter(quarter, year int) string {
	if f.QuarterFormat == QuarterFormatLong {
		return fmt.Sprintf("Quarter %d %s", quarter, f.Year(year))
	}
	return fmt.Sprintf("Q%d %s", quarter, f.Year(year))
}

func (f DefaultFormatter) monthName(m time.Month) string {
	if f.MonthFormat == MonthFormatLong {
		return m.String()
	}
	return m.String()[:3]
}

func (f DefaultFormatter) Month(month time.Month, year int) string {
	return f.monthName(month) + " " + f.Year(year)
}

func (f DefaultFormatter) Week(weekStart calendar.Date, _ calendar.Week) string {
	return fmt.Sprintf("%s %d %s", f.monthName(weekStart.Month()), weekStart.Day(), f.Year(weekStart.Year()))
}

func (f DefaultFormatter) WeekTitle(weekStart calendar.Date, week calendar.Week) string {
	return fmt.Sprintf("Week %d %s (%s)", week.Number, f.Year(week.Year), f.Week(weekStart, week))
}

func (f DefaultFormatter) Day(d calendar.Date) string {
	text := fmt.Sprintf("%s %d %s", f.monthName(d.Month()), d.Day(), f.Year(d.Year()))
	if f.DayOfWeek {
		return d.Weekday().String()[:3] + " " + text
	}
	return text
}

// RangeText describes [start, end) for the selected-range caption: the
// inclusive last day is shown, and a single day collapses to one date.
func RangeText(f Formatter, start, end calendar.Date) string {
	last := end.AddDays(-1)
	if !last.After(start) {
		return f.Day(start)
	}
	return f.Day(start) + " - " + f.Day(last)
}

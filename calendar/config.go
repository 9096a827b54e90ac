package calendar

import "time"

// WeekStandard selects how week numbers are assigned.
type WeekStandard string

const (
	WeekStandardDefault WeekStandard = "default" // first full week anchored on the configured weekday
	WeekStandardISO8601 WeekStandard = "iso8601" // week containing the first Thursday is week 1
)

// WeekAnchor selects which weekday the first full week of a year starts on
// for the default week standard.
type WeekAnchor string

const (
	WeekAnchorFirstDayOfWeek WeekAnchor = "first_day_of_week" // Config.WeekStart
	WeekAnchorFiscalStart    WeekAnchor = "fiscal_start"      // weekday of the fiscal year's first day
)

// Config parameterizes a Calendar. It is immutable for the lifetime of the
// Calendar built from it; a changed Config means a new Calendar.
//
// FiscalStartDay must already be clamped to the length of FiscalStartMonth.
// See factory.ClampFiscalDay.
type Config struct {
	WeekStart        time.Weekday `json:"week_start" yaml:"week_start"`
	FiscalStartMonth time.Month   `json:"fiscal_start_month" yaml:"fiscal_start_month"`
	FiscalStartDay   int          `json:"fiscal_start_day" yaml:"fiscal_start_day"`
	WeekStandard     WeekStandard `json:"week_standard" yaml:"week_standard"`
	WeekAnchor       WeekAnchor   `json:"week_anchor" yaml:"week_anchor"`
}

// DefaultConfig is a Sunday-based calendar with the fiscal year on January 1.
func DefaultConfig() Config {
	return Config{
		WeekStart:        time.Sunday,
		FiscalStartMonth: time.January,
		FiscalStartDay:   1,
		WeekStandard:     WeekStandardDefault,
		WeekAnchor:       WeekAnchorFirstDayOfWeek,
	}
}

// ISO8601Config is the fixed configuration of the ISO-8601 calendar.
func ISO8601Config() Config {
	return Config{
		WeekStart:        time.Monday,
		FiscalStartMonth: time.January,
		FiscalStartDay:   1,
		WeekStandard:     WeekStandardISO8601,
		WeekAnchor:       WeekAnchorFirstDayOfWeek,
	}
}

func (c Config) standard() WeekStandard {
	if c.WeekStandard == "" {
		return WeekStandardDefault
	}
	return c.WeekStandard
}

func (c Config) anchor() WeekAnchor {
	if c.WeekAnchor == "" {
		return WeekAnchorFirstDayOfWeek
	}
	return c.WeekAnchor
}

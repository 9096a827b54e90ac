package timeline

import (
	"time"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/granularity"
)

// ForceMode makes a timeline select a period by itself whenever it is built
// or refreshed.
type ForceMode string

const (
	ForceNone    ForceMode = ""
	ForceCurrent ForceMode = "current" // the active-level period containing today
	ForceLatest  ForceMode = "latest"  // the Count most recent periods of Unit
)

// ForceSelection configures the automatic selection.
type ForceSelection struct {
	Mode  ForceMode        `json:"mode,omitempty" yaml:"mode" validate:"omitempty,oneof=current latest"`
	Count int              `json:"count,omitempty" yaml:"count" validate:"gte=0,lte=1000"`
	Unit  granularity.Type `json:"unit" yaml:"unit"`
}

// Settings is everything a timeline is built from besides its dates.
type Settings struct {
	Calendar       calendar.Config              `json:"calendar" yaml:"calendar"`
	Granularity    granularity.Type             `json:"granularity" yaml:"granularity"`
	Labels         granularity.DefaultFormatter `json:"labels" yaml:"labels"`
	ForceSelection ForceSelection               `json:"force_selection" yaml:"force_selection"`
}

// DefaultSettings is a month-level timeline on the default calendar.
func DefaultSettings() Settings {
	return Settings{
		Calendar:    calendar.DefaultConfig(),
		Granularity: granularity.Month,
		Labels: granularity.DefaultFormatter{
			YearFormat:    granularity.YearFormatFull,
			QuarterFormat: granularity.QuarterFormatShort,
			MonthFormat:   granularity.MonthFormatShort,
		},
	}
}

// Validate checks the invariants the calendar relies on. The fiscal start
// day must already be clamped to its month.
func (s Settings) Validate() error {
	if !s.Granularity.Valid() {
		return ErrInvalidGranularity
	}
	cfg := s.Calendar
	if cfg.WeekStart < time.Sunday || cfg.WeekStart > time.Saturday {
		return &SettingsError{Field: "calendar.week_start", Reason: "must be 0..6"}
	}
	if cfg.FiscalStartMonth < time.January || cfg.FiscalStartMonth > time.December {
		return &SettingsError{Field: "calendar.fiscal_start_month", Reason: "must be 1..12"}
	}
	if cfg.FiscalStartDay < 1 || cfg.FiscalStartDay > calendar.DaysInMonth(2023, cfg.FiscalStartMonth) {
		return &SettingsError{Field: "calendar.fiscal_start_day", Reason: "not a day of the fiscal start month"}
	}
	if s.ForceSelection.Mode == ForceLatest && !s.ForceSelection.Unit.Valid() {
		return &SettingsError{Field: "force_selection.unit", Reason: "invalid granularity"}
	}
	return nil
}

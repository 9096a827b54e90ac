/*
Package factory provides JSON to Go timeline settings conversion.

PURPOSE:
  Converts JSON settings documents into timeline.Settings. Settings arrive
  from request bodies, stored configs and the CLI; the factory validates
  them, fills defaults and clamps the fiscal start day to its month so the
  calendar never sees an impossible date.

JSON SCHEMA:
  {
    "granularity": "month",
    "calendar": {
      "week_start": "monday",
      "fiscal_start_month": 4,
      "fiscal_start_day": 6,
      "week_standard": "default",
      "week_anchor": "first_day_of_week"
    },
    "labels": {
      "year_format": "yyyy",
      "quarter_format": "QX",
      "month_format": "MMM",
      "day_of_week": false
    },
    "force_selection": {"mode": "latest", "count": 3, "unit": "month"}
  }

  Every field is optional. week_start also accepts 0..6 as a string.

USAGE:
  f := NewSettingsFactory()
  settings, err := f.ParseSettings(jsonString)

  // From a named preset
  settings, err := f.Preset("uk_tax")

SEE ALSO:
  - timeline/settings.go: Settings type
  - calendar/config.go: Config type
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/granularity"
	"github.com/warp/timeline-engine/timeline"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SettingsJSON is the JSON representation of timeline settings.
type SettingsJSON struct {
	Granularity    string              `json:"granularity,omitempty" validate:"omitempty,granularity"`
	Calendar       *CalendarJSON       `json:"calendar,omitempty"`
	Labels         *LabelsJSON         `json:"labels,omitempty"`
	ForceSelection *ForceSelectionJSON `json:"force_selection,omitempty"`
}

// CalendarJSON represents calendar configuration.
type CalendarJSON struct {
	WeekStart        string `json:"week_start,omitempty" validate:"omitempty,weekday"`
	FiscalStartMonth int    `json:"fiscal_start_month,omitempty" validate:"omitempty,min=1,max=12"`
	FiscalStartDay   int    `json:"fiscal_start_day,omitempty" validate:"omitempty,min=1,max=31"`
	WeekStandard     string `json:"week_standard,omitempty" validate:"omitempty,oneof=default iso8601"`
	WeekAnchor       string `json:"week_anchor,omitempty" validate:"omitempty,oneof=first_day_of_week fiscal_start"`
}

// LabelsJSON represents label formats.
type LabelsJSON struct {
	YearFormat    string `json:"year_format,omitempty" validate:"omitempty,oneof=yyyy yy"`
	QuarterFormat string `json:"quarter_format,omitempty" validate:"omitempty,oneof=QX 'Quarter X'"`
	MonthFormat   string `json:"month_format,omitempty" validate:"omitempty,oneof=MMM MMMM"`
	DayOfWeek     bool   `json:"day_of_week,omitempty"`
}

// ForceSelectionJSON represents the automatic selection.
type ForceSelectionJSON struct {
	Mode  string `json:"mode" validate:"required,oneof=current latest"`
	Count int    `json:"count,omitempty" validate:"gte=0,lte=1000"`
	Unit  string `json:"unit,omitempty" validate:"omitempty,granularity"`
}

// =============================================================================
// SETTINGS FACTORY
// =============================================================================

// SettingsFactory converts JSON settings to timeline.Settings.
type SettingsFactory struct {
	validate *validator.Validate
}

// NewSettingsFactory creates a new settings factory.
func NewSettingsFactory() *SettingsFactory {
	v := validator.New()
	v.RegisterValidation("granularity", isGranularity)
	v.RegisterValidation("weekday", isWeekday)

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &SettingsFactory{validate: v}
}

// ParseSettings parses a JSON string into Settings.
func (f *SettingsFactory) ParseSettings(jsonStr string) (timeline.Settings, error) {
	var sj SettingsJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return timeline.Settings{}, fmt.Errorf("failed to parse settings JSON: %w: %v", timeline.ErrInvalidSettings, err)
	}
	return f.FromJSON(sj)
}

// FromJSON validates sj and converts it, starting from
// timeline.DefaultSettings for every missing field.
func (f *SettingsFactory) FromJSON(sj SettingsJSON) (timeline.Settings, error) {
	if err := f.Validate(sj); err != nil {
		return timeline.Settings{}, err
	}

	s := timeline.DefaultSettings()
	if sj.Granularity != "" {
		s.Granularity, _ = granularity.ParseType(sj.Granularity)
	}

	if cj := sj.Calendar; cj != nil {
		if cj.WeekStandard == string(calendar.WeekStandardISO8601) {
			s.Calendar = calendar.ISO8601Config()
		} else {
			if cj.WeekStart != "" {
				s.Calendar.WeekStart, _ = parseWeekday(cj.WeekStart)
			}
			if cj.FiscalStartMonth != 0 {
				s.Calendar.FiscalStartMonth = time.Month(cj.FiscalStartMonth)
			}
			if cj.FiscalStartDay != 0 {
				s.Calendar.FiscalStartDay = cj.FiscalStartDay
			}
			if cj.WeekAnchor != "" {
				s.Calendar.WeekAnchor = calendar.WeekAnchor(cj.WeekAnchor)
			}
		}
		s.Calendar.FiscalStartDay = ClampFiscalDay(s.Calendar.FiscalStartMonth, s.Calendar.FiscalStartDay)
	}

	if lj := sj.Labels; lj != nil {
		if lj.YearFormat != "" {
			s.Labels.YearFormat = lj.YearFormat
		}
		if lj.QuarterFormat != "" {
			s.Labels.QuarterFormat = lj.QuarterFormat
		}
		if lj.MonthFormat != "" {
			s.Labels.MonthFormat = lj.MonthFormat
		}
		s.Labels.DayOfWeek = lj.DayOfWeek
	}

	if fj := sj.ForceSelection; fj != nil {
		s.ForceSelection = timeline.ForceSelection{
			Mode:  timeline.ForceMode(fj.Mode),
			Count: fj.Count,
		}
		switch {
		case fj.Unit != "":
			s.ForceSelection.Unit, _ = granularity.ParseType(fj.Unit)
		case fj.Mode == string(timeline.ForceLatest):
			return timeline.Settings{}, &timeline.SettingsError{Field: "force_selection.unit", Reason: "is required"}
		}
	}

	return s, s.Validate()
}

// Validate checks sj's struct tags. The first failing field is returned as
// a *timeline.SettingsError.
func (f *SettingsFactory) Validate(sj SettingsJSON) error {
	err := f.validate.Struct(sj)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", timeline.ErrInvalidSettings, err)
	}
	first := verrs[0]
	field := strings.TrimPrefix(first.Namespace(), "SettingsJSON.")
	return &timeline.SettingsError{Field: field, Reason: describe(first)}
}

// ToJSON converts Settings to SettingsJSON.
func (f *SettingsFactory) ToJSON(s timeline.Settings) SettingsJSON {
	sj := SettingsJSON{
		Granularity: s.Granularity.String(),
		Calendar: &CalendarJSON{
			WeekStart:        strings.ToLower(s.Calendar.WeekStart.String()),
			FiscalStartMonth: int(s.Calendar.FiscalStartMonth),
			FiscalStartDay:   s.Calendar.FiscalStartDay,
			WeekStandard:     string(s.Calendar.WeekStandard),
			WeekAnchor:       string(s.Calendar.WeekAnchor),
		},
		Labels: &LabelsJSON{
			YearFormat:    s.Labels.YearFormat,
			QuarterFormat: s.Labels.QuarterFormat,
			MonthFormat:   s.Labels.MonthFormat,
			DayOfWeek:     s.Labels.DayOfWeek,
		},
	}
	if s.ForceSelection.Mode != timeline.ForceNone {
		sj.ForceSelection = &ForceSelectionJSON{
			Mode:  string(s.ForceSelection.Mode),
			Count: s.ForceSelection.Count,
			Unit:  s.ForceSelection.Unit.String(),
		}
	}
	return sj
}

// ClampFiscalDay pins day into [1, days in month], using a non-leap year so
// a February 29 start becomes February 28.
func ClampFiscalDay(month time.Month, day int) int {
	return max(1, min(calendar.DaysInMonth(2023, month), day))
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseWeekday(s string) (time.Weekday, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, false
		}
		return time.Weekday(n), true
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s2 := strings.ToLower(s); s2 == name || s2 == name[:3] {
			return d, true
		}
	}
	return 0, false
}

func isWeekday(fl validator.FieldLevel) bool {
	_, ok := parseWeekday(fl.Field().String())
	return ok
}

func isGranularity(fl validator.FieldLevel) bool {
	_, err := granularity.ParseType(fl.Field().String())
	return err == nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "granularity":
		return "must be one of: year quarter month week day"
	case "weekday":
		return "must be a weekday name or 0..6"
	}
	return "failed " + fe.Tag()
}

// =============================================================================
// PRESETS
// =============================================================================

var presets = map[string]string{
	"default": `{"granularity": "month"}`,
	"iso8601": `{"granularity": "week", "calendar": {"week_standard": "iso8601"}}`,
	"us_federal": `{
		"granularity": "quarter",
		"calendar": {"week_start": "sunday", "fiscal_start_month": 10, "fiscal_start_day": 1}
	}`,
	"uk_tax": `{
		"granularity": "month",
		"calendar": {"week_start": "monday", "fiscal_start_month": 4, "fiscal_start_day": 6, "week_anchor": "fiscal_start"}
	}`,
	"australia": `{
		"granularity": "quarter",
		"calendar": {"week_start": "monday", "fiscal_start_month": 7, "fiscal_start_day": 1},
		"labels": {"quarter_format": "Quarter X"}
	}`,
	"last_30_days": `{
		"granularity": "day",
		"labels": {"day_of_week": true},
		"force_selection": {"mode": "latest", "count": 30, "unit": "day"}
	}`,
}

// PresetNames lists the available presets, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PresetJSON returns the JSON document of a preset.
func PresetJSON(name string) (string, bool) {
	doc, ok := presets[name]
	return doc, ok
}

// Preset parses a named preset.
func (f *SettingsFactory) Preset(name string) (timeline.Settings, error) {
	doc, ok := presets[name]
	if !ok {
		return timeline.Settings{}, &timeline.SettingsError{Field: "preset", Reason: fmt.Sprintf("unknown preset %q", name)}
	}
	return f.ParseSettings(doc)
}

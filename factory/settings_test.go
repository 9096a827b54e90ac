package factory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/factory"
	"github.com/warp/timeline-engine/granularity"
	"github.com/warp/timeline-engine/timeline"
)

func TestParseSettings_Full(t *testing.T) {
	f := factory.NewSettingsFactory()

	s, err := f.ParseSettings(`{
		"granularity": "Week",
		"calendar": {"week_start": "mon", "fiscal_start_month": 4, "fiscal_start_day": 6, "week_anchor": "fiscal_start"},
		"labels": {"year_format": "yy", "quarter_format": "Quarter X", "month_format": "MMMM", "day_of_week": true},
		"force_selection": {"mode": "latest", "count": 3, "unit": "month"}
	}`)

	require.NoError(t, err)
	assert.Equal(t, granularity.Week, s.Granularity)
	assert.Equal(t, time.Monday, s.Calendar.WeekStart)
	assert.Equal(t, time.April, s.Calendar.FiscalStartMonth)
	assert.Equal(t, 6, s.Calendar.FiscalStartDay)
	assert.Equal(t, calendar.WeekAnchorFiscalStart, s.Calendar.WeekAnchor)
	assert.Equal(t, granularity.QuarterFormatLong, s.Labels.QuarterFormat)
	assert.True(t, s.Labels.DayOfWeek)
	assert.Equal(t, timeline.ForceSelection{Mode: timeline.ForceLatest, Count: 3, Unit: granularity.Month}, s.ForceSelection)
}

func TestParseSettings_Defaults(t *testing.T) {
	s, err := factory.NewSettingsFactory().ParseSettings(`{}`)

	require.NoError(t, err)
	assert.Equal(t, timeline.DefaultSettings(), s)
}

func TestParseSettings_NumericWeekStart(t *testing.T) {
	s, err := factory.NewSettingsFactory().ParseSettings(`{"calendar": {"week_start": "6"}}`)

	require.NoError(t, err)
	assert.Equal(t, time.Saturday, s.Calendar.WeekStart)
}

func TestParseSettings_ClampsFiscalDay(t *testing.T) {
	tests := []struct {
		month, day, want int
	}{
		{2, 30, 28},
		{2, 29, 28},
		{4, 31, 30},
		{12, 31, 31},
	}
	f := factory.NewSettingsFactory()
	for _, tt := range tests {
		s, err := f.FromJSON(factory.SettingsJSON{Calendar: &factory.CalendarJSON{FiscalStartMonth: tt.month, FiscalStartDay: tt.day}})
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.Calendar.FiscalStartDay, "%d/%d", tt.month, tt.day)
	}
	assert.Equal(t, 1, factory.ClampFiscalDay(time.March, -4))
}

func TestParseSettings_ISOIgnoresOtherCalendarFields(t *testing.T) {
	s, err := factory.NewSettingsFactory().ParseSettings(`{"calendar": {"week_standard": "iso8601", "week_start": "friday", "fiscal_start_month": 7}}`)

	require.NoError(t, err)
	assert.Equal(t, calendar.ISO8601Config(), s.Calendar)
}

func TestParseSettings_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		field string
	}{
		{"granularity", `{"granularity": "decade"}`, "granularity"},
		{"weekday", `{"calendar": {"week_start": "someday"}}`, "calendar.week_start"},
		{"month", `{"calendar": {"fiscal_start_month": 13}}`, "calendar.fiscal_start_month"},
		{"standard", `{"calendar": {"week_standard": "us"}}`, "calendar.week_standard"},
		{"month format", `{"labels": {"month_format": "M"}}`, "labels.month_format"},
		{"force mode", `{"force_selection": {"mode": "sometimes"}}`, "force_selection.mode"},
		{"latest without unit", `{"force_selection": {"mode": "latest", "count": 2}}`, "force_selection.unit"},
	}
	f := factory.NewSettingsFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseSettings(tt.json)

			require.Error(t, err)
			assert.ErrorIs(t, err, timeline.ErrInvalidSettings)
			var se *timeline.SettingsError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.field, se.Field)
		})
	}
}

func TestParseSettings_MalformedJSON(t *testing.T) {
	_, err := factory.NewSettingsFactory().ParseSettings(`{"granularity":`)
	assert.ErrorIs(t, err, timeline.ErrInvalidSettings)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := factory.NewSettingsFactory()
	want, err := f.Preset("uk_tax")
	require.NoError(t, err)

	got, err := f.FromJSON(f.ToJSON(want))

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPresets_AllParse(t *testing.T) {
	f := factory.NewSettingsFactory()
	names := factory.PresetNames()
	require.NotEmpty(t, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			s, err := f.Preset(name)
			require.NoError(t, err)
			require.NoError(t, s.Validate())
		})
	}

	_, err := f.Preset("nope")
	assert.ErrorIs(t, err, timeline.ErrInvalidSettings)
}

package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timeline-engine/calendar"
)

func d(s string) calendar.Date { return calendar.MustParseDate(s) }

func fiscalApril() calendar.Config {
	cfg := calendar.DefaultConfig()
	cfg.FiscalStartMonth = time.April
	return cfg
}

// =============================================================================
// FISCAL YEAR / QUARTER / MONTH
// =============================================================================

func TestDetermineYear_FiscalOffset(t *testing.T) {
	cal := calendar.NewFiscal(fiscalApril())

	assert.Equal(t, 2022, cal.DetermineYear(d("2023-02-15")))
	assert.Equal(t, 2022, cal.DetermineYear(d("2023-03-31")))
	assert.Equal(t, 2023, cal.DetermineYear(d("2023-04-01")))
}

func TestDetermineYear_CalendarYear(t *testing.T) {
	cal := calendar.NewFiscal(calendar.DefaultConfig())

	assert.Equal(t, 2023, cal.DetermineYear(d("2023-01-01")))
	assert.Equal(t, 2022, cal.DetermineYear(d("2022-12-31")))
}

func TestFiscalQuarter(t *testing.T) {
	tests := []struct {
		name        string
		cfg         calendar.Config
		date        string
		wantQuarter int
		wantYear    int
	}{
		{"april fiscal, february is Q4", fiscalApril(), "2023-02-15", 4, 2022},
		{"april fiscal, april is Q1", fiscalApril(), "2023-04-01", 1, 2023},
		{"april fiscal, december is Q3", fiscalApril(), "2023-12-31", 3, 2023},
		{"calendar year, may is Q2", calendar.DefaultConfig(), "2023-05-10", 2, 2023},
		{"calendar year, january 1 is Q1", calendar.DefaultConfig(), "2023-01-01", 1, 2023},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := calendar.NewFiscal(tt.cfg)
			q, y := cal.FiscalQuarter(d(tt.date))
			assert.Equal(t, tt.wantQuarter, q)
			assert.Equal(t, tt.wantYear, y)
		})
	}
}

func TestQuarterPeriod_FiscalOffset(t *testing.T) {
	cal := calendar.NewFiscal(fiscalApril())

	p := cal.QuarterPeriod(d("2023-02-15"))
	assert.Equal(t, d("2023-01-01"), p.Start)
	assert.Equal(t, d("2023-04-01"), p.End)
	assert.Equal(t, d("2023-04-01"), cal.QuarterEndDate(d("2023-02-15")))
}

func TestQuarterStartDate_RollsAcrossYears(t *testing.T) {
	cal := calendar.NewFiscal(calendar.DefaultConfig())

	assert.Equal(t, d("2022-10-01"), cal.QuarterStartDate(2023, -1))
	assert.Equal(t, d("2024-01-01"), cal.QuarterStartDate(2023, 4))
}

func TestDetermineMonth_FiscalDay(t *testing.T) {
	cfg := calendar.DefaultConfig()
	cfg.FiscalStartDay = 15
	cal := calendar.NewFiscal(cfg)

	assert.Equal(t, time.December, cal.DetermineMonth(d("2023-01-10")))
	assert.Equal(t, time.January, cal.DetermineMonth(d("2023-01-15")))
	assert.Equal(t, time.February, cal.DetermineMonth(d("2023-03-14")))
}

func TestMonthPeriod_FiscalDay(t *testing.T) {
	cfg := calendar.DefaultConfig()
	cfg.FiscalStartDay = 15
	cal := calendar.NewFiscal(cfg)

	p := cal.MonthPeriod(d("2023-03-10"))
	assert.Equal(t, d("2023-02-15"), p.Start)
	assert.Equal(t, d("2023-03-15"), p.End)
}

func TestMonthPeriod_ShortMonthUsesLastDay(t *testing.T) {
	cfg := calendar.DefaultConfig()
	cfg.FiscalStartDay = 31
	cal := calendar.NewFiscal(cfg)

	p := cal.MonthPeriod(d("2023-03-01"))
	assert.Equal(t, d("2023-02-28"), p.Start)
	assert.Equal(t, d("2023-03-31"), p.End)
	assert.True(t, p.Contains(d("2023-03-01")))
}

func TestYearPeriod_FiscalOffset(t *testing.T) {
	cal := calendar.NewFiscal(fiscalApril())

	p := cal.YearPeriod(d("2023-02-15"))
	assert.Equal(t, d("2022-04-01"), p.Start)
	assert.Equal(t, d("2023-04-01"), p.End)
}

func TestFiscalYearAdjustment(t *testing.T) {
	assert.Equal(t, 0, calendar.NewFiscal(calendar.DefaultConfig()).FiscalYearAdjustment())
	assert.Equal(t, 1, calendar.NewFiscal(fiscalApril()).FiscalYearAdjustment())
}

// =============================================================================
// WEEKS
// =============================================================================

func TestDateOfFirstFullWeek_FallsOnConfiguredWeekday(t *testing.T) {
	for weekday := time.Sunday; weekday <= time.Saturday; weekday++ {
		cfg := calendar.DefaultConfig()
		cfg.WeekStart = weekday
		cal := calendar.NewFiscal(cfg)

		for year := 1995; year <= 2035; year++ {
			first := cal.DateOfFirstFullWeek(year)
			require.Equal(t, weekday, first.Weekday(), "year %d", year)
			require.Equal(t, year, first.Year())
			require.Equal(t, time.January, first.Month())
			require.LessOrEqual(t, first.Day(), 7)
		}
	}
}

func TestDateOfFirstFullWeek_FiscalStartAnchor(t *testing.T) {
	// GIVEN: weeks anchored on the weekday of the fiscal start (2023-04-01 is a Saturday)
	cfg := fiscalApril()
	cfg.WeekAnchor = calendar.WeekAnchorFiscalStart
	cal := calendar.NewFiscal(cfg)

	// WHEN
	first := cal.DateOfFirstFullWeek(2023)

	// THEN: first Saturday of 2023
	assert.Equal(t, d("2023-01-07"), first)
	assert.Equal(t, d("2023-04-01"), cal.DateOfFirstWeek(2023))
}

func TestDateOfFirstFullWeek_Memoized(t *testing.T) {
	cal := calendar.NewFiscal(calendar.DefaultConfig())

	assert.Equal(t, cal.DateOfFirstFullWeek(2024), cal.DateOfFirstFullWeek(2024))
}

func TestDetermineWeek_Default(t *testing.T) {
	cal := calendar.NewFiscal(calendar.DefaultConfig())

	tests := []struct {
		date string
		want calendar.Week
	}{
		// 2023-01-01 is a Sunday: the first full week starts the year
		{"2023-01-01", calendar.Week{Number: 1, Year: 2023}},
		{"2023-01-07", calendar.Week{Number: 1, Year: 2023}},
		{"2023-01-08", calendar.Week{Number: 2, Year: 2023}},
		// 2022-01-01 is a Saturday: a one-day partial week 1
		{"2022-01-01", calendar.Week{Number: 1, Year: 2022}},
		{"2022-01-02", calendar.Week{Number: 2, Year: 2022}},
		{"2022-01-09", calendar.Week{Number: 3, Year: 2022}},
		{"2022-12-31", calendar.Week{Number: 53, Year: 2022}},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.DetermineWeek(d(tt.date)))
		})
	}
}

func TestWeekPeriod(t *testing.T) {
	cal := calendar.NewFiscal(calendar.DefaultConfig())

	p := cal.WeekPeriod(d("2023-01-04"))
	assert.Equal(t, d("2023-01-01"), p.Start)
	assert.Equal(t, d("2023-01-08"), p.End)

	p = cal.WeekPeriod(d("2023-01-01"))
	assert.Equal(t, d("2023-01-01"), p.Start)
	assert.Equal(t, 7, p.Days())
}

func TestWeekPeriod_MondayStart(t *testing.T) {
	cfg := calendar.DefaultConfig()
	cfg.WeekStart = time.Monday
	cal := calendar.NewFiscal(cfg)

	// 2023-01-01 is a Sunday: a one-day week 1 before the first Monday
	p := cal.WeekPeriod(d("2023-01-01"))
	assert.Equal(t, d("2023-01-01"), p.Start)
	assert.Equal(t, d("2023-01-02"), p.End)

	// the last week of 2022 stops at the turn of the year
	p = cal.WeekPeriod(d("2022-12-28"))
	assert.Equal(t, d("2022-12-26"), p.Start)
	assert.Equal(t, d("2023-01-01"), p.End)
}

func ukTax() calendar.Config {
	return calendar.Config{
		WeekStart:        time.Monday,
		FiscalStartMonth: time.April,
		FiscalStartDay:   6,
		WeekAnchor:       calendar.WeekAnchorFiscalStart,
	}
}

func TestWeekPeriod_FiscalStartAnchor(t *testing.T) {
	// GIVEN: weeks anchored on April 6 2023, a Thursday
	cal := calendar.NewFiscal(ukTax())

	// WHEN: asking for the week of another Thursday and of the Monday after
	thursday := cal.WeekPeriod(d("2023-04-20"))
	monday := cal.WeekPeriod(d("2023-04-24"))

	// THEN: both weeks run Thursday to Thursday, not from the Monday week start
	assert.Equal(t, calendar.PeriodDates{Start: d("2023-04-20"), End: d("2023-04-27")}, thursday)
	assert.Equal(t, calendar.PeriodDates{Start: d("2023-04-20"), End: d("2023-04-27")}, monday)

	last := cal.LastWeekPeriod(1, d("2023-04-24"))
	assert.Equal(t, calendar.PeriodDates{Start: d("2023-04-13"), End: d("2023-04-27")}, last)
}

// requireSameKeyInside checks that period(day) holds exactly the days that
// share day's key.
func requireSameKeyInside[K comparable](t *testing.T, key func(calendar.Date) K, period func(calendar.Date) calendar.PeriodDates, from, to calendar.Date) {
	t.Helper()
	for _, day := range calendar.Days(from, to) {
		p := period(day)
		require.True(t, p.Contains(day), "%s not in %s", day, p)
		require.Equal(t, key(day), key(p.Start), "start of %s", p)
		require.Equal(t, key(day), key(p.End.AddDays(-1)), "end of %s", p)
		require.NotEqual(t, key(day), key(p.Start.AddDays(-1)), "day before %s", p)
		require.NotEqual(t, key(day), key(p.End), "day after %s", p)
	}
}

func TestWeekPeriod_MatchesDetermineWeek(t *testing.T) {
	configs := map[string]calendar.Config{
		"default": calendar.DefaultConfig(),
		"monday":  {WeekStart: time.Monday, FiscalStartMonth: time.January, FiscalStartDay: 1},
		"uk tax":  ukTax(),
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			cal := calendar.NewFiscal(cfg)
			requireSameKeyInside(t, cal.DetermineWeek, cal.WeekPeriod, d("2021-12-01"), d("2024-01-31"))
		})
	}
}

func TestMonthAnchors_LateFiscalDay(t *testing.T) {
	// GIVEN: fiscal months starting on the 31st, or the last day of shorter months
	cfg := calendar.DefaultConfig()
	cfg.FiscalStartDay = 31
	cal := calendar.NewFiscal(cfg)

	// THEN: April 30 opens the April fiscal month
	assert.Equal(t, time.April, cal.DetermineMonth(d("2023-04-30")))
	assert.Equal(t, time.March, cal.DetermineMonth(d("2023-04-29")))
	assert.Equal(t, calendar.PeriodDates{Start: d("2023-04-30"), End: d("2023-05-31")}, cal.MonthPeriod(d("2023-04-30")))

	// AND: quarter edges are month edges
	assert.Equal(t, d("2023-01-31"), cal.QuarterStartDate(2023, 0))
	assert.Equal(t, d("2023-04-30"), cal.QuarterStartDate(2023, 1))
	assert.Equal(t, d("2023-07-31"), cal.QuarterStartDate(2023, 2))
	assert.Equal(t, d("2023-04-30"), cal.QuarterEndDate(d("2023-04-29")))

	monthKey := func(day calendar.Date) [2]int {
		return [2]int{int(cal.DetermineMonth(day)), cal.DetermineYear(day)}
	}
	requireSameKeyInside(t, monthKey, cal.MonthPeriod, d("2022-11-01"), d("2024-03-31"))
}

// =============================================================================
// LAST-N WINDOWS
// =============================================================================

func TestLastPeriods(t *testing.T) {
	cal := calendar.NewFiscal(calendar.DefaultConfig())

	tests := []struct {
		name      string
		got       calendar.PeriodDates
		wantStart string
		wantEnd   string
	}{
		{"days", cal.LastDayPeriod(2, d("2023-03-10")), "2023-03-08", "2023-03-11"},
		{"weeks", cal.LastWeekPeriod(1, d("2023-01-11")), "2023-01-01", "2023-01-15"},
		{"months", cal.LastMonthPeriod(2, d("2023-03-10")), "2023-01-01", "2023-04-01"},
		{"quarters", cal.LastQuarterPeriod(1, d("2023-05-10")), "2023-01-01", "2023-07-01"},
		{"years", cal.LastYearPeriod(1, d("2023-05-10")), "2022-01-01", "2024-01-01"},
		{"current month only", cal.LastMonthPeriod(0, d("2023-03-10")), "2023-03-01", "2023-04-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, d(tt.wantStart), tt.got.Start)
			assert.Equal(t, d(tt.wantEnd), tt.got.End)
		})
	}
}

func TestLastQuarterPeriod_CrossesFiscalYear(t *testing.T) {
	cal := calendar.NewFiscal(fiscalApril())

	// Q1 of FY2023 and the quarter before it
	p := cal.LastQuarterPeriod(1, d("2023-05-10"))
	assert.Equal(t, d("2023-01-01"), p.Start)
	assert.Equal(t, d("2023-07-01"), p.End)
}

// =============================================================================
// CHANGE DETECTION / FACTORY
// =============================================================================

func TestIsChanged(t *testing.T) {
	base := calendar.DefaultConfig()
	cal := calendar.NewFiscal(base)

	assert.False(t, cal.IsChanged(base))

	changed := base
	changed.FiscalStartDay = 2
	assert.True(t, cal.IsChanged(changed))

	changed = base
	changed.WeekStart = time.Monday
	assert.True(t, cal.IsChanged(changed))

	changed = base
	changed.FiscalStartMonth = time.July
	assert.True(t, cal.IsChanged(changed))

	changed = base
	changed.WeekAnchor = calendar.WeekAnchorFiscalStart
	assert.True(t, cal.IsChanged(changed))

	// a non-default standard always forces a rebuild
	changed = base
	changed.WeekStandard = calendar.WeekStandardISO8601
	assert.True(t, cal.IsChanged(changed))
}

func TestFactory_Create(t *testing.T) {
	f := calendar.NewFactory()

	iso := f.Create(calendar.WeekStandardISO8601, fiscalApril())
	require.IsType(t, &calendar.ISO8601{}, iso)
	assert.Equal(t, time.January, iso.Config().FiscalStartMonth)
	assert.Equal(t, time.Monday, iso.Config().WeekStart)

	def := f.Create(calendar.WeekStandardDefault, fiscalApril())
	require.IsType(t, &calendar.Fiscal{}, def)
	assert.Equal(t, time.April, def.Config().FiscalStartMonth)
}

func TestFactory_CreateReturnsFreshCalendars(t *testing.T) {
	f := calendar.NewFactory()

	a := f.Create(calendar.WeekStandardDefault, calendar.DefaultConfig())
	b := f.Create(calendar.WeekStandardDefault, calendar.DefaultConfig())
	assert.NotSame(t, a, b)
}

func TestNew_UsesConfigStandard(t *testing.T) {
	cfg := calendar.DefaultConfig()
	cfg.WeekStandard = calendar.WeekStandardISO8601

	assert.IsType(t, &calendar.ISO8601{}, calendar.New(cfg))
	assert.IsType(t, &calendar.Fiscal{}, calendar.New(calendar.Config{FiscalStartMonth: time.January, FiscalStartDay: 1}))
}

// =============================================================================
// DATE HELPERS
// =============================================================================

func TestDays_InclusiveRange(t *testing.T) {
	days := calendar.Days(d("2023-01-30"), d("2023-02-02"))
	require.Len(t, days, 4)
	assert.Equal(t, d("2023-01-31"), days[1])
	assert.Equal(t, d("2023-02-02"), days[3])

	assert.Nil(t, calendar.Days(d("2023-02-02"), d("2023-01-30")))
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, calendar.DaysInMonth(2024, time.February))
	assert.Equal(t, 28, calendar.DaysInMonth(2023, time.February))
	assert.Equal(t, 31, calendar.DaysInMonth(2023, time.December))
}

func TestBounds(t *testing.T) {
	first, last, ok := calendar.Bounds([]calendar.Date{d("2023-03-01"), d("2023-01-15"), d("2023-02-01")})
	require.True(t, ok)
	assert.Equal(t, d("2023-01-15"), first)
	assert.Equal(t, d("2023-03-01"), last)

	_, _, ok = calendar.Bounds(nil)
	assert.False(t, ok)
}

func TestDate_TextRoundTrip(t *testing.T) {
	var got calendar.Date
	require.NoError(t, got.UnmarshalText([]byte("2024-02-29")))
	assert.Equal(t, d("2024-02-29"), got)

	assert.Error(t, got.UnmarshalText([]byte("2024-13-01")))
}

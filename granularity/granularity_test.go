package granularity_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/granularity"
)

func d(s string) calendar.Date { return calendar.MustParseDate(s) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestSet(t *testing.T, cfg calendar.Config, start, end string) *granularity.Set {
	t.Helper()
	return granularity.NewSet(calendar.New(cfg), d(start), d(end))
}

func fiscalApril() calendar.Config {
	cfg := calendar.DefaultConfig()
	cfg.FiscalStartMonth = time.April
	return cfg
}

func requireTiles(t *testing.T, periods []granularity.DatePeriod, start, end calendar.Date) {
	t.Helper()
	require.NotEmpty(t, periods)
	assert.Equal(t, start, periods[0].StartDate)
	assert.Equal(t, end, periods[len(periods)-1].EndDate)
	for i := 1; i < len(periods); i++ {
		require.Equal(t, periods[i-1].EndDate, periods[i].StartDate, "gap or overlap at %d", i)
		require.True(t, periods[i].Index.GreaterThan(periods[i-1].Index), "index not increasing at %d", i)
	}
	for i, p := range periods {
		require.True(t, p.StartDate.Before(p.EndDate), "empty period at %d", i)
	}
}

// =============================================================================
// PARTITIONING
// =============================================================================

func TestSet_DayLevel(t *testing.T) {
	// GIVEN: Sunday weeks, calendar fiscal year, 10 days
	set := newTestSet(t, calendar.DefaultConfig(), "2023-01-01", "2023-01-10")

	// WHEN
	periods := set.Granularity(granularity.Day).Periods()

	// THEN: one period per day, fraction 1, indices 0..9
	require.Len(t, periods, 10)
	for i, p := range periods {
		assert.True(t, p.Fraction.Equal(decimal.NewFromInt(1)))
		assert.True(t, p.Index.Equal(decimal.NewFromInt(int64(i))))
		assert.Equal(t, 1, p.Days())
		assert.Equal(t, granularity.Identifier{1, i + 1, 2023}, p.Identifier)
	}
	requireTiles(t, periods, d("2023-01-01"), d("2023-01-11"))
}

func TestSet_WeekLevel_PartialLastWeek(t *testing.T) {
	set := newTestSet(t, calendar.DefaultConfig(), "2023-01-01", "2023-01-10")

	periods := set.Granularity(granularity.Week).Periods()

	require.Len(t, periods, 2)
	assert.Equal(t, d("2023-01-01"), periods[0].StartDate)
	assert.Equal(t, d("2023-01-08"), periods[0].EndDate)
	assert.Equal(t, d("2023-01-08"), periods[1].StartDate)
	assert.Equal(t, d("2023-01-11"), periods[1].EndDate)
	assert.Equal(t, calendar.Week{Number: 1, Year: 2023}, periods[0].Week)
	assert.Equal(t, calendar.Week{Number: 2, Year: 2023}, periods[1].Week)
}

func TestSet_QuarterLevel_FiscalOffset(t *testing.T) {
	set := newTestSet(t, fiscalApril(), "2023-02-01", "2023-05-10")

	periods := set.Granularity(granularity.Quarter).Periods()

	require.Len(t, periods, 2)
	// 2023-02-15 lies in fiscal Q4 of FY2022 (Jan-Mar)
	assert.Equal(t, granularity.Identifier{4, 2022}, periods[0].Identifier)
	assert.Equal(t, 2022, periods[0].Year)
	assert.Equal(t, d("2023-04-01"), periods[0].EndDate)
	assert.Equal(t, granularity.Identifier{1, 2023}, periods[1].Identifier)
	assert.Equal(t, d("2023-05-11"), periods[1].EndDate)

	q := set.Granularity(granularity.Quarter)
	assert.Equal(t, granularity.Identifier{4, 2022}, q.Identifier(d("2023-02-15")))
}

func TestSet_YearLevel_FiscalOffset(t *testing.T) {
	set := newTestSet(t, fiscalApril(), "2022-12-01", "2023-05-01")

	periods := set.Granularity(granularity.Year).Periods()

	require.Len(t, periods, 2)
	assert.Equal(t, 2022, periods[0].Year)
	assert.Equal(t, d("2023-04-01"), periods[0].EndDate)
	assert.Equal(t, 2023, periods[1].Year)
}

func TestSet_MonthLevel_FiscalDay(t *testing.T) {
	cfg := calendar.DefaultConfig()
	cfg.FiscalStartDay = 15
	set := newTestSet(t, cfg, "2023-01-10", "2023-03-20")

	periods := set.Granularity(granularity.Month).Periods()

	require.Len(t, periods, 4)
	assert.Equal(t, d("2023-01-15"), periods[1].StartDate)
	assert.Equal(t, d("2023-02-15"), periods[2].StartDate)
	assert.Equal(t, d("2023-03-15"), periods[3].StartDate)
	assert.Equal(t, time.December, periods[0].Month)
	assert.Equal(t, granularity.Identifier{12, 2022}, periods[0].Identifier)
}

func TestSet_EveryLevelTilesTheRange(t *testing.T) {
	configs := map[string]calendar.Config{
		"default":     calendar.DefaultConfig(),
		"april":       fiscalApril(),
		"iso":         calendar.ISO8601Config(),
		"monday-15th": {WeekStart: time.Monday, FiscalStartMonth: time.July, FiscalStartDay: 15},
		"fiscal-anchor": {
			WeekStart: time.Sunday, FiscalStartMonth: time.October, FiscalStartDay: 1,
			WeekAnchor: calendar.WeekAnchorFiscalStart,
		},
	}
	ranges := [][2]string{
		{"2020-12-20", "2021-01-15"},
		{"2022-03-30", "2024-04-02"},
		{"2023-02-28", "2023-03-01"},
	}

	for name, cfg := range configs {
		for _, r := range ranges {
			t.Run(name+"/"+r[0], func(t *testing.T) {
				set := newTestSet(t, cfg, r[0], r[1])
				want := set.Range()

				for _, level := range granularity.Types {
					requireTiles(t, set.Granularity(level).Periods(), want.Start, want.End)
				}
				days := set.Granularity(granularity.Day).Periods()
				assert.Len(t, days, want.Days())
				for _, p := range days {
					assert.Equal(t, 1, p.Days())
				}
			})
		}
	}
}

func TestSet_SingleDay(t *testing.T) {
	set := newTestSet(t, calendar.DefaultConfig(), "2023-06-15", "2023-06-15")

	for _, level := range granularity.Types {
		periods := set.Granularity(level).Periods()
		require.Len(t, periods, 1, level.String())
		assert.Equal(t, d("2023-06-16"), periods[0].EndDate)
	}
}

func TestSet_InvertedRangeIsSwapped(t *testing.T) {
	set := newTestSet(t, calendar.DefaultConfig(), "2023-01-10", "2023-01-01")

	assert.Equal(t, d("2023-01-01"), set.Start())
	assert.Len(t, set.Granularity(granularity.Day).Periods(), 10)
}

func TestGranularity_ResetIsIdempotent(t *testing.T) {
	g := granularity.New(granularity.Month, calendar.New(calendar.DefaultConfig()))
	g.AddDate(d("2023-01-01"))
	g.Reset()
	g.Reset()
	assert.Equal(t, 0, g.Len())

	// no-op on empty
	g.SetNewEndDate(d("2023-01-02"))
	assert.Equal(t, 0, g.Len())
}

// =============================================================================
// SPLIT / MERGE
// =============================================================================

func TestSplit_ConservesFraction(t *testing.T) {
	set := newTestSet(t, calendar.DefaultConfig(), "2023-01-01", "2023-03-31")
	g := set.Granularity(granularity.Month)
	before := g.Period(1)

	// WHEN: split February at the 10th
	ok := g.Split(1, dec("0.5"), d("2023-02-10"))

	// THEN
	require.True(t, ok)
	require.Equal(t, 4, g.Len())
	head, tail := g.Period(1), g.Period(2)
	assert.True(t, head.Fraction.Add(tail.Fraction).Equal(before.Fraction))
	assert.Equal(t, before.Identifier, head.Identifier)
	assert.Equal(t, before.Identifier, tail.Identifier)
	assert.Equal(t, before.Origin, tail.Origin)
	assert.Equal(t, d("2023-02-10"), head.EndDate)
	assert.Equal(t, d("2023-02-10"), tail.StartDate)
	assert.Equal(t, d("2023-03-01"), tail.EndDate)

	// tail index = head index + head fraction, later periods unmoved
	assert.True(t, tail.Index.Equal(dec("1.5")))
	assert.True(t, g.Period(3).Index.Equal(dec("2")))
}

func TestSplit_RejectsInvalidInput(t *testing.T) {
	set := newTestSet(t, calendar.DefaultConfig(), "2023-01-01", "2023-03-31")
	g := set.Granularity(granularity.Month)

	assert.False(t, g.Split(1, dec("0.5"), d("2023-02-01")), "boundary date")
	assert.False(t, g.Split(1, dec("0.5"), d("2023-03-05")), "outside period")
	assert.False(t, g.Split(1, dec("1"), d("2023-02-10")), "whole fraction")
	assert.False(t, g.Split(1, dec("0"), d("2023-02-10")), "zero fraction")
	assert.False(t, g.Split(7, dec("0.5"), d("2023-02-10")), "bad position")
	assert.Equal(t, 3, g.Len())
}

func TestMerge_UndoesSplit(t *testing.T) {
	set := newTestSet(t, calendar.DefaultConfig(), "2023-01-01", "2023-03-31")
	g := set.Granularity(granularity.Month)
	original := g.Periods()

	require.True(t, g.Split(1, dec("0.3"), d("2023-02-10")))
	require.True(t, g.Split(2, dec("0.1"), d("2023-02-20")))
	require.Equal(t, 5, g.Len())

	require.True(t, g.Merge(1))
	require.True(t, g.Merge(1))

	assertSamePeriods(t, original, g.Periods())
}

func assertSamePeriods(t *testing.T, want, got []granularity.DatePeriod) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].StartDate, got[i].StartDate, "start %d", i)
		assert.Equal(t, want[i].EndDate, got[i].EndDate, "end %d", i)
		assert.Equal(t, want[i].Identifier, got[i].Identifier, "identifier %d", i)
		assert.Equal(t, want[i].Origin, got[i].Origin, "origin %d", i)
		assert.True(t, want[i].Fraction.Equal(got[i].Fraction), "fraction %d: %s != %s", i, want[i].Fraction, got[i].Fraction)
		assert.True(t, want[i].Index.Equal(got[i].Index), "index %d: %s != %s", i, want[i].Index, got[i].Index)
	}
}

func TestMerge_RefusesDifferentOrigins(t *testing.T) {
	set := newTestSet(t, calendar.DefaultConfig(), "2023-01-01", "2023-03-31")
	g := set.Granularity(granularity.Month)

	assert.False(t, g.Merge(0))
	assert.False(t, g.Merge(2))
	assert.Equal(t, 3, g.Len())
}

func TestPositionAt(t *testing.T) {
	set := newTestSet(t, calendar.DefaultConfig(), "2023-01-01", "2023-03-31")
	g := set.Granularity(granularity.Month)

	assert.Equal(t, 1, g.PositionAt(d("2023-02-28")))
	assert.Equal(t, 2, g.PositionAt(d("2023-03-01")))
	assert.Equal(t, -1, g.PositionAt(d("2023-04-01")))
}

// =============================================================================
// TYPE
// =============================================================================

func TestType_Ordering(t *testing.T) {
	assert.True(t, granularity.Year < granularity.Quarter)
	assert.True(t, granularity.Quarter < granularity.Month)
	assert.True(t, granularity.Month < granularity.Week)
	assert.True(t, granularity.Week < granularity.Day)
}

func TestParseType(t *testing.T) {
	for _, level := range granularity.Types {
		got, err := granularity.ParseType(level.String())
		require.NoError(t, err)
		assert.Equal(t, level, got)
	}

	got, err := granularity.ParseType("Quarter")
	require.NoError(t, err)
	assert.Equal(t, granularity.Quarter, got)

	_, err = granularity.ParseType("decade")
	assert.Error(t, err)
}

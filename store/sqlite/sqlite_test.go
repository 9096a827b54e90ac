package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/granularity"
	"github.com/warp/timeline-engine/store/sqlite"
	"github.com/warp/timeline-engine/timeline"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func d(s string) calendar.Date { return calendar.MustParseDate(s) }

func sampleRecord(id string) timeline.Record {
	settings := timeline.DefaultSettings()
	settings.Granularity = granularity.Week
	settings.Calendar.FiscalStartMonth = time.April
	settings.ForceSelection = timeline.ForceSelection{Mode: timeline.ForceLatest, Count: 4, Unit: granularity.Week}
	created := time.Date(2023, 5, 1, 9, 30, 0, 0, time.UTC)
	return timeline.Record{
		ID:        id,
		Name:      "orders",
		Settings:  settings,
		Dates:     []calendar.Date{d("2023-01-01"), d("2023-02-14"), d("2023-03-31")},
		Selection: &calendar.PeriodDates{Start: d("2023-02-01"), End: d("2023-03-01")},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	want := sampleRecord("01H0000000000000000000000A")

	require.NoError(t, s.Create(ctx, want))
	got, err := s.Get(ctx, want.ID)

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_DuplicateAndMissing(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	rec := sampleRecord("a")

	require.NoError(t, s.Create(ctx, rec))
	assert.ErrorIs(t, s.Create(ctx, rec), timeline.ErrDuplicateID)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, timeline.ErrTimelineNotFound)
	assert.ErrorIs(t, s.Save(ctx, sampleRecord("missing")), timeline.ErrTimelineNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "missing"), timeline.ErrTimelineNotFound)
}

func TestStore_SaveListDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Create(ctx, sampleRecord("b")))
	require.NoError(t, s.Create(ctx, sampleRecord("a")))

	rec := sampleRecord("a")
	rec.Name = "renamed"
	rec.Selection = nil
	rec.UpdatedAt = rec.UpdatedAt.Add(time.Hour)
	require.NoError(t, s.Save(ctx, rec))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "renamed", list[0].Name)
	assert.Nil(t, list[0].Selection)
	assert.Equal(t, rec.UpdatedAt, list[0].UpdatedAt)

	require.NoError(t, s.Delete(ctx, "a"))
	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_FilterLog(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	events := []timeline.FilterEvent{
		{TimelineID: "t1", Timestamp: base.Add(2 * time.Hour), Action: timeline.FilterSelected, Granularity: granularity.Day,
			Active: true, Start: d("2023-01-10"), End: d("2023-01-20")},
		{TimelineID: "t1", Timestamp: base, Action: timeline.FilterForced, Granularity: granularity.Month,
			Active: true, Start: d("2023-01-01"), End: d("2023-02-01")},
		{TimelineID: "t1", Timestamp: base.Add(time.Hour), Action: timeline.FilterCleared, Granularity: granularity.Month},
		{TimelineID: "t2", Timestamp: base, Action: timeline.FilterSelected, Granularity: granularity.Year},
	}
	for _, e := range events {
		require.NoError(t, s.Append(ctx, e))
	}

	got, err := s.Query(ctx, timeline.FilterQuery{TimelineID: "t1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, timeline.FilterForced, got[0].Action)
	assert.Equal(t, d("2023-02-01"), got[0].End)
	assert.False(t, got[1].Active)
	assert.True(t, got[1].Start.IsZero())
	assert.Equal(t, granularity.Day, got[2].Granularity)
	assert.Equal(t, base.Add(2*time.Hour), got[2].Timestamp)

	got, err = s.Query(ctx, timeline.FilterQuery{Actions: []timeline.FilterAction{timeline.FilterSelected}})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	from := base.Add(30 * time.Minute)
	got, err = s.Query(ctx, timeline.FilterQuery{TimelineID: "t1", From: &from, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, timeline.FilterSelected, got[0].Action)

	// Reset wipes the history too
	require.NoError(t, s.Reset(ctx))
	got, err = s.Query(ctx, timeline.FilterQuery{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

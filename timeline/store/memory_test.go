package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/timeline"
	"github.com/warp/timeline-engine/timeline/store"
)

func record(id string) timeline.Record {
	return timeline.Record{
		ID:       id,
		Name:     "orders",
		Settings: timeline.DefaultSettings(),
		Dates:    []calendar.Date{calendar.MustParseDate("2023-01-01"), calendar.MustParseDate("2023-03-31")},
	}
}

func TestMemory_CRUD(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.Create(ctx, record("b")))
	require.NoError(t, m.Create(ctx, record("a")))
	assert.ErrorIs(t, m.Create(ctx, record("a")), timeline.ErrDuplicateID)

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)

	rec := record("a")
	rec.Name = "renamed"
	rec.Selection = &calendar.PeriodDates{Start: calendar.MustParseDate("2023-02-01"), End: calendar.MustParseDate("2023-03-01")}
	require.NoError(t, m.Save(ctx, rec))

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	require.NotNil(t, got.Selection)

	require.NoError(t, m.Delete(ctx, "a"))
	_, err = m.Get(ctx, "a")
	assert.ErrorIs(t, err, timeline.ErrTimelineNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "a"), timeline.ErrTimelineNotFound)
	assert.ErrorIs(t, m.Save(ctx, record("zz")), timeline.ErrTimelineNotFound)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	rec := record("a")
	require.NoError(t, m.Create(ctx, rec))

	rec.Dates[0] = calendar.MustParseDate("1999-01-01")

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, calendar.MustParseDate("2023-01-01"), got.Dates[0])
}

func TestMemory_FilterLog(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	// appended out of order
	for i, action := range []timeline.FilterAction{timeline.FilterSelected, timeline.FilterCleared, timeline.FilterForced} {
		require.NoError(t, m.Append(ctx, timeline.FilterEvent{
			ID:         timeline.NewID(),
			TimelineID: "t1",
			Timestamp:  base.Add(time.Duration(2-i) * time.Hour),
			Action:     action,
		}))
	}
	require.NoError(t, m.Append(ctx, timeline.FilterEvent{TimelineID: "t2", Timestamp: base, Action: timeline.FilterSelected}))

	events, err := m.Query(ctx, timeline.FilterQuery{TimelineID: "t1"})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, timeline.FilterForced, events[0].Action)
	assert.Equal(t, timeline.FilterSelected, events[2].Action)

	events, err = m.Query(ctx, timeline.FilterQuery{Actions: []timeline.FilterAction{timeline.FilterSelected}})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	from := base.Add(30 * time.Minute)
	events, err = m.Query(ctx, timeline.FilterQuery{TimelineID: "t1", From: &from, Limit: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, timeline.FilterSelected, events[0].Action)
}

package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/timeline"
)

func staticCredentials() aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret", Source: "test"}, nil
	})
}

func TestIAMDSN(t *testing.T) {
	dsn, err := IAMDSN(context.Background(), RDSConfig{
		Endpoint: "timelines.abc123.eu-central-1.rds.amazonaws.com",
		User:     "app user",
		Database: "timelines",
		Region:   "eu-central-1",
	}, staticCredentials())

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "postgres://app+user:"), dsn)
	assert.Contains(t, dsn, "@timelines.abc123.eu-central-1.rds.amazonaws.com:5432/timelines?sslmode=require")
	assert.Contains(t, dsn, "X-Amz-Signature")
}

func TestIAMDSN_RequiresEndpoint(t *testing.T) {
	_, err := IAMDSN(context.Background(), RDSConfig{User: "u", Database: "d"}, staticCredentials())
	assert.Error(t, err)
}

func TestBuildEventQuery(t *testing.T) {
	from := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	query, args := buildEventQuery(timeline.FilterQuery{
		TimelineID: "t1",
		Actions:    []timeline.FilterAction{timeline.FilterSelected, timeline.FilterForced},
		From:       &from,
		Limit:      5,
	})

	assert.Contains(t, query, "timeline_id = $1 AND action = ANY($2) AND timestamp >= $3")
	assert.True(t, strings.HasSuffix(query, "ORDER BY timestamp DESC, id DESC LIMIT $4"))
	assert.Len(t, args, 4)

	query, args = buildEventQuery(timeline.FilterQuery{})
	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
}

// TestStore_Integration runs against a real database when
// TIMELINE_TEST_POSTGRES_DSN is set.
func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("TIMELINE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TIMELINE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, Config{DSN: dsn})
	require.NoError(t, err)
	s, err := New(ctx, db)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := timeline.Record{
		ID:        timeline.NewID(),
		Name:      "integration",
		Settings:  timeline.DefaultSettings(),
		Dates:     []calendar.Date{calendar.MustParseDate("2023-01-01"), calendar.MustParseDate("2023-03-31")},
		Selection: &calendar.PeriodDates{Start: calendar.MustParseDate("2023-02-01"), End: calendar.MustParseDate("2023-03-01")},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.Create(ctx, rec))
	assert.ErrorIs(t, s.Create(ctx, rec), timeline.ErrDuplicateID)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Settings, got.Settings)
	assert.Equal(t, *rec.Selection, *got.Selection)

	require.NoError(t, s.Append(ctx, timeline.FilterEvent{TimelineID: rec.ID, Timestamp: now, Action: timeline.FilterSelected,
		Active: true, Start: rec.Selection.Start, End: rec.Selection.End}))
	events, err := s.Query(ctx, timeline.FilterQuery{TimelineID: rec.ID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, rec.Selection.End, events[0].End)

	require.NoError(t, s.Delete(ctx, rec.ID))
}

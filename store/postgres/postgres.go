/*
Package postgres provides a PostgreSQL-backed implementation of the timeline
storage interfaces.

PURPOSE:
  Same tables and contracts as store/sqlite, for deployments where several
  servers share one database. Connects either with a plain DSN or to RDS
  with IAM authentication, where a short-lived token signed with the
  ambient AWS credentials is the password.

USAGE:
  db, err := postgres.Open(ctx, postgres.Config{DSN: "postgres://..."})
  store, err := postgres.New(ctx, db)

SEE ALSO:
  - store/sqlite/sqlite.go: the embedded twin
  - config/config.go: TIMELINE_POSTGRES_* settings
*/
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	rdsutils "github.com/aws/aws-sdk-go-v2/feature/rds/auth"
	"github.com/lib/pq"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/granularity"
	"github.com/warp/timeline-engine/timeline"
)

// =============================================================================
// CONNECTION
// =============================================================================

// Config selects how to connect. DSN wins when set.
type Config struct {
	DSN string
	RDS RDSConfig
}

// RDSConfig describes an IAM-enabled RDS PostgreSQL instance.
type RDSConfig struct {
	Endpoint string // e.g. timelines.abc123xyz.eu-central-1.rds.amazonaws.com
	Port     int
	User     string
	Database string
	Region   string
	Profile  string // shared config profile, mostly for dev
}

// Open connects and pings the database.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.RDS.Region),
			awsconfig.WithSharedConfigProfile(cfg.RDS.Profile),
		)
		if err != nil {
			return nil, fmt.Errorf("unable to load AWS config: %w", err)
		}
		dsn, err = IAMDSN(ctx, cfg.RDS, awsCfg.Credentials)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// IAMDSN builds a connection string whose password is an RDS IAM auth
// token. Signing is local; no AWS call is made. Tokens expire after 15
// minutes, which only matters for new connections.
func IAMDSN(ctx context.Context, rc RDSConfig, creds aws.CredentialsProvider) (string, error) {
	if rc.Endpoint == "" || rc.User == "" || rc.Database == "" {
		return "", errors.New("rds endpoint, user and database are required")
	}
	port := rc.Port
	if port == 0 {
		port = 5432
	}
	host := rc.Endpoint + ":" + strconv.Itoa(port)

	token, err := rdsutils.BuildAuthToken(ctx, host, rc.Region, rc.User, creds)
	if err != nil {
		return "", fmt.Errorf("failed to create authentication token: %w", err)
	}

	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=require",
		url.QueryEscape(rc.User),
		url.QueryEscape(token),
		host,
		url.QueryEscape(rc.Database),
	), nil
}

// =============================================================================
// STORE
// =============================================================================

// Store implements timeline.Store and timeline.FilterLog.
type Store struct {
	db *sql.DB
}

// New migrates the schema and returns a store over db.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS timelines (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		settings_json JSONB NOT NULL,
		dates_json JSONB NOT NULL,
		selection_start DATE,
		selection_end DATE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS filter_events (
		id TEXT PRIMARY KEY,
		timeline_id TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		action TEXT NOT NULL,
		granularity TEXT NOT NULL,
		active BOOLEAN NOT NULL,
		start_date DATE,
		end_date DATE
	);

	CREATE INDEX IF NOT EXISTS idx_filter_events_timeline
		ON filter_events(timeline_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_filter_events_timestamp
		ON filter_events(timestamp);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// TIMELINE STORE
// =============================================================================

func (s *Store) Create(ctx context.Context, rec timeline.Record) error {
	args, err := recordArgs(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO timelines
		(id, name, settings_json, dates_json, selection_start, selection_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return timeline.ErrDuplicateID
		}
		return fmt.Errorf("failed to create timeline: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, rec timeline.Record) error {
	args, err := recordArgs(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE timelines SET
			name = $2, settings_json = $3, dates_json = $4,
			selection_start = $5, selection_end = $6, updated_at = $7
		WHERE id = $1
	`, args[0], args[1], args[2], args[3], args[4], args[5], args[7])
	if err != nil {
		return fmt.Errorf("failed to save timeline: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return timeline.ErrTimelineNotFound
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (timeline.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectTimelines+" WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return timeline.Record{}, timeline.ErrTimelineNotFound
	}
	return rec, err
}

func (s *Store) List(ctx context.Context) ([]timeline.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectTimelines+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query timelines: %w", err)
	}
	defer rows.Close()

	var records []timeline.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM timelines WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return timeline.ErrTimelineNotFound
	}
	return nil
}

// =============================================================================
// FILTER LOG
// =============================================================================

func (s *Store) Append(ctx context.Context, e timeline.FilterEvent) error {
	if e.ID == "" {
		e.ID = timeline.NewID()
	}
	var start, end sql.NullString
	if e.Active {
		start = sql.NullString{String: e.Start.String(), Valid: true}
		end = sql.NullString{String: e.End.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO filter_events (id, timeline_id, timestamp, action, granularity, active, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.TimelineID, e.Timestamp.UTC(), string(e.Action), e.Granularity.String(), e.Active, start, end)
	if err != nil {
		return fmt.Errorf("failed to append filter event: %w", err)
	}
	return nil
}

// Query returns matching events, oldest first. A positive Limit keeps the
// most recent ones.
func (s *Store) Query(ctx context.Context, q timeline.FilterQuery) ([]timeline.FilterEvent, error) {
	query, args := buildEventQuery(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query filter events: %w", err)
	}
	defer rows.Close()

	var events []timeline.FilterEvent
	for rows.Next() {
		var (
			e          timeline.FilterEvent
			action     string
			level      string
			start, end sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.TimelineID, &e.Timestamp, &action, &level, &e.Active, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan filter event: %w", err)
		}
		e.Action = timeline.FilterAction(action)
		e.Granularity, _ = granularity.ParseType(level)
		if start.Valid {
			e.Start, _ = calendar.ParseDate(start.String)
		}
		if end.Valid {
			e.End, _ = calendar.ParseDate(end.String)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// buildEventQuery renders q with numbered placeholders, newest first.
func buildEventQuery(q timeline.FilterQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if q.TimelineID != "" {
		where = append(where, "timeline_id = "+arg(q.TimelineID))
	}
	if len(q.Actions) > 0 {
		actions := make([]string, len(q.Actions))
		for i, a := range q.Actions {
			actions[i] = string(a)
		}
		where = append(where, "action = ANY("+arg(pq.Array(actions))+")")
	}
	if q.From != nil {
		where = append(where, "timestamp >= "+arg(q.From.UTC()))
	}
	if q.To != nil {
		where = append(where, "timestamp <= "+arg(q.To.UTC()))
	}

	query := "SELECT id, timeline_id, timestamp, action, granularity, active, start_date::text, end_date::text FROM filter_events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT " + arg(q.Limit)
	}
	return query, args
}

// =============================================================================
// HELPERS
// =============================================================================

const selectTimelines = `
	SELECT id, name, settings_json::text, dates_json::text, selection_start::text, selection_end::text, created_at, updated_at
	FROM timelines`

func recordArgs(rec timeline.Record) ([]any, error) {
	settingsJSON, err := jsonText(rec.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	datesJSON, err := jsonText(rec.Dates)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dates: %w", err)
	}
	var selStart, selEnd sql.NullString
	if rec.Selection != nil {
		selStart = sql.NullString{String: rec.Selection.Start.String(), Valid: true}
		selEnd = sql.NullString{String: rec.Selection.End.String(), Valid: true}
	}
	return []any{rec.ID, rec.Name, settingsJSON, datesJSON, selStart, selEnd, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC()}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (timeline.Record, error) {
	var (
		rec                  timeline.Record
		settingsJSON         string
		datesJSON            string
		selStart, selEnd     sql.NullString
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&rec.ID, &rec.Name, &settingsJSON, &datesJSON, &selStart, &selEnd, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("failed to scan timeline: %w", err)
	}
	if err := fromJSONText(settingsJSON, &rec.Settings); err != nil {
		return rec, fmt.Errorf("failed to decode settings of %s: %w", rec.ID, err)
	}
	if err := fromJSONText(datesJSON, &rec.Dates); err != nil {
		return rec, fmt.Errorf("failed to decode dates of %s: %w", rec.ID, err)
	}
	if selStart.Valid && selEnd.Valid {
		start, err1 := calendar.ParseDate(selStart.String)
		end, err2 := calendar.ParseDate(selEnd.String)
		if err := errors.Join(err1, err2); err != nil {
			return rec, fmt.Errorf("failed to decode selection of %s: %w", rec.ID, err)
		}
		rec.Selection = &calendar.PeriodDates{Start: start, End: end}
	}
	rec.CreatedAt = createdAt.UTC()
	rec.UpdatedAt = updatedAt.UTC()
	return rec, nil
}

func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func fromJSONText(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

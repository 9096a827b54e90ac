/*
Package sqlite provides a SQLite-backed implementation of the timeline
storage interfaces.

PURPOSE:
  Implements timeline.Store and timeline.FilterLog using SQLite. The
  postgres package carries the same schema for shared deployments.

INTERFACES IMPLEMENTED:
  timeline.Store:     Timeline records
  timeline.FilterLog: Append-only filter history

APPEND-ONLY ENFORCEMENT:
  filter_events is never updated or deleted from, not even when its
  timeline is deleted.

KEY TABLES:
  timelines:     One row per record; settings and dates as JSON
  filter_events: Every filter a timeline published

INDEXES:
  - idx_filter_events_timeline: history of one timeline (hot path)
  - idx_filter_events_timestamp: global history

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, the database is opened in WAL mode.

USAGE:
  store, err := sqlite.New("./data/timelines.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - timeline/store.go: Interface definitions
  - timeline/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/granularity"
	"github.com/warp/timeline-engine/timeline"
)

// timestampLayout is fixed-width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS timelines (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		settings_json TEXT NOT NULL,
		dates_json TEXT NOT NULL,
		selection_start TEXT,
		selection_end TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Filter history (append-only)
	CREATE TABLE IF NOT EXISTS filter_events (
		id TEXT PRIMARY KEY,
		timeline_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		action TEXT NOT NULL,
		granularity TEXT NOT NULL,
		active INTEGER NOT NULL,
		start_date TEXT,
		end_date TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_filter_events_timeline
		ON filter_events(timeline_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_filter_events_timestamp
		ON filter_events(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TIMELINE STORE (timeline.Store interface)
// =============================================================================

// Create inserts a new record.
func (s *Store) Create(ctx context.Context, rec timeline.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	args, err := recordArgs(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO timelines
		(id, name, settings_json, dates_json, selection_start, selection_end, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return timeline.ErrDuplicateID
		}
		return fmt.Errorf("failed to create timeline: %w", err)
	}
	return nil
}

// Save overwrites an existing record. created_at is never changed.
func (s *Store) Save(ctx context.Context, rec timeline.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	args, err := recordArgs(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE timelines SET
			name = ?, settings_json = ?, dates_json = ?,
			selection_start = ?, selection_end = ?, updated_at = ?
		WHERE id = ?
	`, args[1], args[2], args[3], args[4], args[5], args[7], args[0])
	if err != nil {
		return fmt.Errorf("failed to save timeline: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return timeline.ErrTimelineNotFound
	}
	return nil
}

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id string) (timeline.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectTimelines+" WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return timeline.Record{}, timeline.ErrTimelineNotFound
	}
	return rec, err
}

// List returns all records in ID order.
func (s *Store) List(ctx context.Context) ([]timeline.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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

// Delete removes a record. Its filter history is kept.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM timelines WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return timeline.ErrTimelineNotFound
	}
	return nil
}

const selectTimelines = `
	SELECT id, name, settings_json, dates_json, selection_start, selection_end, created_at, updated_at
	FROM timelines`

// recordArgs flattens rec in column order of the timelines table.
func recordArgs(rec timeline.Record) ([]any, error) {
	settingsJSON, err := json.Marshal(rec.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	datesJSON, err := json.Marshal(rec.Dates)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dates: %w", err)
	}
	var selStart, selEnd sql.NullString
	if rec.Selection != nil {
		selStart = nullString(rec.Selection.Start.String())
		selEnd = nullString(rec.Selection.End.String())
	}
	return []any{
		rec.ID,
		rec.Name,
		string(settingsJSON),
		string(datesJSON),
		selStart,
		selEnd,
		rec.CreatedAt.UTC().Format(timestampLayout),
		rec.UpdatedAt.UTC().Format(timestampLayout),
	}, nil
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
		createdAt, updatedAt string
	)
	err := row.Scan(&rec.ID, &rec.Name, &settingsJSON, &datesJSON, &selStart, &selEnd, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("failed to scan timeline: %w", err)
	}

	if err := json.Unmarshal([]byte(settingsJSON), &rec.Settings); err != nil {
		return rec, fmt.Errorf("failed to decode settings of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(datesJSON), &rec.Dates); err != nil {
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
	rec.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
	rec.UpdatedAt, _ = time.Parse(timestampLayout, updatedAt)
	return rec, nil
}

// =============================================================================
// FILTER LOG (timeline.FilterLog interface)
// =============================================================================

// Append records a filter event.
func (s *Store) Append(ctx context.Context, e timeline.FilterEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = timeline.NewID()
	}
	var start, end sql.NullString
	if e.Active {
		start = nullString(e.Start.String())
		end = nullString(e.End.String())
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO filter_events (id, timeline_id, timestamp, action, granularity, active, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TimelineID, e.Timestamp.UTC().Format(timestampLayout), string(e.Action),
		e.Granularity.String(), e.Active, start, end)
	if err != nil {
		return fmt.Errorf("failed to append filter event: %w", err)
	}
	return nil
}

// Query returns matching events, oldest first. A positive Limit keeps the
// most recent ones.
func (s *Store) Query(ctx context.Context, q timeline.FilterQuery) ([]timeline.FilterEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if q.TimelineID != "" {
		where = append(where, "timeline_id = ?")
		args = append(args, q.TimelineID)
	}
	if len(q.Actions) > 0 {
		marks := make([]string, len(q.Actions))
		for i, a := range q.Actions {
			marks[i] = "?"
			args = append(args, string(a))
		}
		where = append(where, "action IN ("+strings.Join(marks, ", ")+")")
	}
	if q.From != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, q.From.UTC().Format(timestampLayout))
	}
	if q.To != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, q.To.UTC().Format(timestampLayout))
	}

	query := "SELECT id, timeline_id, timestamp, action, granularity, active, start_date, end_date FROM filter_events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query filter events: %w", err)
	}
	defer rows.Close()

	var events []timeline.FilterEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// newest first from the query, oldest first to the caller
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func scanEvent(row scanner) (timeline.FilterEvent, error) {
	var (
		e          timeline.FilterEvent
		timestamp  string
		action     string
		level      string
		start, end sql.NullString
	)
	if err := row.Scan(&e.ID, &e.TimelineID, &timestamp, &action, &level, &e.Active, &start, &end); err != nil {
		return e, fmt.Errorf("failed to scan filter event: %w", err)
	}
	e.Timestamp, _ = time.Parse(timestampLayout, timestamp)
	e.Action = timeline.FilterAction(action)
	e.Granularity, _ = granularity.ParseType(level)
	if start.Valid {
		e.Start, _ = calendar.ParseDate(start.String)
	}
	if end.Valid {
		e.End, _ = calendar.ParseDate(end.String)
	}
	return e, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"timelines", "filter_events"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

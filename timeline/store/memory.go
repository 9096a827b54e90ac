// Package store provides in-process Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/timeline-engine/timeline"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records map[string]timeline.Record
	events  []timeline.FilterEvent
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]timeline.Record),
	}
}

func (m *Memory) Create(_ context.Context, rec timeline.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[rec.ID]; ok {
		return timeline.ErrDuplicateID
	}
	m.records[rec.ID] = clone(rec)
	return nil
}

func (m *Memory) Save(_ context.Context, rec timeline.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[rec.ID]; !ok {
		return timeline.ErrTimelineNotFound
	}
	m.records[rec.ID] = clone(rec)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (timeline.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return timeline.Record{}, timeline.ErrTimelineNotFound
	}
	return clone(rec), nil
}

func (m *Memory) List(_ context.Context) ([]timeline.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]timeline.Record, 0, len(m.records))
	for _, rec := range m.records {
		result = append(result, clone(rec))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return timeline.ErrTimelineNotFound
	}
	delete(m.records, id)
	return nil
}

// clone detaches a record from the caller's slices and pointers.
func clone(rec timeline.Record) timeline.Record {
	rec.Dates = append(rec.Dates[:0:0], rec.Dates...)
	if rec.Selection != nil {
		sel := *rec.Selection
		rec.Selection = &sel
	}
	return rec
}

// =============================================================================
// FILTER LOG
// =============================================================================

// Append adds an event. Events are kept in timestamp order.
func (m *Memory) Append(_ context.Context, event timeline.FilterEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.ID == "" {
		event.ID = timeline.NewID()
	}
	i := sort.Search(len(m.events), func(i int) bool {
		return m.events[i].Timestamp.After(event.Timestamp)
	})
	m.events = append(m.events, timeline.FilterEvent{})
	copy(m.events[i+1:], m.events[i:])
	m.events[i] = event
	return nil
}

// Query returns matching events, oldest first. A positive Limit keeps the
// most recent ones.
func (m *Memory) Query(_ context.Context, q timeline.FilterQuery) ([]timeline.FilterEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []timeline.FilterEvent
	for _, e := range m.events {
		if q.Matches(e) {
			result = append(result, e)
		}
	}
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[len(result)-q.Limit:]
	}
	return result, nil
}

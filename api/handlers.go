/*
handlers.go - HTTP API handlers for stored timelines

PURPOSE:
  Exposes timelines via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the timeline package.

ENDPOINTS:
  Timelines:
    GET    /api/timelines                        List stored timelines
    POST   /api/timelines                        Create from settings + dates
    GET    /api/timelines/{id}                   Rebuilt timeline
    DELETE /api/timelines/{id}                   Delete (history is kept)
    PUT    /api/timelines/{id}/settings          Replace settings
    PUT    /api/timelines/{id}/dates             Replace the date stream
    PUT    /api/timelines/{id}/granularity       Switch the active level

  Selection:
    POST   /api/timelines/{id}/selection         Dates, cursor drag or click
    POST   /api/timelines/{id}/selection/current Period containing a date
    POST   /api/timelines/{id}/selection/latest  Last N periods of a unit
    DELETE /api/timelines/{id}/selection         Back to the full range

  Output:
    GET    /api/timelines/{id}/filter            Published filter, 204 if none
    GET    /api/timelines/{id}/labels            Label strips
    GET    /api/timelines/{id}/events            Filter history
    POST   /api/timelines/{id}/export            Archive the snapshot to S3

  Admin:
    POST   /api/admin/refresh                    Re-apply forced selections

REQUEST FLOW:
  Every mutation runs under one lock:
  1. Load the record, rebuild the timeline (Record.Restore)
  2. Apply the change
  3. Capture and save the record
  4. Append a filter event

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Timeline not found
  - 409: Duplicate ID
  - 422: Selection outside the available dates
  - 500: Internal errors
  - 501: Export not configured

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo timelines
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/factory"
	"github.com/warp/timeline-engine/granularity"
	"github.com/warp/timeline-engine/timeline"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Exporter archives a snapshot and returns where it went.
type Exporter interface {
	Export(ctx context.Context, id string, snap timeline.Snapshot) (string, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store           timeline.Store
	Events          timeline.FilterLog
	SettingsFactory *factory.SettingsFactory
	Exporter        Exporter // nil: export disabled
	Metrics         *Metrics
	Logger          *slog.Logger
	Now             func() time.Time
	DefaultPreset   string

	validate *validator.Validate

	// serializes load-modify-save of records
	mu sync.Mutex
}

// NewHandler creates a new handler over store and its filter log.
func NewHandler(store timeline.Store, events timeline.FilterLog) *Handler {
	return &Handler{
		Store:           store,
		Events:          events,
		SettingsFactory: factory.NewSettingsFactory(),
		Metrics:         NewMetrics(),
		Logger:          slog.Default(),
		Now:             time.Now,
		DefaultPreset:   "default",
		validate:        validator.New(),
	}
}

func (h *Handler) today() calendar.Date {
	return calendar.FromTime(h.Now())
}

func (h *Handler) restore(rec timeline.Record) (*timeline.Timeline, error) {
	return rec.Restore(
		timeline.WithLogger(h.Logger.With(slog.String("timeline_id", rec.ID))),
		timeline.WithClock(h.today),
	)
}

// settingsFrom resolves a settings document or preset name. Neither means
// the default preset.
func (h *Handler) settingsFrom(preset string, sj *factory.SettingsJSON) (timeline.Settings, error) {
	switch {
	case sj != nil:
		return h.SettingsFactory.FromJSON(*sj)
	case preset != "":
		return h.SettingsFactory.Preset(preset)
	default:
		return h.SettingsFactory.Preset(h.DefaultPreset)
	}
}

// mutate loads timeline id, applies fn, persists the result and logs the
// filter it now publishes.
func (h *Handler) mutate(ctx context.Context, id string, action timeline.FilterAction, fn func(*timeline.Timeline, *timeline.Record) error) (*timeline.Timeline, timeline.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, err := h.Store.Get(ctx, id)
	if err != nil {
		return nil, rec, err
	}
	tl, err := h.restore(rec)
	if err != nil {
		return nil, rec, err
	}
	if err := fn(tl, &rec); err != nil {
		return nil, rec, err
	}

	now := h.Now()
	rec.Capture(tl, now)
	if err := h.Store.Save(ctx, rec); err != nil {
		return nil, rec, err
	}
	h.appendEvent(ctx, rec.ID, action, tl, now)
	return tl, rec, nil
}

// appendEvent logs the filter tl publishes. The mutation already succeeded,
// so a failure is logged, not returned.
func (h *Handler) appendEvent(ctx context.Context, id string, action timeline.FilterAction, tl *timeline.Timeline, now time.Time) {
	event := timeline.FilterEvent{
		ID:          timeline.NewID(),
		TimelineID:  id,
		Timestamp:   now,
		Action:      action,
		Granularity: tl.Granularity(),
	}
	if f, ok := tl.Filter(); ok {
		event.Active = true
		event.Start = f.Start
		event.End = f.End
	}
	if err := h.Events.Append(ctx, event); err != nil {
		h.Logger.ErrorContext(ctx, "failed to append filter event",
			slog.String("timeline_id", id),
			slog.String("action", string(action)),
			slog.String("error", err.Error()))
		return
	}
	h.Metrics.FilterEvents.WithLabelValues(string(action)).Inc()
}

// =============================================================================
// TIMELINE HANDLERS
// =============================================================================

// ListTimelines returns a summary of every stored timeline.
func (h *Handler) ListTimelines(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to list timelines", err)
		return
	}

	dtos := make([]TimelineSummaryDTO, len(records))
	for i, rec := range records {
		dtos[i] = TimelineSummaryDTO{
			ID:          rec.ID,
			Name:        rec.Name,
			Granularity: rec.Settings.Granularity.String(),
			DateCount:   len(rec.Dates),
			Filter:      rec.Selection,
			CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
			UpdatedAt:   rec.UpdatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, r, http.StatusOK, dtos)
}

// CreateTimeline builds and stores a new timeline.
func (h *Handler) CreateTimeline(w http.ResponseWriter, r *http.Request) {
	var req CreateTimelineRequest
	if !h.decode(w, r, &req) {
		return
	}

	settings, err := h.settingsFrom(req.Preset, req.Settings)
	if err != nil {
		writeDomainError(w, r, "Invalid settings", err)
		return
	}

	rec, tl, err := h.create(r.Context(), req.Name, settings, req.Dates)
	if err != nil {
		writeDomainError(w, r, "Failed to create timeline", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, h.toTimelineDTO(rec, tl))
}

func (h *Handler) create(ctx context.Context, name string, settings timeline.Settings, dates []calendar.Date) (timeline.Record, *timeline.Timeline, error) {
	tl, err := timeline.New(settings, dates, timeline.WithLogger(h.Logger), timeline.WithClock(h.today))
	if err != nil {
		return timeline.Record{}, nil, err
	}

	now := h.Now()
	rec := timeline.NewRecord(name, dates, tl, now)
	if err := h.Store.Create(ctx, rec); err != nil {
		return timeline.Record{}, nil, err
	}

	action := timeline.FilterRecomputed
	if settings.ForceSelection.Mode != timeline.ForceNone {
		action = timeline.FilterForced
	}
	h.appendEvent(ctx, rec.ID, action, tl, now)
	h.Logger.InfoContext(ctx, "timeline created",
		slog.String("timeline_id", rec.ID),
		slog.Int("dates", len(dates)))
	return rec, tl, nil
}

// GetTimeline returns the rebuilt timeline.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	rec, tl, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, h.toTimelineDTO(rec, tl))
}

// load rebuilds the timeline named in the URL, writing the error response
// when it can't.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (timeline.Record, *timeline.Timeline, bool) {
	rec, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Failed to get timeline", err)
		return rec, nil, false
	}
	tl, err := h.restore(rec)
	if err != nil {
		writeDomainError(w, r, "Failed to rebuild timeline", err)
		return rec, nil, false
	}
	return rec, tl, true
}

// DeleteTimeline removes a timeline. Its filter history stays.
func (h *Handler) DeleteTimeline(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	err := h.Store.Delete(r.Context(), chi.URLParam(r, "id"))
	h.mu.Unlock()
	if err != nil {
		writeDomainError(w, r, "Failed to delete timeline", err)
		return
	}
	render.NoContent(w, r)
}

// UpdateSettings replaces the settings, keeping the dates.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Settings == nil && req.Preset == "" {
		writeError(w, r, http.StatusBadRequest, "settings or preset is required", nil)
		return
	}
	settings, err := h.settingsFrom(req.Preset, req.Settings)
	if err != nil {
		writeDomainError(w, r, "Invalid settings", err)
		return
	}

	h.respondMutation(w, r, timeline.FilterRecomputed, func(tl *timeline.Timeline, rec *timeline.Record) error {
		return tl.Update(settings, rec.Dates)
	})
}

// ReplaceDates replaces the date stream, keeping the settings.
func (h *Handler) ReplaceDates(w http.ResponseWriter, r *http.Request) {
	var req ReplaceDatesRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.respondMutation(w, r, timeline.FilterRecomputed, func(tl *timeline.Timeline, rec *timeline.Record) error {
		if err := tl.Update(tl.Settings(), req.Dates); err != nil {
			return err
		}
		rec.Dates = req.Dates
		return nil
	})
}

// ChangeGranularity switches the active level.
func (h *Handler) ChangeGranularity(w http.ResponseWriter, r *http.Request) {
	var req GranularityRequest
	if !h.decode(w, r, &req) {
		return
	}
	level, err := granularity.ParseType(req.Granularity)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid granularity", err)
		return
	}

	h.respondMutation(w, r, timeline.FilterLevelChange, func(tl *timeline.Timeline, _ *timeline.Record) error {
		return tl.ChangeGranularity(level)
	})
}

// =============================================================================
// SELECTION HANDLERS
// =============================================================================

// Select applies one of the three selection forms.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !h.decode(w, r, &req) {
		return
	}

	var apply func(*timeline.Timeline) error
	switch {
	case req.ClickIndex != nil:
		apply = func(tl *timeline.Timeline) error { return tl.Click(*req.ClickIndex, req.Multi) }
	case req.StartIndex != nil && req.EndIndex != nil:
		apply = func(tl *timeline.Timeline) error { return tl.SelectIndices(*req.StartIndex, *req.EndIndex) }
	case req.Start != nil && req.End != nil:
		apply = func(tl *timeline.Timeline) error { return tl.Select(*req.Start, *req.End) }
	default:
		writeError(w, r, http.StatusBadRequest, "start and end, start_index and end_index, or click_index is required", nil)
		return
	}

	if h.respondMutation(w, r, timeline.FilterSelected, func(tl *timeline.Timeline, _ *timeline.Record) error {
		return apply(tl)
	}) {
		h.Metrics.Selections.WithLabelValues(selectionKind(req)).Inc()
	}
}

func selectionKind(req SelectionRequest) string {
	switch {
	case req.ClickIndex != nil:
		return "click"
	case req.StartIndex != nil:
		return "indices"
	default:
		return "dates"
	}
}

// SelectCurrent selects the active-level period containing a date.
func (h *Handler) SelectCurrent(w http.ResponseWriter, r *http.Request) {
	var req CurrentSelectionRequest
	if !h.decode(w, r, &req) {
		return
	}
	date := h.today()
	if req.Date != nil {
		date = *req.Date
	}

	if h.respondMutation(w, r, timeline.FilterSelected, func(tl *timeline.Timeline, _ *timeline.Record) error {
		return tl.SelectCurrentPeriod(date)
	}) {
		h.Metrics.Selections.WithLabelValues("current").Inc()
	}
}

// SelectLatest selects the most recent periods of a unit.
func (h *Handler) SelectLatest(w http.ResponseWriter, r *http.Request) {
	var req LatestSelectionRequest
	if !h.decode(w, r, &req) {
		return
	}
	unit, err := granularity.ParseType(req.Unit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid unit", err)
		return
	}
	date := h.today()
	if req.Date != nil {
		date = *req.Date
	}

	if h.respondMutation(w, r, timeline.FilterSelected, func(tl *timeline.Timeline, _ *timeline.Record) error {
		return tl.SelectLastPeriods(req.Count, unit, date)
	}) {
		h.Metrics.Selections.WithLabelValues("latest").Inc()
	}
}

// ClearSelection selects the full range, which publishes no filter.
func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.respondMutation(w, r, timeline.FilterCleared, func(tl *timeline.Timeline, _ *timeline.Record) error {
		tl.ClearSelection()
		return nil
	})
}

// respondMutation runs fn through mutate and writes the result. It reports
// whether the mutation was saved.
func (h *Handler) respondMutation(w http.ResponseWriter, r *http.Request, action timeline.FilterAction, fn func(*timeline.Timeline, *timeline.Record) error) bool {
	tl, rec, err := h.mutate(r.Context(), chi.URLParam(r, "id"), action, fn)
	if err != nil {
		writeDomainError(w, r, "Failed to update timeline", err)
		return false
	}
	writeJSON(w, r, http.StatusOK, h.toTimelineDTO(rec, tl))
	return true
}

// =============================================================================
// OUTPUT HANDLERS
// =============================================================================

// GetFilter returns the published filter, or 204 when nothing is filtered.
func (h *Handler) GetFilter(w http.ResponseWriter, r *http.Request) {
	_, tl, ok := h.load(w, r)
	if !ok {
		return
	}
	f, active := tl.Filter()
	if !active {
		render.NoContent(w, r)
		return
	}
	writeJSON(w, r, http.StatusOK, f)
}

// GetLabels returns the label strips of the active level.
func (h *Handler) GetLabels(w http.ResponseWriter, r *http.Request) {
	_, tl, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, tl.Labels())
}

// GetEvents returns the filter history of a timeline, oldest first.
// Query parameters: action (repeatable), limit.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	q := timeline.FilterQuery{TimelineID: chi.URLParam(r, "id")}
	for _, a := range r.URL.Query()["action"] {
		q.Actions = append(q.Actions, timeline.FilterAction(a))
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			writeError(w, r, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		q.Limit = limit
	}

	events, err := h.Events.Query(r.Context(), q)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to query filter events", err)
		return
	}
	dtos := make([]FilterEventDTO, len(events))
	for i, e := range events {
		dtos[i] = FilterEventDTO{
			ID:          e.ID,
			Timestamp:   e.Timestamp.Format(time.RFC3339),
			Action:      e.Action,
			Granularity: e.Granularity.String(),
			Active:      e.Active,
		}
		if e.Active {
			dtos[i].Start = e.Start.String()
			dtos[i].End = e.End.String()
		}
	}
	writeJSON(w, r, http.StatusOK, dtos)
}

// ExportTimeline archives the current snapshot.
func (h *Handler) ExportTimeline(w http.ResponseWriter, r *http.Request) {
	if h.Exporter == nil {
		writeError(w, r, http.StatusNotImplemented, "Export is not configured", nil)
		return
	}
	rec, tl, ok := h.load(w, r)
	if !ok {
		return
	}

	location, err := h.Exporter.Export(r.Context(), rec.ID, tl.Snapshot())
	if err != nil {
		h.Metrics.Exports.WithLabelValues("error").Inc()
		writeError(w, r, http.StatusBadGateway, "Failed to export timeline", err)
		return
	}
	h.Metrics.Exports.WithLabelValues("ok").Inc()
	h.Logger.InfoContext(r.Context(), "timeline exported",
		slog.String("timeline_id", rec.ID),
		slog.String("location", location))
	writeJSON(w, r, http.StatusCreated, ExportDTO{Location: location})
}

// =============================================================================
// FORCED SELECTION REFRESH
// =============================================================================

// RefreshForced re-applies the forced selection of every timeline that
// has one, as of now. A timeline whose filter moved is saved and gets a
// FilterForced event.
func (h *Handler) RefreshForced(ctx context.Context) (checked, refreshed int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	records, err := h.Store.List(ctx)
	if err != nil {
		return 0, 0, err
	}
	now := h.Now()
	for _, rec := range records {
		if rec.Settings.ForceSelection.Mode == timeline.ForceNone {
			continue
		}
		checked++

		// Restore applies the forced selection as of today.
		tl, err := h.restore(rec)
		if err != nil {
			h.Logger.WarnContext(ctx, "skipping timeline that no longer builds",
				slog.String("timeline_id", rec.ID),
				slog.String("error", err.Error()))
			continue
		}
		before := rec.Selection
		rec.Capture(tl, now)
		if samePeriod(before, rec.Selection) {
			continue
		}
		if err := h.Store.Save(ctx, rec); err != nil {
			return checked, refreshed, err
		}
		h.appendEvent(ctx, rec.ID, timeline.FilterForced, tl, now)
		refreshed++
	}
	return checked, refreshed, nil
}

func samePeriod(a, b *calendar.PeriodDates) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Start.Equal(b.Start) && a.End.Equal(b.End)
}

// TriggerRefresh runs RefreshForced on demand.
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	checked, refreshed, err := h.RefreshForced(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to refresh forced selections", err)
		return
	}
	writeJSON(w, r, http.StatusOK, RefreshDTO{Checked: checked, Refreshed: refreshed})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) toTimelineDTO(rec timeline.Record, tl *timeline.Timeline) TimelineDTO {
	return TimelineDTO{
		ID:        rec.ID,
		Name:      rec.Name,
		Settings:  h.SettingsFactory.ToJSON(rec.Settings),
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt: rec.UpdatedAt.Format(time.RFC3339),
		Snapshot:  tl.Snapshot(),
	}
}

// decode reads and validates a JSON body, writing a 400 on failure. An
// empty body decodes as the zero request.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, r, status, resp)
}

// writeDomainError picks the status from the timeline error classes.
func writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case timeline.IsNotFound(err):
		writeError(w, r, http.StatusNotFound, "Timeline not found", err)
	case timeline.IsConflict(err):
		writeError(w, r, http.StatusConflict, message, err)
	case errors.Is(err, timeline.ErrSelectionOutOfRange):
		writeError(w, r, http.StatusUnprocessableEntity, message, err)
	case timeline.IsClientError(err):
		writeError(w, r, http.StatusBadRequest, message, err)
	default:
		writeError(w, r, http.StatusInternalServerError, message, err)
	}
}

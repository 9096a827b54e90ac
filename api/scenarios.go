/*
scenarios.go - Demo timelines for testing and demonstrations

PURPOSE:

	Provides pre-built timelines over realistic date streams. Each one pairs
	a settings preset (factory/settings.go) with a date generator and
	sometimes an initial selection, to show a specific calendar feature.

AVAILABLE PRESETS:

	sales-2023:        Business days of 2023, month level, Q2 selected
	uk-tax-years:      Two UK tax years, months starting on the 6th
	iso-year-boundary: ISO weeks across 2020/2021 (week 53)
	us-federal-fy:     Monthly data points, October fiscal year
	recent-activity:   Last 120 days, last 30 forced

USAGE VIA API:

	POST /api/presets/load
	{"preset_id": "uk-tax-years"}

ADDING NEW PRESETS:
 1. Add an entry to demoPresets with ID, name, description
 2. Give it a settings preset name and a date generator

NOTE:

	Unlike a reset, loading adds a timeline next to the existing ones.
	With server.demo set, LoadDemo creates all of them on an empty store.

SEE ALSO:
  - handlers.go: CreateTimeline, which loading goes through
  - factory/settings.go: Settings presets
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/factory"
	"github.com/warp/timeline-engine/timeline"
)

// =============================================================================
// PRESET DEFINITIONS
// =============================================================================

type demoPreset struct {
	PresetDTO
	dates     func(today calendar.Date) []calendar.Date
	selection *calendar.PeriodDates
}

var demoPresets = []demoPreset{
	{
		PresetDTO: PresetDTO{
			ID:          "sales-2023",
			Name:        "Sales 2023",
			Description: "Business days of 2023 by month, second quarter selected",
			Settings:    "default",
		},
		dates: func(calendar.Date) []calendar.Date {
			return businessDays(calendar.NewDate(2023, time.January, 1), calendar.NewDate(2023, time.December, 31))
		},
		selection: &calendar.PeriodDates{
			Start: calendar.NewDate(2023, time.April, 1),
			End:   calendar.NewDate(2023, time.July, 1),
		},
	},
	{
		PresetDTO: PresetDTO{
			ID:          "uk-tax-years",
			Name:        "UK Tax Years",
			Description: "Tax years 2022/23 and 2023/24, months and weeks from April 6",
			Settings:    "uk_tax",
		},
		dates: func(calendar.Date) []calendar.Date {
			return calendar.Days(calendar.NewDate(2022, time.April, 6), calendar.NewDate(2024, time.April, 5))
		},
	},
	{
		PresetDTO: PresetDTO{
			ID:          "iso-year-boundary",
			Name:        "ISO Year Boundary",
			Description: "ISO weeks around New Year 2021, where January 1 belongs to week 53 of 2020",
			Settings:    "iso8601",
		},
		dates: func(calendar.Date) []calendar.Date {
			return calendar.Days(calendar.NewDate(2020, time.December, 14), calendar.NewDate(2021, time.January, 24))
		},
	},
	{
		PresetDTO: PresetDTO{
			ID:          "us-federal-fy",
			Name:        "US Federal Fiscal Years",
			Description: "Monthly data points over FY2022 and FY2023 by fiscal quarter",
			Settings:    "us_federal",
		},
		dates: func(calendar.Date) []calendar.Date {
			var dates []calendar.Date
			for d := calendar.NewDate(2021, time.October, 1); d.Year() < 2023 || d.Month() < time.October; d = d.AddMonths(1) {
				dates = append(dates, d)
			}
			return dates
		},
	},
	{
		PresetDTO: PresetDTO{
			ID:          "recent-activity",
			Name:        "Recent Activity",
			Description: "The last 120 days by day, always showing the latest 30",
			Settings:    "last_30_days",
		},
		dates: func(today calendar.Date) []calendar.Date {
			return calendar.Days(today.AddDays(-119), today)
		},
	},
}

func businessDays(start, end calendar.Date) []calendar.Date {
	var days []calendar.Date
	for _, d := range calendar.Days(start, end) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			days = append(days, d)
		}
	}
	return days
}

func findPreset(id string) (demoPreset, bool) {
	for _, p := range demoPresets {
		if p.ID == id {
			return p, true
		}
	}
	return demoPreset{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListPresets returns the demo timelines.
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	dtos := make([]PresetDTO, len(demoPresets))
	for i, p := range demoPresets {
		dtos[i] = p.PresetDTO
	}
	writeJSON(w, r, http.StatusOK, dtos)
}

// ListSettingsPresets returns every settings preset as a document.
func (h *Handler) ListSettingsPresets(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]factory.SettingsJSON)
	for _, name := range factory.PresetNames() {
		settings, err := h.SettingsFactory.Preset(name)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "Broken settings preset "+name, err)
			return
		}
		out[name] = h.SettingsFactory.ToJSON(settings)
	}
	writeJSON(w, r, http.StatusOK, out)
}

// LoadPreset creates the demo timeline named in the request.
func (h *Handler) LoadPreset(w http.ResponseWriter, r *http.Request) {
	var req LoadPresetRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, ok := findPreset(req.PresetID)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "Unknown preset", nil)
		return
	}

	rec, tl, err := h.loadPreset(r.Context(), p)
	if err != nil {
		writeDomainError(w, r, "Failed to load preset", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, h.toTimelineDTO(rec, tl))
}

func (h *Handler) loadPreset(ctx context.Context, p demoPreset) (timeline.Record, *timeline.Timeline, error) {
	settings, err := h.SettingsFactory.Preset(p.Settings)
	if err != nil {
		return timeline.Record{}, nil, fmt.Errorf("settings preset %s: %w", p.Settings, err)
	}

	rec, tl, err := h.create(ctx, p.Name, settings, p.dates(h.today()))
	if err != nil || p.selection == nil {
		return rec, tl, err
	}
	sel := *p.selection
	tl, rec, err = h.mutate(ctx, rec.ID, timeline.FilterSelected, func(tl *timeline.Timeline, _ *timeline.Record) error {
		return tl.Select(sel.Start, sel.End)
	})
	return rec, tl, err
}

// LoadDemo creates every demo timeline when the store holds none. It
// returns how many it created.
func (h *Handler) LoadDemo(ctx context.Context) (int, error) {
	existing, err := h.Store.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i, p := range demoPresets {
		if _, _, err := h.loadPreset(ctx, p); err != nil {
			return i, fmt.Errorf("preset %s: %w", p.ID, err)
		}
	}
	return len(demoPresets), nil
}

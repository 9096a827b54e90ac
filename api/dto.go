/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Timeline state goes
  out as timeline.Snapshot; settings come in as factory.SettingsJSON so
  clients use the same schema as the presets.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry validator tags; handlers call h.validate.Struct
  after decoding. Embedded settings documents are skipped there and
  validated by the SettingsFactory. Rules that span fields (which
  selection form was sent) are checked in the handlers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/settings.go: SettingsJSON
*/
package api

import (
	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/factory"
	"github.com/warp/timeline-engine/timeline"
)

// =============================================================================
// TIMELINES
// =============================================================================

// CreateTimelineRequest builds a timeline from a settings document or a
// named settings preset. With neither, the server default preset applies.
type CreateTimelineRequest struct {
	Name     string                `json:"name" validate:"max=200"`
	Preset   string                `json:"preset,omitempty"`
	Settings *factory.SettingsJSON `json:"settings,omitempty" validate:"-"`
	Dates    []calendar.Date       `json:"dates" validate:"required,min=1"`
}

// TimelineSummaryDTO is one entry of the timeline list. It is read from
// the stored record without rebuilding the timeline.
type TimelineSummaryDTO struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Granularity string                `json:"granularity"`
	DateCount   int                   `json:"date_count"`
	Filter      *calendar.PeriodDates `json:"filter,omitempty"`
	CreatedAt   string                `json:"created_at"`
	UpdatedAt   string                `json:"updated_at"`
}

// TimelineDTO is a stored timeline with its rebuilt state.
type TimelineDTO struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Settings  factory.SettingsJSON `json:"settings"`
	CreatedAt string               `json:"created_at"`
	UpdatedAt string               `json:"updated_at"`
	Snapshot  timeline.Snapshot    `json:"snapshot"`
}

// UpdateSettingsRequest replaces the settings, from a document or a preset.
type UpdateSettingsRequest struct {
	Preset   string                `json:"preset,omitempty"`
	Settings *factory.SettingsJSON `json:"settings,omitempty" validate:"-"`
}

// ReplaceDatesRequest replaces the date stream.
type ReplaceDatesRequest struct {
	Dates []calendar.Date `json:"dates" validate:"required,min=1"`
}

// GranularityRequest switches the active level.
type GranularityRequest struct {
	Granularity string `json:"granularity" validate:"required,oneof=year quarter month week day"`
}

// =============================================================================
// SELECTION
// =============================================================================

// SelectionRequest carries exactly one of three forms:
//
//	{"start": "2023-02-10", "end": "2023-02-20"}   date range, end exclusive
//	{"start_index": 2, "end_index": 4}             cursor drag over cells
//	{"click_index": 3, "multi": true}              cell click
type SelectionRequest struct {
	Start      *calendar.Date `json:"start,omitempty"`
	End        *calendar.Date `json:"end,omitempty"`
	StartIndex *int           `json:"start_index,omitempty" validate:"omitempty,min=0"`
	EndIndex   *int           `json:"end_index,omitempty" validate:"omitempty,min=0"`
	ClickIndex *int           `json:"click_index,omitempty" validate:"omitempty,min=0"`
	Multi      bool           `json:"multi,omitempty"`
}

// CurrentSelectionRequest selects the period containing Date, today when
// absent.
type CurrentSelectionRequest struct {
	Date *calendar.Date `json:"date,omitempty"`
}

// LatestSelectionRequest selects the Count most recent periods of Unit.
type LatestSelectionRequest struct {
	Count int            `json:"count" validate:"min=1,max=1000"`
	Unit  string         `json:"unit" validate:"required,oneof=year quarter month week day"`
	Date  *calendar.Date `json:"date,omitempty"`
}

// =============================================================================
// FILTER LOG / EXPORT
// =============================================================================

// FilterEventDTO is one entry of a timeline's filter history.
type FilterEventDTO struct {
	ID          string                `json:"id"`
	Timestamp   string                `json:"timestamp"`
	Action      timeline.FilterAction `json:"action"`
	Granularity string                `json:"granularity"`
	Active      bool                  `json:"active"`
	Start       string                `json:"start,omitempty"`
	End         string                `json:"end,omitempty"`
}

// ExportDTO points at an archived snapshot.
type ExportDTO struct {
	Location string `json:"location"`
}

// RefreshDTO reports a forced-selection refresh run.
type RefreshDTO struct {
	Checked   int `json:"checked"`
	Refreshed int `json:"refreshed"`
}

// =============================================================================
// PRESETS
// =============================================================================

// PresetDTO describes a demo timeline.
type PresetDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Settings    string `json:"settings"` // settings preset name
}

// LoadPresetRequest creates the demo timeline PresetID.
type LoadPresetRequest struct {
	PresetID string `json:"preset_id" validate:"required"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

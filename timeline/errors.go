/*
errors.go - Error types for timelines and their persistence

PURPOSE:
  All error types in one place. The core packages (calendar, granularity,
  selection) never fail on valid input; everything that can go wrong with
  a request, a stored record or a selection surfaces here.

ERROR CATEGORIES:
  1. Input errors - empty date streams, bad settings, bad granularity
  2. Selection errors - ranges outside the data, bad cell indices
  3. Store errors - missing or duplicate timelines

USAGE:
    if errors.Is(err, timeline.ErrSelectionOutOfRange) {
        // keep the previous selection
    }

SEE ALSO:
  - api/handlers.go: maps these to HTTP status codes
*/
package timeline

import (
	"errors"
	"fmt"

	"github.com/warp/timeline-engine/calendar"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmptyDates is returned when a timeline is built from no dates.
	ErrEmptyDates = errors.New("no dates to build a timeline from")

	// ErrInvalidGranularity is returned for a level outside year..day.
	ErrInvalidGranularity = errors.New("invalid granularity")

	// ErrInvalidSettings is returned when settings fail validation.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrSelectionOutOfRange is returned when a requested selection does not
	// overlap the available dates. The previous selection is kept.
	ErrSelectionOutOfRange = errors.New("selection outside available dates")

	// ErrInvalidSelection is returned for cell indices that do not exist or
	// are inverted.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrTimelineNotFound is returned when a stored timeline doesn't exist.
	ErrTimelineNotFound = errors.New("timeline not found")

	// ErrDuplicateID is returned when creating a timeline whose ID exists.
	ErrDuplicateID = errors.New("duplicate timeline id")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SelectionOutOfRangeError reports the requested and available ranges.
type SelectionOutOfRangeError struct {
	Requested calendar.PeriodDates
	Available calendar.PeriodDates
}

func (e *SelectionOutOfRangeError) Error() string {
	return fmt.Sprintf("selection %s outside available dates %s", e.Requested, e.Available)
}

func (e *SelectionOutOfRangeError) Unwrap() error {
	return ErrSelectionOutOfRange
}

// SettingsError names the offending settings field.
type SettingsError struct {
	Field  string
	Reason string
}

func (e *SettingsError) Error() string {
	return fmt.Sprintf("invalid settings: %s: %s", e.Field, e.Reason)
}

func (e *SettingsError) Unwrap() error {
	return ErrInvalidSettings
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyDates) ||
		errors.Is(err, ErrInvalidGranularity) ||
		errors.Is(err, ErrInvalidSettings) ||
		errors.Is(err, ErrSelectionOutOfRange) ||
		errors.Is(err, ErrInvalidSelection)
}

// IsNotFound returns true if the error indicates a missing timeline.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTimelineNotFound)
}

// IsConflict returns true if the error indicates a duplicate.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateID)
}

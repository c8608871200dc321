package filter

import (
	"errors"
	"sort"
	"time"

	"github.com/tlaxclima/acciones-service/internal/domain"
)

// ErrInvalidRange rejects an explicit date range whose start is after its
// end. The message is surfaced to the user.
var ErrInvalidRange = errors.New("start date must not be after end date")

// Timeline derives the selectable years from the marker collection and
// holds the temporal selection. Exactly one temporal mode is active at a
// time: none, a single year, or an explicit date range — setting one clears
// the other.
type Timeline struct {
	years    []int
	minYear  int
	maxYear  int
	enabled  bool
	year     int // 0 = no year selected
	from, to time.Time
}

// NewTimeline scans the markers' start dates. With fewer than two distinct
// data years the timeline stays disabled rather than rendering a degenerate
// span; a single-year collection still widens its bounds by ±1 so consumers
// always get a usable range.
func NewTimeline(markers []domain.Marker) *Timeline {
	seen := make(map[int]struct{})
	for _, m := range markers {
		if start, ok := m.StartTime(); ok {
			seen[start.Year()] = struct{}{}
		}
	}

	t := &Timeline{}
	for y := range seen {
		t.years = append(t.years, y)
	}
	sort.Ints(t.years)

	if len(t.years) > 0 {
		t.minYear = t.years[0]
		t.maxYear = t.years[len(t.years)-1]
		if t.minYear == t.maxYear {
			t.minYear--
			t.maxYear++
		}
	}
	t.enabled = len(t.years) >= 2
	return t
}

// Enabled reports whether the timeline has enough distinct years to render.
func (t *Timeline) Enabled() bool { return t.enabled }

// Years returns the distinct data years in ascending order.
func (t *Timeline) Years() []int { return t.years }

// Bounds returns the (possibly widened) min and max year.
func (t *Timeline) Bounds() (int, int) { return t.minYear, t.maxYear }

// ToggleYear selects a single year, or clears the selection when the year
// is already selected. Selecting a year drops any explicit range.
func (t *Timeline) ToggleYear(year int) {
	if t.year == year {
		t.year = 0
		return
	}
	t.year = year
	t.from, t.to = time.Time{}, time.Time{}
}

// SetRange selects an explicit closed date range, dropping any year
// selection. Returns ErrInvalidRange when from is after to.
func (t *Timeline) SetRange(from, to time.Time) error {
	if from.After(to) {
		return ErrInvalidRange
	}
	t.from, t.to = from, to
	t.year = 0
	return nil
}

// Clear removes any temporal selection.
func (t *Timeline) Clear() {
	t.year = 0
	t.from, t.to = time.Time{}, time.Time{}
}

// SelectedYear returns the selected year, or 0 when none is selected.
func (t *Timeline) SelectedYear() int { return t.year }

// Range returns the explicit range and whether one is set.
func (t *Timeline) Range() (time.Time, time.Time, bool) {
	return t.from, t.to, !t.from.IsZero() || !t.to.IsZero()
}

// Predicate returns the temporal constraint for the Filter Engine, or nil
// when no selection is active. Markers whose start date cannot be parsed
// never match an active temporal constraint.
func (t *Timeline) Predicate() func(start time.Time, ok bool) bool {
	switch {
	case t.year != 0:
		year := t.year
		return func(start time.Time, ok bool) bool {
			return ok && start.Year() == year
		}
	case !t.from.IsZero() || !t.to.IsZero():
		from, to := t.from, t.to
		return func(start time.Time, ok bool) bool {
			return ok && !start.Before(from) && !start.After(to)
		}
	default:
		return nil
	}
}

// Package filter holds the pure view-state logic: composable dimension
// filters and the timeline constraint. No DOM, no HTTP — the predicates are
// testable in isolation and the HTTP layer only translates parameters into
// toggles.
package filter

import (
	"time"

	"github.com/tlaxclima/acciones-service/internal/domain"
)

// Dimension names one independently toggleable filter set.
type Dimension string

const (
	ByDependency Dimension = "dependencia"
	ByKind       Dimension = "tipo"
	ByStatus     Dimension = "estado"
)

var dimensions = []Dimension{ByDependency, ByKind, ByStatus}

// Set is the filter state machine. An empty dimension imposes no
// constraint; within a dimension membership is OR, across dimensions the
// constraints AND — and the optional temporal predicate ANDs on top.
type Set struct {
	selected map[Dimension]map[string]struct{}
	temporal func(time.Time, bool) bool
}

// NewSet creates an empty filter: everything passes.
func NewSet() *Set {
	s := &Set{selected: make(map[Dimension]map[string]struct{}, len(dimensions))}
	for _, d := range dimensions {
		s.selected[d] = make(map[string]struct{})
	}
	return s
}

// Toggle adds value to the dimension's set, or removes it when already
// present. Unknown dimensions are ignored.
func (s *Set) Toggle(dim Dimension, value string) {
	set, ok := s.selected[dim]
	if !ok {
		return
	}
	if _, on := set[value]; on {
		delete(set, value)
		return
	}
	set[value] = struct{}{}
}

// Selected reports whether value is currently toggled on in the dimension.
func (s *Set) Selected(dim Dimension, value string) bool {
	set, ok := s.selected[dim]
	if !ok {
		return false
	}
	_, on := set[value]
	return on
}

// Clear empties every dimension and drops the temporal constraint,
// restoring the full marker list.
func (s *Set) Clear() {
	for _, d := range dimensions {
		s.selected[d] = make(map[string]struct{})
	}
	s.temporal = nil
}

// SetTemporal installs the timeline predicate. The predicate receives the
// marker's parsed start time and whether parsing succeeded. Pass nil to
// remove the temporal constraint.
func (s *Set) SetTemporal(pred func(start time.Time, ok bool) bool) {
	s.temporal = pred
}

// Matches reports whether a marker passes every active constraint.
func (s *Set) Matches(m domain.Marker) bool {
	if !s.dimensionMatches(ByDependency, m.DependencyName) {
		return false
	}
	if !s.dimensionMatches(ByKind, m.Kind) {
		return false
	}
	if !s.dimensionMatches(ByStatus, m.Status) {
		return false
	}
	if s.temporal != nil {
		start, ok := m.StartTime()
		if !s.temporal(start, ok) {
			return false
		}
	}
	return true
}

// Apply recomputes the visible marker set from scratch on every call,
// keeping it a pure function of filter state. n is bounded by survey
// volume, not a firehose.
func (s *Set) Apply(markers []domain.Marker) []domain.Marker {
	visible := make([]domain.Marker, 0, len(markers))
	for _, m := range markers {
		if s.Matches(m) {
			visible = append(visible, m)
		}
	}
	return visible
}

func (s *Set) dimensionMatches(dim Dimension, value string) bool {
	set := s.selected[dim]
	if len(set) == 0 {
		return true
	}
	_, on := set[value]
	return on
}

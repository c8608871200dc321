package domain

import (
	"strconv"
	"strings"
)

// RegionPolicy holds the coordinate-validation bounding box and the
// fallback centroid substituted when genuine coordinates are absent or
// invalid. Defaults target Tlaxcala; deployments for another geography
// override it from configuration.
type RegionPolicy struct {
	LatMin float64
	LatMax float64
	LngMin float64
	LngMax float64

	FallbackLat float64
	FallbackLng float64

	StatewideLabel string
}

// DefaultRegion returns the Tlaxcala policy: the state bounding box and the
// capital as fallback centroid.
func DefaultRegion() RegionPolicy {
	return RegionPolicy{
		LatMin:         19.0,
		LatMax:         19.8,
		LngMin:         -98.8,
		LngMax:         -97.5,
		FallbackLat:    19.3139,
		FallbackLng:    -98.2404,
		StatewideLabel: "Todo el estado",
	}
}

// Contains reports whether the point falls inside the bounding box.
func (r RegionPolicy) Contains(lat, lng float64) bool {
	return lat >= r.LatMin && lat <= r.LatMax && lng >= r.LngMin && lng <= r.LngMax
}

// NormalizeLocation converts a submission's raw location payload into a
// validated Location. Decision table, in priority order:
//
//   - Local with both coordinates inside the bounding box: genuine
//     coordinates.
//   - Local with coordinates present but out of range, or with either
//     coordinate missing: fallback centroid, flagged approximate.
//   - Estatal: fallback centroid, statewide label, regardless of any
//     coordinates in the payload.
//   - Anything else: nil; the caller drops the record.
func NormalizeLocation(act Activity, region RegionPolicy) *Location {
	loc := Location{
		Activity: act.Activities,
		Place:    act.Place,
		Kind:     act.LocationKind,
		Evidence: evidenceFromActivity(act),
	}

	switch act.LocationKind {
	case LocationLocal:
		lat, latOK := parseCoordinate(act.Latitude)
		lng, lngOK := parseCoordinate(act.Longitude)
		if latOK && lngOK && region.Contains(lat, lng) {
			loc.Lat = lat
			loc.Lng = lng
			return &loc
		}
		loc.Lat = region.FallbackLat
		loc.Lng = region.FallbackLng
		loc.CoordinatesFallback = true
		return &loc

	case LocationStatewide:
		loc.Lat = region.FallbackLat
		loc.Lng = region.FallbackLng
		loc.Place = region.StatewideLabel
		loc.IsStatewide = true
		loc.CoordinatesFallback = true
		return &loc

	default:
		return nil
	}
}

// evidenceFromActivity fills the evidence channels, defaulting missing
// links to null rather than omitting the key.
func evidenceFromActivity(act Activity) Evidence {
	return Evidence{
		PDF:   nilIfEmpty(act.EvidencePDF),
		Image: nilIfEmpty(act.EvidenceImage),
		Video: nilIfEmpty(act.EvidenceVideo),
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// parseCoordinate parses a coordinate answer. Dependencies paste values
// with decimal commas often enough that both separators are accepted.
func parseCoordinate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

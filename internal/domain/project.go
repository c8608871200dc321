package domain

import (
	"hash/fnv"
	"time"
)

// Evidence holds the optional media links attached to a location. Channels
// without a link serialize as JSON null rather than being omitted, so map
// popups can rely on the keys being present.
type Evidence struct {
	PDF   *string `json:"pdf"`
	Image *string `json:"imagen"`
	Video *string `json:"video"`
}

// Location is one geographic point belonging to a project. Lat/Lng are
// always populated: either genuine validated coordinates or the region's
// fallback centroid, in which case CoordinatesFallback is true.
type Location struct {
	Activity            string   `json:"actividad"`
	Lat                 float64  `json:"lat"`
	Lng                 float64  `json:"lng"`
	Place               string   `json:"nombre_ubicacion"`
	Kind                string   `json:"tipo_ubicacion"`
	IsStatewide         bool     `json:"es_estatal"`
	CoordinatesFallback bool     `json:"coordenadas_aproximadas"`
	Evidence            Evidence `json:"evidencias"`
}

// Project is the aggregated entity a user sees as one point-of-interest
// group: one named program or project merged from every submission sharing
// the composite key. TotalLocations and MultiLocation are derived from the
// location sequence, never set independently.
type Project struct {
	Key            string     `json:"-"`
	Name           string     `json:"nombre"`
	Objective      string     `json:"objetivo"`
	Activities     string     `json:"actividades"`
	Alignment      string     `json:"alineacion"`
	Population     string     `json:"poblacion_objetivo"`
	Temporality    string     `json:"temporalidad"`
	DependencyName string     `json:"dependencia"`
	DependencyID   string     `json:"dependencia_id"`
	Color          string     `json:"color"`
	Kind           string     `json:"tipo"`
	Status         string     `json:"estado"`
	Email          string     `json:"email"`
	StartDate      string     `json:"fecha_inicio"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Locations      []Location `json:"ubicaciones"`
	TotalLocations int        `json:"total_ubicaciones"`
	MultiLocation  bool       `json:"es_multiubicacion"`
}

// startDateLayouts are the date formats dependencies type into the
// free-text start-date answer.
var startDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006",
}

// StartTime parses the project's start date. The second return is false
// when the answer is empty or unparseable.
func (p Project) StartTime() (time.Time, bool) {
	if p.StartDate == "" {
		return time.Time{}, false
	}
	for _, layout := range startDateLayouts {
		if t, err := time.Parse(layout, p.StartDate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Marker is the per-location flattening of a project, the unit actually
// placed on the map. Ephemeral: regenerated on every load, never cached.
type Marker struct {
	Project
	Location Location `json:"ubicacion_actual"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
}

// FlattenMarkers projects every (project, location) pair into a marker,
// preserving project order and location arrival order.
func FlattenMarkers(projects []Project) []Marker {
	markers := make([]Marker, 0, len(projects))
	for _, p := range projects {
		for _, loc := range p.Locations {
			markers = append(markers, Marker{
				Project:  p,
				Location: loc,
				Lat:      loc.Lat,
				Lng:      loc.Lng,
			})
		}
	}
	return markers
}

// Dataset is the aggregated result the cache persists and the service
// serves. Markers are derived from it on demand.
type Dataset struct {
	Projects []Project `json:"proyectos"`
	Metadata Metadata  `json:"metadata"`
}

// dependencyPalette is the fixed map palette; a dependency keeps the same
// color across loads because assignment hashes its name.
var dependencyPalette = []string{
	"#1B9E77", "#D95F02", "#7570B3", "#E7298A",
	"#66A61E", "#E6AB02", "#A6761D", "#666666",
	"#2C7FB8", "#DE2D26",
}

// DependencyColor returns the display color for a dependency name.
func DependencyColor(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	return dependencyPalette[h.Sum32()%uint32(len(dependencyPalette))]
}

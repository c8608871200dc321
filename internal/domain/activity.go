package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Question titles are part of the survey API contract and must match the
// form's question_title strings verbatim, accents included. A renamed
// question upstream silently empties the field rather than erroring.
const (
	QuestionName          = "Nombre del programa o proyecto"
	QuestionObjective     = "Objetivo general"
	QuestionActivities    = "Actividades principales"
	QuestionAlignment     = "Alineación con el Programa Estatal"
	QuestionPopulation    = "Población objetivo"
	QuestionTemporality   = "Temporalidad"
	QuestionKind          = "Tipo"
	QuestionStartDate     = "Fecha de inicio"
	QuestionLocationKind  = "Tipo de ubicación"
	QuestionLatitude      = "Latitud"
	QuestionLongitude     = "Longitud"
	QuestionPlace         = "Ubicación"
	QuestionMunicipality  = "Municipio"
	QuestionEvidencePDF   = "Evidencia PDF"
	QuestionEvidenceImage = "Evidencia fotográfica"
	QuestionEvidenceVideo = "Evidencia en video"
)

// Location kind values accepted by the normalizer.
const (
	LocationLocal     = "Local"
	LocationStatewide = "Estatal"
)

// Project kind labels.
const (
	KindProject = "Proyecto"
	KindProgram = "Programa"
)

// StatusActive is the only status the aggregator assigns today. The
// concluded/planned buckets exist in Metadata for forward compatibility.
const StatusActive = "activo"

// RawAnswer is one survey answer as delivered by the API.
type RawAnswer struct {
	QuestionTitle string `json:"question_title"`
	DisplayValue  string `json:"display_value"`
}

// RawActivity is one survey submission as delivered by the API.
// Dependency arrives as a bare number from some platform versions and as a
// string from others, hence json.Number.
type RawActivity struct {
	Email          string      `json:"email"`
	Dependency     json.Number `json:"dependency"`
	DependencyName string      `json:"dependency_name"`
	CreatedAt      string      `json:"created_at"`
	UpdatedAt      string      `json:"updated_at"`
	Status         string      `json:"status"`
	Answers        []RawAnswer `json:"answers"`
}

// Activity is a submission after the single typed decoding pass at the API
// boundary. Optional answers decode to the empty string.
type Activity struct {
	Email          string
	DependencyID   string
	DependencyName string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Name        string
	Objective   string
	Activities  string
	Alignment   string
	Population  string
	Temporality string
	Kind        string
	StartDate   string

	LocationKind string
	Latitude     string
	Longitude    string
	Place        string
	Municipality string

	EvidencePDF   string
	EvidenceImage string
	EvidenceVideo string
}

// DecodeActivity maps a raw submission into a typed Activity in one pass.
// It fails per-record when the project-name answer is absent; every other
// answer is optional and degrades to the empty string.
func DecodeActivity(raw RawActivity) (Activity, error) {
	answers := indexAnswers(raw.Answers)

	name := strings.TrimSpace(answers[QuestionName])
	if name == "" {
		return Activity{}, fmt.Errorf("submission from %q has no %q answer", raw.Email, QuestionName)
	}

	place := strings.TrimSpace(answers[QuestionPlace])
	if place == "" {
		place = strings.TrimSpace(answers[QuestionMunicipality])
	}

	return Activity{
		Email:          strings.TrimSpace(raw.Email),
		DependencyID:   raw.Dependency.String(),
		DependencyName: strings.TrimSpace(raw.DependencyName),
		Status:         raw.Status,
		CreatedAt:      parseTimeOrZero(raw.CreatedAt),
		UpdatedAt:      parseTimeOrZero(raw.UpdatedAt),

		Name:        name,
		Objective:   strings.TrimSpace(answers[QuestionObjective]),
		Activities:  strings.TrimSpace(answers[QuestionActivities]),
		Alignment:   strings.TrimSpace(answers[QuestionAlignment]),
		Population:  strings.TrimSpace(answers[QuestionPopulation]),
		Temporality: strings.TrimSpace(answers[QuestionTemporality]),
		Kind:        strings.TrimSpace(answers[QuestionKind]),
		StartDate:   strings.TrimSpace(answers[QuestionStartDate]),

		LocationKind: strings.TrimSpace(answers[QuestionLocationKind]),
		Latitude:     strings.TrimSpace(answers[QuestionLatitude]),
		Longitude:    strings.TrimSpace(answers[QuestionLongitude]),
		Place:        place,
		Municipality: strings.TrimSpace(answers[QuestionMunicipality]),

		EvidencePDF:   strings.TrimSpace(answers[QuestionEvidencePDF]),
		EvidenceImage: strings.TrimSpace(answers[QuestionEvidenceImage]),
		EvidenceVideo: strings.TrimSpace(answers[QuestionEvidenceVideo]),
	}, nil
}

// indexAnswers builds a title→value index. The answer list is unordered and
// occasionally carries duplicates; the first occurrence wins.
func indexAnswers(answers []RawAnswer) map[string]string {
	idx := make(map[string]string, len(answers))
	for _, a := range answers {
		if _, ok := idx[a.QuestionTitle]; !ok {
			idx[a.QuestionTitle] = a.DisplayValue
		}
	}
	return idx
}

// timeLayouts are the timestamp formats observed across survey platform
// versions, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimeOrZero parses a timestamp, returning the zero time on failure.
func parseTimeOrZero(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

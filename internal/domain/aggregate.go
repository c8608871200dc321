package domain

import (
	"log/slog"
	"strings"
)

// objectiveLimit caps the stored objective so one pasted document does not
// dominate popups and the composite key.
const objectiveLimit = 500

// CompositeKey derives a project's identity from the submitting email, the
// project name, and the objective. Timestamps are deliberately excluded so
// repeated submissions of the same project merge instead of duplicating it.
func CompositeKey(email, name, objective string) string {
	return email + "|" + name + "|" + objective
}

// AggregateProjects groups typed activities into projects in input order.
// The first activity for a composite key creates the project; every later
// one appends a location, preserving arrival order. Activities whose
// location cannot be normalized are logged and skipped — one malformed
// submission never aborts the batch. The second return is the number of
// dropped activities.
func AggregateProjects(activities []Activity, region RegionPolicy, logger *slog.Logger) ([]Project, int) {
	byKey := make(map[string]int, len(activities))
	projects := make([]Project, 0, len(activities))
	dropped := 0

	for _, act := range activities {
		objective := truncateRunes(act.Objective, objectiveLimit)
		key := CompositeKey(act.Email, act.Name, objective)

		loc := NormalizeLocation(act, region)
		if loc == nil {
			logger.Warn("skipping activity with unrecognized location type",
				"project", act.Name,
				"email", act.Email,
				"location_kind", act.LocationKind,
			)
			dropped++
			continue
		}

		if i, ok := byKey[key]; ok {
			projects[i].Locations = append(projects[i].Locations, *loc)
			continue
		}

		byKey[key] = len(projects)
		projects = append(projects, Project{
			Key:            key,
			Name:           act.Name,
			Objective:      objective,
			Activities:     act.Activities,
			Alignment:      act.Alignment,
			Population:     act.Population,
			Temporality:    act.Temporality,
			DependencyName: act.DependencyName,
			DependencyID:   act.DependencyID,
			Color:          DependencyColor(act.DependencyName),
			Kind:           normalizeKind(act),
			Status:         StatusActive,
			Email:          act.Email,
			StartDate:      act.StartDate,
			CreatedAt:      act.CreatedAt,
			UpdatedAt:      act.UpdatedAt,
			Locations:      []Location{*loc},
		})
	}

	for i := range projects {
		projects[i].TotalLocations = len(projects[i].Locations)
		projects[i].MultiLocation = len(projects[i].Locations) > 1
	}

	return projects, dropped
}

// normalizeKind returns the explicit type answer when it is one of the two
// known labels. When the answer is absent the kind is derived from the
// submission timestamp: the form only gained the type question with the
// 2024 revision, and everything captured before it was a program.
func normalizeKind(act Activity) string {
	switch strings.TrimSpace(act.Kind) {
	case KindProject:
		return KindProject
	case KindProgram:
		return KindProgram
	}
	if !act.CreatedAt.IsZero() && act.CreatedAt.Year() < 2024 {
		return KindProgram
	}
	return KindProject
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

package domain

import "sort"

// KindCounts breaks projects down by type.
type KindCounts struct {
	Projects int `json:"proyectos"`
	Programs int `json:"programas"`
}

// StatusCounts breaks projects down by status. Only the active bucket is
// populated by the current aggregator; the others exist so downstream
// consumers do not break when the survey starts reporting them.
type StatusCounts struct {
	Active    int `json:"activos"`
	Concluded int `json:"concluidos"`
	Planned   int `json:"planeados"`
}

// Metadata carries the aggregate counts for header statistics and filter
// option generation.
type Metadata struct {
	TotalProjects     int          `json:"total_proyectos"`
	TotalLocations    int          `json:"total_ubicaciones"`
	Dependencies      []string     `json:"dependencias"`
	TotalDependencies int          `json:"total_dependencias"`
	ByKind            KindCounts   `json:"por_tipo"`
	ByStatus          StatusCounts `json:"por_estado"`
}

// Summarize recomputes metadata from scratch over the project collection.
// Pure: no state is kept between calls.
func Summarize(projects []Project) Metadata {
	meta := Metadata{TotalProjects: len(projects)}
	seen := make(map[string]struct{})

	for _, p := range projects {
		meta.TotalLocations += len(p.Locations)

		if p.DependencyName != "" {
			if _, ok := seen[p.DependencyName]; !ok {
				seen[p.DependencyName] = struct{}{}
				meta.Dependencies = append(meta.Dependencies, p.DependencyName)
			}
		}

		switch p.Kind {
		case KindProject:
			meta.ByKind.Projects++
		case KindProgram:
			meta.ByKind.Programs++
		}

		switch p.Status {
		case StatusActive:
			meta.ByStatus.Active++
		case "concluido":
			meta.ByStatus.Concluded++
		case "planeado":
			meta.ByStatus.Planned++
		}
	}

	sort.Strings(meta.Dependencies)
	meta.TotalDependencies = len(meta.Dependencies)
	return meta
}

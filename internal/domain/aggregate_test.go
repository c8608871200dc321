package domain

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func localActivity(email, name, objective string) Activity {
	return Activity{
		Email:        email,
		Name:         name,
		Objective:    objective,
		LocationKind: LocationLocal,
		Latitude:     "19.32",
		Longitude:    "-98.24",
		Place:        "Tlaxcala de Xicohténcatl",
	}
}

func TestAggregateProjects(t *testing.T) {
	region := DefaultRegion()

	t.Run("identical composite keys merge into one project", func(t *testing.T) {
		first := localActivity(testEmail, testProject, "Objetivo común")
		first.CreatedAt = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
		first.Place = "Apizaco"
		second := localActivity(testEmail, testProject, "Objetivo común")
		second.CreatedAt = time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
		second.Place = "Huamantla"

		projects, dropped := AggregateProjects([]Activity{first, second}, region, discardLogger())
		require.Len(t, projects, 1)
		assert.Zero(t, dropped)

		p := projects[0]
		assert.Equal(t, 2, p.TotalLocations)
		assert.True(t, p.MultiLocation)
		require.Len(t, p.Locations, 2)
		assert.Equal(t, "Apizaco", p.Locations[0].Place)
		assert.Equal(t, "Huamantla", p.Locations[1].Place)
		// Descriptive fields come from the first submission.
		assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), p.CreatedAt)
	})

	t.Run("different objectives stay separate projects", func(t *testing.T) {
		a := localActivity(testEmail, testProject, "Objetivo A")
		b := localActivity(testEmail, testProject, "Objetivo B")

		projects, _ := AggregateProjects([]Activity{a, b}, region, discardLogger())
		assert.Len(t, projects, 2)
	})

	t.Run("aggregation is idempotent", func(t *testing.T) {
		input := []Activity{
			localActivity(testEmail, testProject, "Objetivo"),
			localActivity(testEmail, testProject, "Objetivo"),
			localActivity("otra@tlaxcala.gob.mx", "Captación Pluvial", ""),
		}

		first, _ := AggregateProjects(input, region, discardLogger())
		second, _ := AggregateProjects(input, region, discardLogger())
		assert.Equal(t, first, second)
	})

	t.Run("unrecognized location type skips only that record", func(t *testing.T) {
		bad := localActivity(testEmail, "Proyecto Regional", "")
		bad.LocationKind = "Regional"
		good := localActivity(testEmail, testProject, "")

		projects, dropped := AggregateProjects([]Activity{bad, good}, region, discardLogger())
		require.Len(t, projects, 1)
		assert.Equal(t, 1, dropped)
		assert.Equal(t, testProject, projects[0].Name)
	})

	t.Run("objective truncated to 500 runes", func(t *testing.T) {
		act := localActivity(testEmail, testProject, strings.Repeat("á", 600))

		projects, _ := AggregateProjects([]Activity{act}, region, discardLogger())
		require.Len(t, projects, 1)
		assert.Equal(t, 500, len([]rune(projects[0].Objective)))
	})

	t.Run("status fixed to activo", func(t *testing.T) {
		projects, _ := AggregateProjects([]Activity{localActivity(testEmail, testProject, "")}, region, discardLogger())
		require.Len(t, projects, 1)
		assert.Equal(t, StatusActive, projects[0].Status)
	})

	t.Run("single location is not multi-location", func(t *testing.T) {
		projects, _ := AggregateProjects([]Activity{localActivity(testEmail, testProject, "")}, region, discardLogger())
		require.Len(t, projects, 1)
		assert.Equal(t, 1, projects[0].TotalLocations)
		assert.False(t, projects[0].MultiLocation)
	})
}

func TestNormalizeKind(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		created  time.Time
		expected string
	}{
		{"explicit project", KindProject, time.Time{}, KindProject},
		{"explicit program", KindProgram, time.Time{}, KindProgram},
		{"missing, pre-2024 submission", "", time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), KindProgram},
		{"missing, 2024 submission", "", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), KindProject},
		{"missing, no timestamp", "", time.Time{}, KindProject},
		{"unknown label, recent", "Iniciativa", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), KindProject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act := Activity{Kind: tt.kind, CreatedAt: tt.created}
			assert.Equal(t, tt.expected, normalizeKind(act))
		})
	}
}

func TestCompositeKey(t *testing.T) {
	assert.Equal(t, "a@b.mx|Proyecto|Objetivo", CompositeKey("a@b.mx", "Proyecto", "Objetivo"))
	assert.Equal(t, "||", CompositeKey("", "", ""))
}

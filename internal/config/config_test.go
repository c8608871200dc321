package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSurveyURL = "https://encuestas.tlaxcala.gob.mx/api/activities"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SURVEY_URL", testSurveyURL)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, testSurveyURL, cfg.SurveyURL)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 30*time.Second, cfg.ProxyTimeout)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.CacheStaleTTL)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 19.0, cfg.Region.LatMin)
	assert.Equal(t, "Todo el estado", cfg.Region.StatewideLabel)
}

func TestLoad_RequiresSurveyURL(t *testing.T) {
	t.Setenv("SURVEY_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SURVEY_URL")
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("SURVEY_URL", testSurveyURL)
	t.Setenv("CACHE_TTL", "pronto")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_TTL")
}

func TestLoad_StaleTTLMustCoverFreshTTL(t *testing.T) {
	t.Setenv("SURVEY_URL", testSurveyURL)
	t.Setenv("CACHE_TTL", "1h")
	t.Setenv("CACHE_STALE_TTL", "30m")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_OriginsList(t *testing.T) {
	t.Setenv("SURVEY_URL", testSurveyURL)
	t.Setenv("ALLOWED_ORIGINS", "https://clima.tlaxcala.gob.mx, https://localhost:3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://clima.tlaxcala.gob.mx", "https://localhost:3000"}, cfg.AllowedOrigins)
}

func TestLoad_RegionFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "region.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bounding_box:
  lat_min: 18.0
  lat_max: 20.0
  lng_min: -100.0
  lng_max: -96.0
fallback_centroid:
  lat: 19.0
  lng: -98.0
statewide_label: Toda la región
`), 0o644))

	t.Setenv("SURVEY_URL", testSurveyURL)
	t.Setenv("REGION_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 18.0, cfg.Region.LatMin)
	assert.Equal(t, "Toda la región", cfg.Region.StatewideLabel)
}

func TestLoad_RegionFileValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"inverted box", `
bounding_box: {lat_min: 20.0, lat_max: 18.0, lng_min: -100.0, lng_max: -96.0}
fallback_centroid: {lat: 19.0, lng: -98.0}
statewide_label: X
`},
		{"centroid outside box", `
bounding_box: {lat_min: 18.0, lat_max: 20.0, lng_min: -100.0, lng_max: -96.0}
fallback_centroid: {lat: 25.0, lng: -98.0}
statewide_label: X
`},
		{"not yaml", `{{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "region.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			t.Setenv("SURVEY_URL", testSurveyURL)
			t.Setenv("REGION_FILE", path)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

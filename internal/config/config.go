package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/tlaxclima/acciones-service/internal/domain"
)

// Config holds all service settings, populated from environment variables
// with an optional .env file for local development.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	SurveyURL    string
	FetchTimeout time.Duration

	CachePath     string
	CacheTTL      time.Duration
	CacheStaleTTL time.Duration

	// GeoServerURL enables the map-tile proxy when set.
	GeoServerURL string
	ProxyTimeout time.Duration

	AllowedOrigins []string

	Region domain.RegionPolicy
}

// Load reads configuration, applying defaults where unset. A region file
// named by REGION_FILE overrides the Tlaxcala coordinate policy.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local", ".env")

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	proxyTimeout, err := parseDuration("PROXY_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("CACHE_TTL", "10m")
	if err != nil {
		return nil, err
	}
	staleTTL, err := parseDuration("CACHE_STALE_TTL", "24h")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	region, err := loadRegion(os.Getenv("REGION_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SurveyURL:    os.Getenv("SURVEY_URL"),
		FetchTimeout: fetchTimeout,

		CachePath:     envOrDefault("CACHE_PATH", "acciones-snapshot.json"),
		CacheTTL:      cacheTTL,
		CacheStaleTTL: staleTTL,

		GeoServerURL: os.Getenv("GEOSERVER_URL"),
		ProxyTimeout: proxyTimeout,

		AllowedOrigins: splitList(envOrDefault("ALLOWED_ORIGINS", "*")),

		Region: region,
	}

	if cfg.SurveyURL == "" {
		return nil, errors.New("SURVEY_URL is required")
	}
	if cfg.CacheTTL <= 0 || cfg.CacheStaleTTL <= 0 {
		return nil, errors.New("cache TTLs must be positive")
	}
	if cfg.CacheStaleTTL < cfg.CacheTTL {
		return nil, errors.New("CACHE_STALE_TTL must not be shorter than CACHE_TTL")
	}

	return cfg, nil
}

// regionFile is the YAML shape of an optional per-deployment coordinate
// policy override.
type regionFile struct {
	BoundingBox struct {
		LatMin float64 `yaml:"lat_min"`
		LatMax float64 `yaml:"lat_max"`
		LngMin float64 `yaml:"lng_min"`
		LngMax float64 `yaml:"lng_max"`
	} `yaml:"bounding_box"`
	FallbackCentroid struct {
		Lat float64 `yaml:"lat"`
		Lng float64 `yaml:"lng"`
	} `yaml:"fallback_centroid"`
	StatewideLabel string `yaml:"statewide_label"`
}

func loadRegion(path string) (domain.RegionPolicy, error) {
	region := domain.DefaultRegion()
	if path == "" {
		return region, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return region, fmt.Errorf("read region file: %w", err)
	}

	var rf regionFile
	if err := yaml.Unmarshal(b, &rf); err != nil {
		return region, fmt.Errorf("parse region file: %w", err)
	}

	region = domain.RegionPolicy{
		LatMin:         rf.BoundingBox.LatMin,
		LatMax:         rf.BoundingBox.LatMax,
		LngMin:         rf.BoundingBox.LngMin,
		LngMax:         rf.BoundingBox.LngMax,
		FallbackLat:    rf.FallbackCentroid.Lat,
		FallbackLng:    rf.FallbackCentroid.Lng,
		StatewideLabel: rf.StatewideLabel,
	}
	if region.LatMin >= region.LatMax || region.LngMin >= region.LngMax {
		return region, errors.New("region file: bounding box is inverted or empty")
	}
	if !region.Contains(region.FallbackLat, region.FallbackLng) {
		return region, errors.New("region file: fallback centroid is outside the bounding box")
	}
	return region, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := envOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Package dataset orchestrates the fetch-retry-aggregate-cache cycle that
// produces the snapshot every map view is derived from.
package dataset

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/tlaxclima/acciones-service/internal/domain"
	"github.com/tlaxclima/acciones-service/internal/observability"
)

// statusApproved is the moderation status a submission needs before it is
// published on the map.
const statusApproved = "approved"

// Retry policy: up to maxRetries sequential attempts with exponential
// backoff 1s, 2s, 4s capped at 5s. Attempts are never concurrent to avoid
// duplicate load on the survey API.
const (
	maxRetries     = 3
	backoffInitial = time.Second
	backoffCap     = 5 * time.Second
)

// Fetcher retrieves raw submissions from the survey API.
type Fetcher interface {
	FetchActivities(ctx context.Context) ([]domain.RawActivity, error)
}

// Cache persists the last aggregated dataset.
type Cache interface {
	Get() (domain.Dataset, bool)
	GetStale() (domain.Dataset, time.Time, bool)
	Put(domain.Dataset) error
}

// Result is one snapshot handed to the HTTP layer. Markers are rebuilt
// from the projects on every load and never cached.
type Result struct {
	Dataset domain.Dataset
	Markers []domain.Marker

	// Stale marks a snapshot served from an expired cache entry after
	// the survey API could not be reached.
	Stale bool
}

// Manager is the retry controller. It prefers a fresh cache entry, retries
// the fetch with capped exponential backoff, and falls back to an expired
// cache entry before surfacing failure — availability over freshness.
type Manager struct {
	fetcher Fetcher
	cache   Cache
	region  domain.RegionPolicy
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock

	// Concurrent Snapshot callers share one in-flight load instead of
	// racing to populate the cache.
	group singleflight.Group
	ready atomic.Bool
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock swaps the time source used for backoff waits (tests).
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// NewManager wires the retry controller.
func NewManager(fetcher Fetcher, cache Cache, region domain.RegionPolicy, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Manager {
	m := &Manager{
		fetcher: fetcher,
		cache:   cache,
		region:  region,
		logger:  logger,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns the current dataset, fetching and aggregating when the
// cache has no fresh entry.
func (m *Manager) Snapshot(ctx context.Context) (Result, error) {
	return m.load(ctx, false)
}

// Refresh forces a refetch, ignoring the fresh TTL.
func (m *Manager) Refresh(ctx context.Context) (Result, error) {
	return m.load(ctx, true)
}

// CheckReadiness reports nil once one snapshot has been produced.
func (m *Manager) CheckReadiness(_ context.Context) error {
	if !m.ready.Load() {
		return errNotReady
	}
	return nil
}

var errNotReady = &notReadyError{}

type notReadyError struct{}

func (*notReadyError) Error() string { return "no snapshot has been produced yet" }

func (m *Manager) load(ctx context.Context, force bool) (Result, error) {
	key := "snapshot"
	if force {
		key = "refresh"
	}

	// The flight is shared by every concurrent caller, so it must not die
	// with whichever caller happened to start it; the per-attempt fetch
	// timeout still bounds the work.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := m.group.Do(key, func() (any, error) {
		return m.loadOnce(loadCtx, force)
	})
	if err != nil {
		return Result{}, err
	}

	res := v.(Result)
	m.ready.Store(true)
	return res, nil
}

func (m *Manager) loadOnce(ctx context.Context, force bool) (Result, error) {
	if !force {
		if data, ok := m.cache.Get(); ok {
			return Result{Dataset: data, Markers: domain.FlattenMarkers(data.Projects)}, nil
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = backoffInitial
	b.Multiplier = 2
	b.MaxInterval = backoffCap
	b.RandomizationFactor = 0
	b.Reset()

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		raw, err := m.fetcher.FetchActivities(ctx)
		if err == nil {
			data := m.build(raw)
			if putErr := m.cache.Put(data); putErr != nil {
				m.logger.Warn("snapshot cache write failed", "error", putErr)
			}
			return Result{Dataset: data, Markers: domain.FlattenMarkers(data.Projects)}, nil
		}

		lastErr = err
		m.logger.Warn("survey fetch attempt failed",
			"attempt", attempt,
			"max_retries", maxRetries,
			"error", err,
		)

		if attempt == maxRetries {
			break
		}
		if !m.sleep(ctx, b.NextBackOff()) {
			lastErr = ctx.Err()
			break
		}
	}

	if data, writtenAt, ok := m.cache.GetStale(); ok {
		m.logger.Warn("serving stale snapshot after fetch failure",
			"age", m.clock.Now().Sub(writtenAt).String(),
			"error", lastErr,
		)
		return Result{
			Dataset: data,
			Markers: domain.FlattenMarkers(data.Projects),
			Stale:   true,
		}, nil
	}

	return Result{}, &ExhaustedRetriesError{Attempts: maxRetries, Err: lastErr}
}

// build filters to approved submissions, decodes them, and aggregates.
// Per-record failures are logged and skipped; one bad submission never
// blanks the whole map.
func (m *Manager) build(raw []domain.RawActivity) domain.Dataset {
	activities := make([]domain.Activity, 0, len(raw))
	for _, r := range raw {
		if r.Status != statusApproved {
			continue
		}
		act, err := domain.DecodeActivity(r)
		if err != nil {
			m.logger.Warn("skipping undecodable submission", "error", err)
			m.metrics.RecordsSkipped.WithLabelValues("decode").Inc()
			continue
		}
		activities = append(activities, act)
	}

	projects, dropped := domain.AggregateProjects(activities, m.region, m.logger)
	if dropped > 0 {
		m.metrics.RecordsSkipped.WithLabelValues("location").Add(float64(dropped))
	}

	data := domain.Dataset{
		Projects: projects,
		Metadata: domain.Summarize(projects),
	}

	m.metrics.SnapshotBuilds.Inc()
	m.metrics.SnapshotProjects.Set(float64(len(projects)))
	m.metrics.SnapshotMarkers.Set(float64(data.Metadata.TotalLocations))
	m.logger.Info("snapshot built",
		"projects", len(projects),
		"locations", data.Metadata.TotalLocations,
		"dependencies", data.Metadata.TotalDependencies,
	)
	return data
}

// sleep waits d on the injected clock, returning false if the context is
// cancelled first.
func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-m.clock.After(d):
		return true
	}
}

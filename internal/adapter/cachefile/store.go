// Package cachefile persists the last aggregated snapshot to disk so a
// deployment with the survey API unreachable still has last-known data.
package cachefile

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/natefinch/atomic"

	"github.com/tlaxclima/acciones-service/internal/domain"
	"github.com/tlaxclima/acciones-service/internal/observability"
)

// envelope is the on-disk shape. Timestamp is epoch milliseconds, matching
// the format earlier portal versions kept in browser storage, so a snapshot
// file survives upgrades in either direction.
type envelope struct {
	Data      domain.Dataset `json:"data"`
	Timestamp int64          `json:"timestamp"`
}

// Store is a TTL-bounded single-entry snapshot store backed by one JSON
// file. A missing file or a parse failure is a miss, never an error.
type Store struct {
	path     string
	ttl      time.Duration
	staleTTL time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu sync.Mutex
}

// New creates a Store. ttl bounds freshness; staleTTL bounds how old an
// entry the stale-fallback path will still serve.
func New(path string, ttl, staleTTL time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{
		path:     path,
		ttl:      ttl,
		staleTTL: staleTTL,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Get returns the cached dataset if it is still fresh.
func (s *Store) Get() (domain.Dataset, bool) {
	env, ok := s.read()
	if !ok {
		s.metrics.CacheReads.WithLabelValues("miss").Inc()
		return domain.Dataset{}, false
	}

	writtenAt := time.UnixMilli(env.Timestamp)
	if s.clock.Now().Sub(writtenAt) > s.ttl {
		s.metrics.CacheReads.WithLabelValues("miss").Inc()
		return domain.Dataset{}, false
	}

	s.metrics.CacheReads.WithLabelValues("hit").Inc()
	return env.Data, true
}

// GetStale returns the cached dataset ignoring the fresh TTL, along with
// its write time. Entries older than the stale ceiling are not served.
func (s *Store) GetStale() (domain.Dataset, time.Time, bool) {
	env, ok := s.read()
	if !ok {
		return domain.Dataset{}, time.Time{}, false
	}

	writtenAt := time.UnixMilli(env.Timestamp)
	if s.staleTTL > 0 && s.clock.Now().Sub(writtenAt) > s.staleTTL {
		return domain.Dataset{}, time.Time{}, false
	}

	s.metrics.CacheReads.WithLabelValues("stale").Inc()
	return env.Data, writtenAt, true
}

// Put replaces the snapshot with a fresh timestamp. The write is atomic so
// a crash mid-write cannot leave a truncated file behind.
func (s *Store) Put(data domain.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env := envelope{Data: data, Timestamp: s.clock.Now().UnixMilli()}
	b, err := json.Marshal(env)
	if err != nil {
		s.metrics.CacheWriteErrors.Inc()
		return err
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(b)); err != nil {
		s.metrics.CacheWriteErrors.Inc()
		return err
	}
	return nil
}

func (s *Store) read() (envelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("snapshot cache unreadable, treating as miss", "path", s.path, "error", err)
		}
		return envelope{}, false
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		s.logger.Warn("snapshot cache corrupt, treating as miss", "path", s.path, "error", err)
		return envelope{}, false
	}
	if env.Timestamp == 0 {
		return envelope{}, false
	}
	return env, true
}

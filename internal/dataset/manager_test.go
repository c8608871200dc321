package dataset

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tlaxclima/acciones-service/internal/adapter/survey"
	"github.com/tlaxclima/acciones-service/internal/domain"
	"github.com/tlaxclima/acciones-service/internal/observability"
)

type stubFetcher struct {
	mu       sync.Mutex
	calls    int
	failures int // fail this many calls before succeeding
	err      error
	payload  []domain.RawActivity
	block    chan struct{} // when set, every call waits here first
}

func (f *stubFetcher) FetchActivities(ctx context.Context) ([]domain.RawActivity, error) {
	if f.block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.block:
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.payload, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stubCache struct {
	mu      sync.Mutex
	fresh   *domain.Dataset
	stale   *domain.Dataset
	staleAt time.Time
	puts    []domain.Dataset
}

func (c *stubCache) Get() (domain.Dataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fresh == nil {
		return domain.Dataset{}, false
	}
	return *c.fresh, true
}

func (c *stubCache) GetStale() (domain.Dataset, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stale == nil {
		return domain.Dataset{}, time.Time{}, false
	}
	return *c.stale, c.staleAt, true
}

func (c *stubCache) Put(d domain.Dataset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts = append(c.puts, d)
	return nil
}

// recordingClock captures the durations requested from After.
type recordingClock struct {
	clockwork.Clock
	mu    sync.Mutex
	waits []time.Duration
}

func (c *recordingClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	return c.Clock.After(d)
}

func approvedActivity(email, name string) domain.RawActivity {
	return domain.RawActivity{
		Email:          email,
		DependencyName: "SMA",
		Status:         "approved",
		Answers: []domain.RawAnswer{
			{QuestionTitle: domain.QuestionName, DisplayValue: name},
			{QuestionTitle: domain.QuestionLocationKind, DisplayValue: domain.LocationStatewide},
		},
	}
}

func newTestManager(f Fetcher, c Cache, opts ...Option) *Manager {
	return NewManager(f, c, domain.DefaultRegion(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting(),
		opts...,
	)
}

func TestManager_FreshCacheShortCircuits(t *testing.T) {
	cached := domain.Dataset{Metadata: domain.Metadata{TotalProjects: 4}}
	fetcher := &stubFetcher{}
	mgr := newTestManager(fetcher, &stubCache{fresh: &cached})

	res, err := mgr.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Dataset.Metadata.TotalProjects)
	assert.False(t, res.Stale)
	assert.Zero(t, fetcher.callCount(), "fresh cache must not hit the network")
}

func TestManager_RetriesWithBackoffThenSucceeds(t *testing.T) {
	fake := clockwork.NewFakeClock()
	clock := &recordingClock{Clock: fake}
	fetcher := &stubFetcher{
		failures: 2,
		err:      &survey.NetworkError{Err: context.DeadlineExceeded},
		payload:  []domain.RawActivity{approvedActivity("sma@tlaxcala.gob.mx", "Reforestación")},
	}
	cache := &stubCache{}
	mgr := newTestManager(fetcher, cache, WithClock(clock))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2; i++ {
			fake.BlockUntil(1)
			fake.Advance(5 * time.Second)
		}
	}()

	res, err := mgr.Snapshot(context.Background())
	<-done

	require.NoError(t, err)
	assert.Equal(t, 3, fetcher.callCount())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.waits)
	require.Len(t, res.Dataset.Projects, 1)
	assert.False(t, res.Stale)
	require.Len(t, cache.puts, 1, "successful fetch must be cached")
}

func TestManager_StaleCacheFallback(t *testing.T) {
	fake := clockwork.NewFakeClock()
	stale := domain.Dataset{Metadata: domain.Metadata{TotalProjects: 2}}
	fetcher := &stubFetcher{failures: 99, err: &survey.HTTPError{Status: 502}}
	mgr := newTestManager(fetcher, &stubCache{stale: &stale, staleAt: fake.Now().Add(-2 * time.Hour)}, WithClock(fake))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2; i++ {
			fake.BlockUntil(1)
			fake.Advance(5 * time.Second)
		}
	}()

	res, err := mgr.Snapshot(context.Background())
	<-done

	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, 2, res.Dataset.Metadata.TotalProjects)
	assert.Equal(t, 3, fetcher.callCount())
}

func TestManager_ExhaustedRetriesWithoutCache(t *testing.T) {
	fake := clockwork.NewFakeClock()
	fetcher := &stubFetcher{failures: 99, err: &survey.TimeoutError{Timeout: time.Second}}
	mgr := newTestManager(fetcher, &stubCache{}, WithClock(fake))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2; i++ {
			fake.BlockUntil(1)
			fake.Advance(5 * time.Second)
		}
	}()

	_, err := mgr.Snapshot(context.Background())
	<-done

	var exhausted *ExhaustedRetriesError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)

	var timeout *survey.TimeoutError
	assert.ErrorAs(t, err, &timeout, "the last attempt's error must be wrapped")
}

func TestManager_FiltersToApprovedAndSkipsBadRecords(t *testing.T) {
	pending := approvedActivity("a@tlaxcala.gob.mx", "Pendiente")
	pending.Status = "pending"
	nameless := domain.RawActivity{Email: "b@tlaxcala.gob.mx", Status: "approved"}
	badLocation := approvedActivity("c@tlaxcala.gob.mx", "Regional")
	badLocation.Answers[1].DisplayValue = "Regional"

	fetcher := &stubFetcher{payload: []domain.RawActivity{
		pending,
		nameless,
		badLocation,
		approvedActivity("d@tlaxcala.gob.mx", "Captación Pluvial"),
	}}
	mgr := newTestManager(fetcher, &stubCache{})

	res, err := mgr.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Dataset.Projects, 1)
	assert.Equal(t, "Captación Pluvial", res.Dataset.Projects[0].Name)
	assert.Len(t, res.Markers, 1)
}

func TestManager_ConcurrentCallersShareOneFetch(t *testing.T) {
	release := make(chan struct{})
	fetcher := &stubFetcher{
		payload: []domain.RawActivity{approvedActivity("sma@tlaxcala.gob.mx", "Reforestación")},
		block:   release,
	}
	mgr := newTestManager(fetcher, &stubCache{})

	var wg sync.WaitGroup
	results := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = mgr.Snapshot(context.Background())
		}(i)
	}

	// Give the goroutines time to pile up on the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range results {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fetcher.callCount(), "concurrent callers must share one round trip")
}

func TestManager_SharersSurviveOriginatorCancellation(t *testing.T) {
	release := make(chan struct{})
	fetcher := &stubFetcher{
		payload: []domain.RawActivity{approvedActivity("sma@tlaxcala.gob.mx", "Reforestación")},
		block:   release,
	}
	mgr := newTestManager(fetcher, &stubCache{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	firstErr := make(chan error, 1)
	go func() {
		_, err := mgr.Snapshot(firstCtx)
		firstErr <- err
	}()

	// Let the first caller start the flight, pile a second caller onto it,
	// then disconnect the first mid-fetch.
	time.Sleep(50 * time.Millisecond)

	secondErr := make(chan error, 1)
	go func() {
		_, err := mgr.Snapshot(context.Background())
		secondErr <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancelFirst()
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.NoError(t, <-secondErr, "a sharer must not inherit the originator's cancellation")
	require.NoError(t, <-firstErr)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestManager_Readiness(t *testing.T) {
	fetcher := &stubFetcher{payload: []domain.RawActivity{}}
	mgr := newTestManager(fetcher, &stubCache{})

	require.Error(t, mgr.CheckReadiness(context.Background()))

	_, err := mgr.Snapshot(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mgr.CheckReadiness(context.Background()))
}

func TestManager_RefreshIgnoresFreshCache(t *testing.T) {
	cached := domain.Dataset{Metadata: domain.Metadata{TotalProjects: 4}}
	fetcher := &stubFetcher{payload: []domain.RawActivity{approvedActivity("sma@tlaxcala.gob.mx", "Reforestación")}}
	cache := &stubCache{fresh: &cached}
	mgr := newTestManager(fetcher, cache)

	res, err := mgr.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.callCount())
	assert.Equal(t, 1, res.Dataset.Metadata.TotalProjects)
}

package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retailpulse/store-insights/internal/common"
	"github.com/retailpulse/store-insights/internal/store"
)

// stubProvider counts fetches and can fail or stall on demand.
type stubProvider struct {
	mu      sync.Mutex
	calls   int
	fail    bool
	delay   time.Duration
	reading Reading
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Fetch(ctx context.Context, _ store.Coordinates) (Reading, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return Reading{}, ctx.Err()
		}
	}
	if p.fail {
		return Reading{}, errors.New("provider down")
	}
	return p.reading, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestCache(t *testing.T, providers []Provider, cfg Config) (*Cache, store.Store) {
	t.Helper()

	bounds := store.Bounds{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180}
	repo := store.NewMemoryRepository(bounds, nil, nil)
	own, err := repo.Create(store.Store{
		ID:       "own-1",
		Name:     "Main Street",
		Chain:    store.ChainOwn,
		Location: store.Coordinates{Latitude: 10, Longitude: 77},
	})
	require.NoError(t, err)

	return NewCache(repo, providers, cfg), own
}

func TestRefreshStoresLiveSnapshot(t *testing.T) {
	prov := &stubProvider{reading: Reading{
		ProviderName: "stub",
		Timestamp:    time.Now().UTC(),
		TemperatureC: 31.5,
		HumidityPct:  70,
		Condition:    ConditionClear,
	}}
	cache, own := newTestCache(t, []Provider{prov}, Config{})

	snap, err := cache.Refresh(context.Background(), own.ID)
	require.NoError(t, err)
	require.Equal(t, SourceLive, snap.Source)
	require.InDelta(t, 31.5, snap.TemperatureC, 1e-9)

	latest, err := cache.GetLatest(own.ID)
	require.NoError(t, err)
	require.Equal(t, snap, latest)
}

func TestRefreshFallsBackWhenProvidersFail(t *testing.T) {
	prov := &stubProvider{fail: true}
	cache, own := newTestCache(t, []Provider{prov}, Config{})

	snap, err := cache.Refresh(context.Background(), own.ID)
	require.NoError(t, err, "provider failure must never surface to the caller")
	require.Equal(t, SourceFallback, snap.Source)
	require.NotEmpty(t, snap.Date)
	require.NotEmpty(t, snap.Period)

	latest, err := cache.GetLatest(own.ID)
	require.NoError(t, err)
	require.Equal(t, SourceFallback, latest.Source)
}

func TestFallbackIsDeterministic(t *testing.T) {
	date := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
	fetched := time.Date(2025, 6, 15, 14, 5, 0, 0, time.UTC)

	a := fallbackSnapshot(defaultProfile, "own-1", date, common.DaypartAfternoon, fetched)
	b := fallbackSnapshot(defaultProfile, "own-1", date, common.DaypartAfternoon, fetched)
	require.Equal(t, a, b)

	other := fallbackSnapshot(defaultProfile, "own-2", date, common.DaypartAfternoon, fetched)
	require.NotEqual(t, a.TemperatureC, other.TemperatureC)
}

func TestRefreshSingleFlight(t *testing.T) {
	prov := &stubProvider{
		delay: 150 * time.Millisecond,
		reading: Reading{
			ProviderName: "stub",
			Timestamp:    time.Now().UTC(),
			TemperatureC: 28,
			Condition:    ConditionCloudy,
		},
	}
	cache, own := newTestCache(t, []Provider{prov}, Config{})

	var wg sync.WaitGroup
	results := make([]Snapshot, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := cache.Refresh(context.Background(), own.ID)
			require.NoError(t, err)
			results[i] = snap
		}()
	}
	wg.Wait()

	require.Equal(t, 1, prov.callCount(), "concurrent refreshes must share one outbound call")
	require.Equal(t, results[0], results[1])
}

func TestRefreshUpsertsPerDatePeriod(t *testing.T) {
	prov := &stubProvider{reading: Reading{TemperatureC: 30, Condition: ConditionClear}}
	cache, own := newTestCache(t, []Provider{prov}, Config{})

	fixed := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return fixed }

	_, err := cache.Refresh(context.Background(), own.ID)
	require.NoError(t, err)
	_, err = cache.Refresh(context.Background(), own.ID)
	require.NoError(t, err)

	history, err := cache.History(own.ID, fixed.Add(-time.Hour), fixed.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 1, "same (date, period) must replace, not append")
}

func TestStatusTransitions(t *testing.T) {
	prov := &stubProvider{reading: Reading{TemperatureC: 30}}
	cache, own := newTestCache(t, []Provider{prov}, Config{TTL: time.Hour})

	require.Equal(t, StatusStale, cache.Status(own.ID))

	fixed := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return fixed }

	_, err := cache.Refresh(context.Background(), own.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFresh, cache.Status(own.ID))

	cache.now = func() time.Time { return fixed.Add(2 * time.Hour) }
	require.Equal(t, StatusStale, cache.Status(own.ID))
}

func TestStatusRefreshing(t *testing.T) {
	prov := &stubProvider{
		delay:   200 * time.Millisecond,
		reading: Reading{TemperatureC: 30},
	}
	cache, own := newTestCache(t, []Provider{prov}, Config{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := cache.Refresh(context.Background(), own.ID)
		require.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		return cache.Status(own.ID) == StatusRefreshing
	}, 2*time.Second, 5*time.Millisecond)

	wg.Wait()
	require.Equal(t, StatusFresh, cache.Status(own.ID))
}

// stubForecastProvider serves a fixed daily forecast and always fails live
// fetches, so fallback snapshots are the only data path.
type stubForecastProvider struct {
	stubProvider
	forecast    []Reading
	forecastErr error
}

func (p *stubForecastProvider) FetchForecast(_ context.Context, _ store.Coordinates, days int) ([]Reading, error) {
	if p.forecastErr != nil {
		return nil, p.forecastErr
	}
	if len(p.forecast) > days {
		return p.forecast[:days], nil
	}
	return p.forecast, nil
}

func TestWarmProfilesSeedsTodaysDayparts(t *testing.T) {
	now := time.Now().UTC()
	prov := &stubForecastProvider{
		stubProvider: stubProvider{fail: true},
		forecast: []Reading{
			{ProviderName: "stub", Timestamp: now, TemperatureC: 45, Condition: ConditionClear},
			{ProviderName: "stub", Timestamp: now.AddDate(0, 0, 1), TemperatureC: 44, Condition: ConditionClear},
		},
	}
	cache, own := newTestCache(t, []Provider{prov}, Config{})

	require.Equal(t, 1, cache.WarmProfiles(context.Background(), 7))

	history, err := cache.History(own.ID, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, history, len(common.Dayparts()), "one seeded snapshot per daypart")
	for _, snap := range history {
		require.Equal(t, SourceFallback, snap.Source)
	}

	latest, err := cache.GetLatest(own.ID)
	require.NoError(t, err)
	require.Equal(t, SourceFallback, latest.Source)
}

func TestWarmProfilesShiftFallbackBaseline(t *testing.T) {
	now := time.Now().UTC()
	hot := &stubForecastProvider{
		stubProvider: stubProvider{fail: true},
		forecast: []Reading{
			{ProviderName: "stub", Timestamp: now, TemperatureC: 48, Condition: ConditionClear},
		},
	}
	cache, own := newTestCache(t, []Provider{hot}, Config{})
	require.Equal(t, 1, cache.WarmProfiles(context.Background(), 3))

	date := time.Date(now.Year(), now.Month(), 15, 14, 0, 0, 0, time.UTC)
	warmed := fallbackSnapshot(cache.profileFor(own.ID), own.ID, date, common.DaypartAfternoon, now)
	baseline := fallbackSnapshot(defaultProfile, own.ID, date, common.DaypartAfternoon, now)
	require.Greater(t, warmed.TemperatureC, baseline.TemperatureC,
		"a hot forecast must pull the synthetic baseline upward")
}

func TestWarmProfilesKeepsDefaultOnForecastFailure(t *testing.T) {
	prov := &stubForecastProvider{
		stubProvider: stubProvider{fail: true},
		forecastErr:  errors.New("forecast unavailable"),
	}
	cache, own := newTestCache(t, []Provider{prov}, Config{})

	require.Equal(t, 0, cache.WarmProfiles(context.Background(), 7))
	require.Equal(t, defaultProfile, cache.profileFor(own.ID))

	_, err := cache.GetLatest(own.ID)
	require.True(t, errors.Is(err, ErrNoData), "a failed warm-up must not seed snapshots")
}

func TestLiveRefreshSupersedesWarmupSeed(t *testing.T) {
	now := time.Now().UTC()
	prov := &stubForecastProvider{
		stubProvider: stubProvider{reading: Reading{TemperatureC: 31, Condition: ConditionClear}},
		forecast: []Reading{
			{ProviderName: "stub", Timestamp: now, TemperatureC: 30, Condition: ConditionClear},
		},
	}
	cache, own := newTestCache(t, []Provider{prov}, Config{})

	require.Equal(t, 1, cache.WarmProfiles(context.Background(), 3))

	snap, err := cache.Refresh(context.Background(), own.ID)
	require.NoError(t, err)
	require.Equal(t, SourceLive, snap.Source)

	latest, err := cache.GetLatest(own.ID)
	require.NoError(t, err)
	require.Equal(t, SourceLive, latest.Source, "live data must win over warm-up seeds")
}

func TestGetLatestErrors(t *testing.T) {
	cache, own := newTestCache(t, nil, Config{})

	_, err := cache.GetLatest(own.ID)
	require.True(t, errors.Is(err, ErrNoData))

	_, err = cache.GetLatest("missing")
	require.True(t, errors.Is(err, store.ErrNotFound))
}

func TestDaypartBucketing(t *testing.T) {
	cases := map[int]common.Daypart{
		7:  common.DaypartMorning,
		13: common.DaypartAfternoon,
		18: common.DaypartEvening,
		23: common.DaypartNight,
		2:  common.DaypartNight,
	}
	for hour, want := range cases {
		ts := time.Date(2025, 6, 15, hour, 0, 0, 0, time.UTC)
		require.Equal(t, want, common.DaypartOf(ts), "hour %d", hour)
	}
}

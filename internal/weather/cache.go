package weather

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/retailpulse/store-insights/internal/common"
	"github.com/retailpulse/store-insights/internal/store"
)

// ErrNoData is returned when no snapshot has been cached for a store yet.
var ErrNoData = errors.New("no weather data for store")

// Config controls cache freshness and retention.
type Config struct {
	// TTL is how long a snapshot counts as fresh.
	TTL time.Duration
	// RetentionDays bounds the trailing window of kept snapshots.
	RetentionDays int
	// Location is the local timezone used for date/daypart bucketing.
	// Defaults to UTC.
	Location *time.Location
}

// Cache fetches and retains per-store weather snapshots. Reads never block
// on provider I/O; refreshes for the same store collapse into a single
// in-flight fetch.
type Cache struct {
	mu       sync.RWMutex
	history  map[string][]Snapshot // per store, keyed by (date, period)
	profiles map[string]seasonalProfile
	inflight map[string]bool

	stores    store.Repository
	providers []Provider
	sf        singleflight.Group

	ttl           time.Duration
	retentionDays int
	loc           *time.Location
	now           func() time.Time
}

// NewCache creates a cache over the given providers.
func NewCache(stores store.Repository, providers []Provider, cfg Config) *Cache {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	retention := cfg.RetentionDays
	if retention <= 0 {
		retention = 14
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 3 * time.Hour
	}
	return &Cache{
		history:       make(map[string][]Snapshot),
		profiles:      make(map[string]seasonalProfile),
		inflight:      make(map[string]bool),
		stores:        stores,
		providers:     providers,
		ttl:           ttl,
		retentionDays: retention,
		loc:           loc,
		now:           time.Now,
	}
}

// GetLatest returns the most recent snapshot for a store without touching
// any provider. ErrNoData when nothing has been cached yet.
func (c *Cache) GetLatest(storeID string) (Snapshot, error) {
	if _, err := c.stores.Get(storeID); err != nil {
		return Snapshot{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	hist := c.history[storeID]
	if len(hist) == 0 {
		return Snapshot{}, ErrNoData
	}
	return latest(hist), nil
}

// latest picks the snapshot with the newest FetchedAt. Upserts replace
// slots in place and warm-up seeds share one FetchedAt, so position in the
// slice does not imply recency.
func latest(hist []Snapshot) Snapshot {
	best := hist[0]
	for _, s := range hist[1:] {
		if s.FetchedAt.After(best.FetchedAt) {
			best = s
		}
	}
	return best
}

// History returns retained snapshots for a store with FetchedAt in
// [from, to].
func (c *Cache) History(storeID string, from, to time.Time) ([]Snapshot, error) {
	if _, err := c.stores.Get(storeID); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Snapshot
	for _, snap := range c.history[storeID] {
		if !snap.FetchedAt.Before(from) && !snap.FetchedAt.After(to) {
			out = append(out, snap)
		}
	}
	return out, nil
}

// Status reports the freshness state for a store.
func (c *Cache) Status(storeID string) Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.inflight[storeID] {
		return StatusRefreshing
	}
	hist := c.history[storeID]
	if len(hist) == 0 {
		return StatusStale
	}
	if c.now().UTC().Sub(latest(hist).FetchedAt) > c.ttl {
		return StatusStale
	}
	return StatusFresh
}

// WarmProfiles folds provider forecasts into each active own store's
// seasonal fallback profile and seeds today's dayparts with synthetic
// snapshots, so the query surface has data before the first refresh cycle
// lands. A store whose forecast fetch fails keeps the default profile; the
// return value counts the stores warmed.
func (c *Cache) WarmProfiles(ctx context.Context, days int) int {
	var forecasters []ForecastProvider
	for _, p := range c.providers {
		if fp, ok := p.(ForecastProvider); ok {
			forecasters = append(forecasters, fp)
		}
	}
	if len(forecasters) == 0 {
		return 0
	}

	var warmed int
	for _, st := range c.stores.OwnStores() {
		var readings []Reading
		for _, fp := range forecasters {
			r, err := fp.FetchForecast(ctx, st.Location, days)
			if err != nil {
				log.Printf("weather: forecast warm-up via %s failed for store %s: %v", fp.Name(), st.ID, err)
				continue
			}
			readings = append(readings, r...)
		}
		if len(readings) == 0 {
			continue
		}

		profile := defaultProfile.blendForecast(readings)
		c.mu.Lock()
		c.profiles[st.ID] = profile
		c.mu.Unlock()

		today := c.now().In(c.loc)
		for _, period := range common.Dayparts() {
			c.save(fallbackSnapshot(profile, st.ID, today, period, c.now()))
		}
		warmed++
	}
	return warmed
}

// profileFor returns the store's warmed seasonal profile, or the default
// when no forecast has been folded in yet.
func (c *Cache) profileFor(storeID string) seasonalProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if p, ok := c.profiles[storeID]; ok {
		return p
	}
	return defaultProfile
}

// Refresh fetches a new snapshot for the store. Provider failure is
// absorbed: the result falls back to a deterministic synthetic snapshot
// flagged SourceFallback, never an error. Concurrent refreshes for one
// store share a single outbound fetch.
func (c *Cache) Refresh(ctx context.Context, storeID string) (Snapshot, error) {
	st, err := c.stores.Get(storeID)
	if err != nil {
		return Snapshot{}, err
	}

	result, err, _ := c.sf.Do(storeID, func() (interface{}, error) {
		c.setInflight(storeID, true)
		defer c.setInflight(storeID, false)

		snap := c.fetch(ctx, st)
		c.save(snap)
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return result.(Snapshot), nil
}

// fetch queries all providers concurrently and aggregates whatever
// succeeded; with zero successes it synthesizes a fallback snapshot.
func (c *Cache) fetch(ctx context.Context, st store.Store) Snapshot {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		readings []Reading
	)

	for _, p := range c.providers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()

			r, err := p.Fetch(ctx, st.Location)
			if err != nil {
				// Log and continue; partial success is fine.
				log.Printf("weather: provider %s fetch failed for store %s: %v", p.Name(), st.ID, err)
				return
			}

			mu.Lock()
			readings = append(readings, r)
			mu.Unlock()
		}()
	}
	wg.Wait()

	nowLocal := c.now().In(c.loc)

	if len(readings) == 0 {
		log.Printf("weather: all providers failed for store %s; using seasonal fallback", st.ID)
		return fallbackSnapshot(c.profileFor(st.ID), st.ID, nowLocal, common.DaypartOf(nowLocal), c.now())
	}

	agg := aggregateReadings(readings)
	return Snapshot{
		StoreID:      st.ID,
		Date:         nowLocal.Format(DateLayout),
		Period:       common.DaypartOf(nowLocal),
		TemperatureC: agg.TemperatureC,
		Condition:    agg.Condition,
		Humidity:     agg.HumidityPct,
		WindSpeed:    agg.WindSpeedMS,
		Source:       SourceLive,
		FetchedAt:    c.now().UTC(),
	}
}

// save upserts the snapshot into its (date, period) slot and prunes
// entries older than the retention window.
func (c *Cache) save(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hist := c.history[snap.StoreID]

	replaced := false
	for i, existing := range hist {
		if existing.Date == snap.Date && existing.Period == snap.Period {
			hist[i] = snap
			replaced = true
			break
		}
	}
	if !replaced {
		hist = append(hist, snap)
	}

	cutoff := c.now().UTC().AddDate(0, 0, -c.retentionDays)
	i := 0
	for ; i < len(hist); i++ {
		if !hist[i].FetchedAt.Before(cutoff) {
			break
		}
	}
	if i > 0 {
		hist = hist[i:]
	}

	c.history[snap.StoreID] = hist
}

func (c *Cache) setInflight(storeID string, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v {
		c.inflight[storeID] = true
	} else {
		delete(c.inflight, storeID)
	}
}

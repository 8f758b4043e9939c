package scheduler

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/retailpulse/store-insights/internal/geo"
	"github.com/retailpulse/store-insights/internal/insight"
	"github.com/retailpulse/store-insights/internal/snapshot"
	"github.com/retailpulse/store-insights/internal/store"
	"github.com/retailpulse/store-insights/internal/trend"
	"github.com/retailpulse/store-insights/internal/weather"
)

// Job names managed by the pipeline.
const (
	JobWeatherRefresh     = "weather-refresh"
	JobProximityRecompute = "proximity-recompute"
	JobTrendRecompute     = "trend-recompute"
)

// Pipeline owns the recompute jobs: each one builds a complete new
// generation and publishes it atomically, so readers never see a cycle
// half-written.
type Pipeline struct {
	Stores    store.Repository
	Weather   *weather.Cache
	Geo       *geo.Engine
	Trends    *trend.Analyzer
	Insights  *insight.Aggregator
	Proximity *snapshot.Holder[geo.RecordSet]
	TrendSnap *snapshot.Holder[trend.ReportSet]

	// RadiusKm bounds the proximity generation; WindowDays the trend
	// windows; Workers the per-store fan-out (keeps us inside the weather
	// provider's rate limits).
	RadiusKm   float64
	WindowDays int
	Workers    int
}

// Register wires the three jobs into the scheduler at their cadences.
func (p *Pipeline) Register(s *Scheduler, weatherEvery, proximityEvery, trendEvery time.Duration) {
	s.Register(JobWeatherRefresh, weatherEvery, p.WeatherRefreshJob)
	s.Register(JobProximityRecompute, proximityEvery, p.ProximityJob)
	s.Register(JobTrendRecompute, trendEvery, p.TrendJob)
}

// WeatherRefreshJob refreshes every active own store's weather snapshot
// across a bounded worker pool. Individual stores finish their current
// refresh before observing cancellation; a failed store never fails the
// job.
func (p *Pipeline) WeatherRefreshJob(ctx context.Context) error {
	stores := p.Stores.OwnStores()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())

	for _, st := range stores {
		st := st
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil // stop signal observed between stores
			}

			refreshCtx, cancel := context.WithTimeout(gctx, 30*time.Second)
			defer cancel()

			if _, err := p.Weather.Refresh(refreshCtx, st.ID); err != nil {
				log.Printf("scheduler: weather refresh failed for store %s: %v", st.ID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Printf("scheduler: refreshed weather for %d stores", len(stores))
	return nil
}

// ProximityJob regenerates the full proximity record set and publishes it
// in one swap.
func (p *Pipeline) ProximityJob(ctx context.Context) error {
	set, err := p.Geo.SnapshotAll(p.RadiusKm)
	if err != nil {
		return err
	}

	gen := p.Proximity.Publish(set)
	log.Printf("scheduler: published proximity generation v%d for %d stores", gen.Version, len(set))
	return nil
}

// TrendJob recomputes trend reports for every store, publishes the
// generation, and then rebuilds insights so they draw on one consistent
// cycle.
func (p *Pipeline) TrendJob(ctx context.Context) error {
	set, err := p.Trends.SnapshotAll(ctx, p.WindowDays)
	if err != nil {
		return err
	}

	gen := p.TrendSnap.Publish(set)
	log.Printf("scheduler: published trend generation v%d for %d stores", gen.Version, len(set))

	n := p.Insights.RebuildAll()
	log.Printf("scheduler: rebuilt insights for %d stores", n)
	return nil
}

func (p *Pipeline) workers() int {
	if p.Workers <= 0 {
		return 4
	}
	return p.Workers
}

package trend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/retailpulse/store-insights/internal/common"
	"github.com/retailpulse/store-insights/internal/store"
)

// ErrInvalidWindow is returned for non-positive trend windows.
var ErrInvalidWindow = errors.New("window days must be greater than zero")

// Config holds the tunable thresholds for reorder recommendations.
type Config struct {
	// ReorderCoverDays is the days-of-cover below which a reorder is
	// recommended.
	ReorderCoverDays float64
	// CriticalCoverDays is the days-of-cover at or below which the
	// recommendation is critical.
	CriticalCoverDays float64
	// TargetCoverDays is the cover the suggested quantity restores.
	TargetCoverDays float64
	// ConsumptionWindowDays is the trailing window used to estimate
	// average daily consumption.
	ConsumptionWindowDays int
}

func (c Config) withDefaults() Config {
	if c.ReorderCoverDays <= 0 {
		c.ReorderCoverDays = 3
	}
	if c.CriticalCoverDays <= 0 {
		c.CriticalCoverDays = 2
	}
	if c.TargetCoverDays <= 0 {
		c.TargetCoverDays = 7
	}
	if c.ConsumptionWindowDays <= 0 {
		c.ConsumptionWindowDays = 14
	}
	return c
}

// Analyzer computes sales growth, peak-period detection and inventory
// reorder signals from a store's historical series.
type Analyzer struct {
	stores store.Repository
	source Source
	cfg    Config
	now    func() time.Time
}

// NewAnalyzer creates an analyzer over the given transaction source.
func NewAnalyzer(stores store.Repository, source Source, cfg Config) *Analyzer {
	return &Analyzer{
		stores: stores,
		source: source,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}
}

// ComputeTrend partitions the trailing 2×windowDays of history into two
// equal adjacent windows and compares them. Growth against a zero prior
// window is reported as 0, never a division failure. A history shorter
// than two full windows yields a low-confidence summary, not an error.
func (a *Analyzer) ComputeTrend(ctx context.Context, storeID string, windowDays int) (Summary, error) {
	if windowDays <= 0 {
		return Summary{}, fmt.Errorf("%w: got %d", ErrInvalidWindow, windowDays)
	}
	if _, err := a.stores.Get(storeID); err != nil {
		return Summary{}, err
	}

	now := a.now().UTC()
	from := now.AddDate(0, 0, -2*windowDays)

	points, err := a.source.Series(ctx, storeID, from, now)
	if err != nil {
		return Summary{}, fmt.Errorf("transaction source: %w", err)
	}

	cutoff := now.AddDate(0, 0, -windowDays)

	var currentTotal, priorTotal float64
	curByCat := make(map[string]float64)
	priorByCat := make(map[string]float64)
	seenDays := make(map[string]bool)

	buckets := make(map[bucketKey]*bucketStat)

	for _, p := range points {
		seenDays[p.Date.Format("2006-01-02")] = true

		if p.Date.Before(cutoff) {
			priorTotal += p.Value
			priorByCat[p.Category] += p.Value
			continue
		}

		currentTotal += p.Value
		curByCat[p.Category] += p.Value

		k := bucketKey{weekday: p.Date.Weekday(), period: common.DaypartOf(p.Date)}
		b, ok := buckets[k]
		if !ok {
			b = &bucketStat{earliest: p.Date}
			buckets[k] = b
		}
		b.sum += p.Value
		b.count++
		if p.Date.Before(b.earliest) {
			b.earliest = p.Date
		}
	}

	categories := make(map[string]float64, len(curByCat))
	for cat, cur := range curByCat {
		categories[cat] = common.SafeRatio(cur-priorByCat[cat], priorByCat[cat]) * 100
	}
	// Categories that vanished entirely still count as full decline.
	for cat, prior := range priorByCat {
		if _, ok := curByCat[cat]; !ok && prior > 0 {
			categories[cat] = -100
		}
	}

	peakWeekday, peakPeriod := peakBucket(buckets)

	return Summary{
		StoreID:       storeID,
		WindowDays:    windowDays,
		TotalValue:    currentTotal,
		GrowthRatePct: common.SafeRatio(currentTotal-priorTotal, priorTotal) * 100,
		PeakWeekday:   peakWeekday,
		PeakPeriod:    peakPeriod,
		Categories:    categories,
		LowConfidence: len(seenDays) < 2*windowDays,
		ComputedAt:    now,
	}, nil
}

// bucketKey identifies a (weekday, daypart) sales bucket.
type bucketKey struct {
	weekday time.Weekday
	period  common.Daypart
}

type bucketStat struct {
	sum      float64
	count    int
	earliest time.Time
}

// peakBucket picks the (weekday, daypart) bucket with the highest mean
// value, ties broken by the earliest chronological bucket.
func peakBucket(buckets map[bucketKey]*bucketStat) (time.Weekday, common.Daypart) {
	var (
		bestMean     float64
		bestEarliest time.Time
		bestWeekday  time.Weekday
		bestPeriod   common.Daypart
		found        bool
	)

	for k, b := range buckets {
		mean := b.sum / float64(b.count)
		better := !found || mean > bestMean ||
			(mean == bestMean && b.earliest.Before(bestEarliest))
		if better {
			found = true
			bestMean = mean
			bestEarliest = b.earliest
			bestWeekday = k.weekday
			bestPeriod = k.period
		}
	}

	if !found {
		return time.Sunday, common.DaypartMorning
	}
	return bestWeekday, bestPeriod
}

// ReorderSignals computes per-category days-of-cover over the trailing
// consumption window. Categories with zero average consumption are
// excluded.
func (a *Analyzer) ReorderSignals(ctx context.Context, storeID string) ([]ReorderSignal, error) {
	if _, err := a.stores.Get(storeID); err != nil {
		return nil, err
	}

	now := a.now().UTC()
	windowDays := a.cfg.ConsumptionWindowDays
	from := now.AddDate(0, 0, -windowDays)

	points, err := a.source.Series(ctx, storeID, from, now)
	if err != nil {
		return nil, fmt.Errorf("transaction source: %w", err)
	}

	type catState struct {
		consumed  float64
		stock     float64
		stockAsOf time.Time
	}
	cats := make(map[string]*catState)

	for _, p := range points {
		st, ok := cats[p.Category]
		if !ok {
			st = &catState{}
			cats[p.Category] = st
		}
		st.consumed += p.Value
		if !p.Date.Before(st.stockAsOf) {
			st.stockAsOf = p.Date
			st.stock = p.StockLevel
		}
	}

	names := make([]string, 0, len(cats))
	for name := range cats {
		names = append(names, name)
	}
	sort.Strings(names)

	var signals []ReorderSignal
	for _, name := range names {
		st := cats[name]

		adc := st.consumed / float64(windowDays)
		if adc <= 0 {
			continue
		}

		cover := st.stock / adc
		if cover >= a.cfg.ReorderCoverDays {
			continue
		}

		signals = append(signals, ReorderSignal{
			StoreID:             storeID,
			Category:            name,
			StockLevel:          st.stock,
			AvgDailyConsumption: adc,
			DaysOfCover:         cover,
			SuggestedQty:        math.Ceil((a.cfg.TargetCoverDays - cover) * adc),
			Critical:            cover <= a.cfg.CriticalCoverDays,
		})
	}

	return signals, nil
}

// SnapshotAll builds a complete report generation for every active own
// store. A store whose source pull fails is logged and skipped; one bad
// store never fails the cycle.
func (a *Analyzer) SnapshotAll(ctx context.Context, windowDays int) (ReportSet, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, windowDays)
	}

	set := make(ReportSet)
	for _, own := range a.stores.OwnStores() {
		summary, err := a.ComputeTrend(ctx, own.ID, windowDays)
		if err != nil {
			log.Printf("trend: skipping store %s: %v", own.ID, err)
			continue
		}

		reorders, err := a.ReorderSignals(ctx, own.ID)
		if err != nil {
			log.Printf("trend: reorder signals failed for store %s: %v", own.ID, err)
			// Keep the summary; reorders degrade to empty.
		}

		set[own.ID] = Report{Summary: summary, Reorders: reorders}
	}

	return set, nil
}

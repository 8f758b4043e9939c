package insight

import (
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/retailpulse/store-insights/internal/common"
	"github.com/retailpulse/store-insights/internal/geo"
	"github.com/retailpulse/store-insights/internal/snapshot"
	"github.com/retailpulse/store-insights/internal/store"
	"github.com/retailpulse/store-insights/internal/trend"
	"github.com/retailpulse/store-insights/internal/weather"
)

// Config holds the tunable rule thresholds and the cadences used to judge
// input staleness.
type Config struct {
	// GrowthAlertPct flags a sales decline at or below this growth rate.
	GrowthAlertPct float64
	// WeatherVarianceBandPct is the growth swing beyond which adverse
	// weather is called out as a correlated factor.
	WeatherVarianceBandPct float64
	// PressureHighCount is the competitor count at which competitive
	// pressure escalates from medium to high.
	PressureHighCount int

	// Cadences of the producing jobs; recency decays to zero at twice the
	// cadence.
	WeatherCadence   time.Duration
	ProximityCadence time.Duration
	TrendCadence     time.Duration
}

func (c Config) withDefaults() Config {
	if c.GrowthAlertPct == 0 {
		c.GrowthAlertPct = -10
	}
	if c.WeatherVarianceBandPct <= 0 {
		c.WeatherVarianceBandPct = 25
	}
	if c.PressureHighCount <= 0 {
		c.PressureHighCount = 3
	}
	if c.WeatherCadence <= 0 {
		c.WeatherCadence = 3 * time.Hour
	}
	if c.ProximityCadence <= 0 {
		c.ProximityCadence = 24 * time.Hour
	}
	if c.TrendCadence <= 0 {
		c.TrendCadence = 24 * time.Hour
	}
	return c
}

// Aggregator merges proximity, weather and trend outputs into prioritized
// insight records. It only ever reads atomically published generations, so
// one Aggregate call always sees a mutually consistent cycle.
type Aggregator struct {
	stores  store.Repository
	prox    *snapshot.Holder[geo.RecordSet]
	trends  *snapshot.Holder[trend.ReportSet]
	weather *weather.Cache

	insights *snapshot.Holder[RecordSet]

	cfg Config
	now func() time.Time
}

// NewAggregator creates an aggregator reading the given published holders.
func NewAggregator(
	stores store.Repository,
	prox *snapshot.Holder[geo.RecordSet],
	trends *snapshot.Holder[trend.ReportSet],
	weatherCache *weather.Cache,
	cfg Config,
) *Aggregator {
	return &Aggregator{
		stores:   stores,
		prox:     prox,
		trends:   trends,
		weather:  weatherCache,
		insights: snapshot.NewHolder[RecordSet](),
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// Aggregate computes the current insight records for one store, ordered by
// priority (critical first) then confidence descending. Missing inputs
// degrade confidence and skip their categories; only an unknown store is
// an error.
func (a *Aggregator) Aggregate(storeID string) ([]Record, error) {
	if _, err := a.stores.Get(storeID); err != nil {
		return nil, err
	}

	generatedAt := a.now().UTC()

	var (
		records        []Record
		presentInputs  int
		expectedInputs = 3
	)

	// Per-input recency, used to weight the records each input produced.
	proxRecency, trendRecency, weatherRecency := 0.0, 0.0, 0.0

	proxGen, proxOK := a.prox.Load()
	if proxOK {
		presentInputs++
		proxRecency = a.recency(proxGen.ProducedAt, a.cfg.ProximityCadence)
	}

	trendGen, trendOK := a.trends.Load()
	var report trend.Report
	if trendOK {
		var found bool
		report, found = trendGen.Data[storeID]
		trendOK = found
	}
	if trendOK {
		presentInputs++
		trendRecency = a.recency(trendGen.ProducedAt, a.cfg.TrendCadence)
	}

	weatherSnap, weatherErr := a.weather.GetLatest(storeID)
	weatherOK := weatherErr == nil
	if weatherOK {
		presentInputs++
		weatherRecency = a.recency(weatherSnap.FetchedAt, a.cfg.WeatherCadence)
	}

	completeness := float64(presentInputs) / float64(expectedInputs)

	if trendOK {
		records = append(records, a.salesRules(storeID, report.Summary, completeness, trendRecency)...)
		records = append(records, a.inventoryRules(storeID, report.Reorders, completeness, trendRecency)...)
	}
	if proxOK {
		records = append(records, a.competitionRules(storeID, proxGen.Data[storeID], completeness, proxRecency)...)
	}
	if weatherOK {
		records = append(records, a.weatherRules(storeID, weatherSnap, report, trendOK, completeness, weatherRecency)...)
	}

	for i := range records {
		records[i].GeneratedAt = generatedAt
	}

	sortRecords(records)
	return records, nil
}

// RebuildAll regenerates and publishes the full insight generation for
// every active own store. Per-store failures are logged and skipped.
func (a *Aggregator) RebuildAll() int {
	set := make(RecordSet)
	for _, own := range a.stores.OwnStores() {
		records, err := a.Aggregate(own.ID)
		if err != nil {
			log.Printf("insight: skipping store %s: %v", own.ID, err)
			continue
		}
		set[own.ID] = records
	}

	a.insights.Publish(set)
	return len(set)
}

// LatestInsights returns the last published records for a store, computing
// them on the fly when no generation has been published yet.
func (a *Aggregator) LatestInsights(storeID string) ([]Record, error) {
	if _, err := a.stores.Get(storeID); err != nil {
		return nil, err
	}

	gen, ok := a.insights.Load()
	if !ok {
		return a.Aggregate(storeID)
	}
	return gen.Data[storeID], nil
}

func (a *Aggregator) salesRules(storeID string, s trend.Summary, completeness, recency float64) []Record {
	conf := a.confidence(completeness, recency)
	if s.LowConfidence {
		conf *= 0.7
	}

	metrics := map[string]float64{
		"growth_rate_pct": s.GrowthRatePct,
		"total_value":     s.TotalValue,
		"window_days":     float64(s.WindowDays),
	}

	switch {
	case s.GrowthRatePct <= a.cfg.GrowthAlertPct:
		return []Record{{
			StoreID:    storeID,
			Priority:   PriorityHigh,
			Category:   CategorySales,
			Message:    fmt.Sprintf("sales declined %.1f%% against the prior %d-day window", -s.GrowthRatePct, s.WindowDays),
			Metrics:    metrics,
			Confidence: conf,
		}}
	case s.GrowthRatePct >= -a.cfg.GrowthAlertPct:
		return []Record{{
			StoreID:    storeID,
			Priority:   PriorityLow,
			Category:   CategorySales,
			Message:    fmt.Sprintf("sales grew %.1f%% against the prior %d-day window; peak traffic on %s %s", s.GrowthRatePct, s.WindowDays, s.PeakWeekday, s.PeakPeriod),
			Metrics:    metrics,
			Confidence: conf,
		}}
	default:
		return nil
	}
}

func (a *Aggregator) inventoryRules(storeID string, reorders []trend.ReorderSignal, completeness, recency float64) []Record {
	conf := a.confidence(completeness, recency)

	var records []Record
	for _, r := range reorders {
		priority := PriorityHigh
		msg := fmt.Sprintf("%s stock covers %.1f days; reorder %.0f units", r.Category, r.DaysOfCover, r.SuggestedQty)
		if r.Critical {
			priority = PriorityCritical
			msg = fmt.Sprintf("%s stockout imminent: %.1f days of cover left; reorder %.0f units now", r.Category, r.DaysOfCover, r.SuggestedQty)
		}

		records = append(records, Record{
			StoreID:  storeID,
			Priority: priority,
			Category: CategoryInventory,
			Message:  msg,
			Metrics: map[string]float64{
				"days_of_cover":         r.DaysOfCover,
				"stock_level":           r.StockLevel,
				"avg_daily_consumption": r.AvgDailyConsumption,
				"suggested_qty":         r.SuggestedQty,
			},
			Confidence: conf,
		})
	}
	return records
}

func (a *Aggregator) competitionRules(storeID string, prox []geo.Record, completeness, recency float64) []Record {
	if len(prox) == 0 {
		return nil
	}

	conf := a.confidence(completeness, recency)

	priority := PriorityMedium
	if len(prox) >= a.cfg.PressureHighCount {
		priority = PriorityHigh
	}

	nearest := prox[0]
	return []Record{{
		StoreID:  storeID,
		Priority: priority,
		Category: CategoryCompetition,
		Message: fmt.Sprintf("%d competitor stores nearby; closest is %s at %.1f km",
			len(prox), nearest.CompetitorChain, nearest.DistanceKm),
		Metrics: map[string]float64{
			"competitor_count": float64(len(prox)),
			"nearest_km":       nearest.DistanceKm,
		},
		Confidence: conf,
	}}
}

func (a *Aggregator) weatherRules(storeID string, snap weather.Snapshot, report trend.Report, trendOK bool, completeness, recency float64) []Record {
	conf := a.confidence(completeness, recency)
	if snap.Source == weather.SourceFallback {
		// Synthetic data still informs, but with half the confidence.
		conf *= 0.5
	}

	adverse := snap.Condition == weather.ConditionRain ||
		snap.Condition == weather.ConditionStorm ||
		snap.Condition == weather.ConditionSnow
	if !adverse {
		return nil
	}

	metrics := map[string]float64{
		"temperature_c": snap.TemperatureC,
		"humidity_pct":  snap.Humidity,
		"wind_speed_ms": snap.WindSpeed,
	}

	if trendOK && math.Abs(report.Summary.GrowthRatePct) > a.cfg.WeatherVarianceBandPct {
		metrics["growth_rate_pct"] = report.Summary.GrowthRatePct
		return []Record{{
			StoreID:  storeID,
			Priority: PriorityMedium,
			Category: CategoryWeather,
			Message: fmt.Sprintf("%s conditions coincide with a %.1f%% sales swing in the %s period",
				snap.Condition, report.Summary.GrowthRatePct, snap.Period),
			Metrics:    metrics,
			Confidence: conf,
		}}
	}

	return []Record{{
		StoreID:    storeID,
		Priority:   PriorityLow,
		Category:   CategoryWeather,
		Message:    fmt.Sprintf("%s expected during the %s period; footfall may dip", snap.Condition, snap.Period),
		Metrics:    metrics,
		Confidence: conf,
	}}
}

// confidence blends input completeness with the staleness of the record's
// own input, 70/30.
func (a *Aggregator) confidence(completeness, recency float64) float64 {
	return common.Clamp01(0.7*completeness + 0.3*recency)
}

// recency maps an input's age onto [0, 1], decaying linearly to zero at
// twice the producing job's cadence.
func (a *Aggregator) recency(producedAt time.Time, cadence time.Duration) float64 {
	age := a.now().UTC().Sub(producedAt)
	if age < 0 {
		age = 0
	}
	return common.Clamp01(1 - age.Seconds()/(2*cadence.Seconds()))
}

// sortRecords orders by priority (critical first), then confidence
// descending, then category and message for full determinism.
func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Priority.rank() != records[j].Priority.rank() {
			return records[i].Priority.rank() < records[j].Priority.rank()
		}
		if records[i].Confidence != records[j].Confidence {
			return records[i].Confidence > records[j].Confidence
		}
		if records[i].Category != records[j].Category {
			return records[i].Category < records[j].Category
		}
		return records[i].Message < records[j].Message
	})
}

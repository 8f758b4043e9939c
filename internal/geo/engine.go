package geo

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/retailpulse/store-insights/internal/store"
)

// earthRadiusKm is the mean Earth radius used by the spherical
// approximation.
const earthRadiusKm = 6371.0

var (
	// ErrInvalidRadius is returned for non-positive search radii.
	ErrInvalidRadius = errors.New("radius must be greater than zero")

	// ErrInvalidCount is returned for non-positive nearest-neighbor counts.
	ErrInvalidCount = errors.New("count must be greater than zero")
)

// Proximity pairs a competitor store with its distance from the owning
// store.
type Proximity struct {
	Competitor store.Store `json:"competitor"`
	DistanceKm float64     `json:"distanceKm"`
}

// Record is one persisted proximity relationship. A full set of records is
// regenerated, never patched, on each recompute cycle.
type Record struct {
	OwningStoreID     string      `json:"owningStoreId"`
	CompetitorStoreID string      `json:"competitorStoreId"`
	CompetitorChain   store.Chain `json:"competitorChain"`
	DistanceKm        float64     `json:"distanceKm"`
	ComputedAt        time.Time   `json:"computedAt"`
}

// RecordSet maps owning store id to its proximity records, ascending by
// distance.
type RecordSet map[string][]Record

// Engine computes spatial relationships between own stores and
// competitors. Pure computation; the only failures are input validation
// and unknown ids.
type Engine struct {
	stores store.Repository
	now    func() time.Time
}

// NewEngine creates a proximity engine over the given repository.
func NewEngine(stores store.Repository) *Engine {
	return &Engine{stores: stores, now: time.Now}
}

// Distance returns the great-circle distance in kilometers between a and b
// using the haversine formula on a spherical Earth.
func Distance(a, b store.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// FindWithinRadius returns active competitors within radiusKm of the given
// store, ascending by distance, ties broken by competitor id. The store
// itself is never included. An empty result is not an error.
func (e *Engine) FindWithinRadius(storeID string, radiusKm float64) ([]Proximity, error) {
	if radiusKm <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidRadius, radiusKm)
	}

	origin, err := e.stores.Get(storeID)
	if err != nil {
		return nil, err
	}

	results := []Proximity{}
	for _, comp := range e.stores.Competitors() {
		if comp.ID == origin.ID {
			continue
		}
		d := Distance(origin.Location, comp.Location)
		if d <= radiusKm {
			results = append(results, Proximity{Competitor: comp, DistanceKm: d})
		}
	}

	sortProximities(results)
	return results, nil
}

// Nearest returns the n nearest active competitors regardless of distance.
func (e *Engine) Nearest(storeID string, n int) ([]Proximity, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, n)
	}

	origin, err := e.stores.Get(storeID)
	if err != nil {
		return nil, err
	}

	results := []Proximity{}
	for _, comp := range e.stores.Competitors() {
		if comp.ID == origin.ID {
			continue
		}
		results = append(results, Proximity{
			Competitor: comp,
			DistanceKm: Distance(origin.Location, comp.Location),
		})
	}

	sortProximities(results)
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// GroupByChain counts proximity results per competitor chain.
func GroupByChain(records []Proximity) map[store.Chain]int {
	counts := make(map[store.Chain]int)
	for _, r := range records {
		counts[r.Competitor.Chain]++
	}
	return counts
}

// SnapshotAll regenerates the full proximity record set for every active
// own store. The result is a complete generation intended for atomic
// publication; existing records are never patched in place.
func (e *Engine) SnapshotAll(radiusKm float64) (RecordSet, error) {
	if radiusKm <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidRadius, radiusKm)
	}

	computedAt := e.now().UTC()
	set := make(RecordSet)

	for _, own := range e.stores.OwnStores() {
		matches, err := e.FindWithinRadius(own.ID, radiusKm)
		if err != nil {
			return nil, err
		}

		records := make([]Record, 0, len(matches))
		for _, m := range matches {
			records = append(records, Record{
				OwningStoreID:     own.ID,
				CompetitorStoreID: m.Competitor.ID,
				CompetitorChain:   m.Competitor.Chain,
				DistanceKm:        m.DistanceKm,
				ComputedAt:        computedAt,
			})
		}
		set[own.ID] = records
	}

	return set, nil
}

// sortProximities orders ascending by distance, ties broken by competitor
// id for determinism.
func sortProximities(results []Proximity) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].DistanceKm != results[j].DistanceKm {
			return results[i].DistanceKm < results[j].DistanceKm
		}
		return results[i].Competitor.ID < results[j].Competitor.ID
	})
}

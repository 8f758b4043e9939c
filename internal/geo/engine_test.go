package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retailpulse/store-insights/internal/store"
)

// kmPerDegreeLat is the approximate north-south distance of one degree of
// latitude.
const kmPerDegreeLat = 111.19

func newTestRepo(t *testing.T) *store.MemoryRepository {
	t.Helper()

	bounds := store.Bounds{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180}
	return store.NewMemoryRepository(bounds, []store.Chain{"freshmart", "dailybazaar"}, nil)
}

func addStore(t *testing.T, repo *store.MemoryRepository, id string, chain store.Chain, lat, lon float64) store.Store {
	t.Helper()

	s, err := repo.Create(store.Store{
		ID:       id,
		Name:     id,
		Chain:    chain,
		Location: store.Coordinates{Latitude: lat, Longitude: lon},
	})
	require.NoError(t, err)
	return s
}

func TestDistanceSymmetry(t *testing.T) {
	pairs := [][4]float64{
		{12.9716, 77.5946, 13.0827, 80.2707},
		{28.6139, 77.2090, 19.0760, 72.8777},
		{8.5241, 76.9366, 34.0837, 74.7973},
	}

	for _, p := range pairs {
		a := store.Coordinates{Latitude: p[0], Longitude: p[1]}
		b := store.Coordinates{Latitude: p[2], Longitude: p[3]}

		require.InEpsilon(t, Distance(a, b), Distance(b, a), 1e-6)
	}
}

func TestDistanceOneDegreeLatitude(t *testing.T) {
	a := store.Coordinates{Latitude: 10, Longitude: 77}
	b := store.Coordinates{Latitude: 11, Longitude: 77}

	d := Distance(a, b)
	require.InDelta(t, kmPerDegreeLat, d, kmPerDegreeLat*0.01)
}

func TestDistanceZero(t *testing.T) {
	a := store.Coordinates{Latitude: 12.5, Longitude: 76.5}
	require.Equal(t, 0.0, Distance(a, a))
}

func TestFindWithinRadius(t *testing.T) {
	repo := newTestRepo(t)
	own := addStore(t, repo, "own-1", store.ChainOwn, 10, 77)

	// Competitors roughly 2, 8 and 15 km due north.
	addStore(t, repo, "comp-2km", "freshmart", 10+2/kmPerDegreeLat, 77)
	addStore(t, repo, "comp-8km", "dailybazaar", 10+8/kmPerDegreeLat, 77)
	addStore(t, repo, "comp-15km", "freshmart", 10+15/kmPerDegreeLat, 77)

	engine := NewEngine(repo)

	matches, err := engine.FindWithinRadius(own.ID, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "comp-2km", matches[0].Competitor.ID)
	require.Equal(t, "comp-8km", matches[1].Competitor.ID)
	require.Less(t, matches[0].DistanceKm, matches[1].DistanceKm)

	for _, m := range matches {
		require.LessOrEqual(t, m.DistanceKm, 10.0)
		require.NotEqual(t, own.ID, m.Competitor.ID)
	}
}

func TestFindWithinRadiusEmptyResult(t *testing.T) {
	repo := newTestRepo(t)
	own := addStore(t, repo, "own-1", store.ChainOwn, 10, 77)

	engine := NewEngine(repo)

	matches, err := engine.FindWithinRadius(own.ID, 5)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestFindWithinRadiusValidation(t *testing.T) {
	repo := newTestRepo(t)
	own := addStore(t, repo, "own-1", store.ChainOwn, 10, 77)

	engine := NewEngine(repo)

	_, err := engine.FindWithinRadius(own.ID, 0)
	require.True(t, errors.Is(err, ErrInvalidRadius))

	_, err = engine.FindWithinRadius(own.ID, -3)
	require.True(t, errors.Is(err, ErrInvalidRadius))

	_, err = engine.FindWithinRadius("missing", 5)
	require.True(t, errors.Is(err, store.ErrNotFound))
}

func TestFindWithinRadiusExcludesInactive(t *testing.T) {
	repo := newTestRepo(t)
	own := addStore(t, repo, "own-1", store.ChainOwn, 10, 77)
	comp := addStore(t, repo, "comp-1", "freshmart", 10+2/kmPerDegreeLat, 77)

	engine := NewEngine(repo)
	require.NoError(t, repo.Deactivate(comp.ID))

	matches, err := engine.FindWithinRadius(own.ID, 10)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestFindWithinRadiusTieBreak(t *testing.T) {
	repo := newTestRepo(t)
	own := addStore(t, repo, "own-1", store.ChainOwn, 10, 77)

	// Same distance north and... north again: identical coordinates give
	// identical distances, so ordering must fall back to id.
	lat := 10 + 3/kmPerDegreeLat
	addStore(t, repo, "comp-b", "freshmart", lat, 77)
	addStore(t, repo, "comp-a", "dailybazaar", lat, 77)

	engine := NewEngine(repo)

	matches, err := engine.FindWithinRadius(own.ID, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "comp-a", matches[0].Competitor.ID)
	require.Equal(t, "comp-b", matches[1].Competitor.ID)
}

func TestNearest(t *testing.T) {
	repo := newTestRepo(t)
	own := addStore(t, repo, "own-1", store.ChainOwn, 10, 77)
	addStore(t, repo, "comp-near", "freshmart", 10+1/kmPerDegreeLat, 77)
	addStore(t, repo, "comp-far", "freshmart", 10+50/kmPerDegreeLat, 77)

	engine := NewEngine(repo)

	matches, err := engine.Nearest(own.ID, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "comp-near", matches[0].Competitor.ID)

	_, err = engine.Nearest(own.ID, 0)
	require.True(t, errors.Is(err, ErrInvalidCount))
}

func TestGroupByChain(t *testing.T) {
	records := []Proximity{
		{Competitor: store.Store{ID: "a", Chain: "freshmart"}},
		{Competitor: store.Store{ID: "b", Chain: "freshmart"}},
		{Competitor: store.Store{ID: "c", Chain: "dailybazaar"}},
	}

	counts := GroupByChain(records)
	require.Equal(t, 2, counts["freshmart"])
	require.Equal(t, 1, counts["dailybazaar"])
}

func TestSnapshotAll(t *testing.T) {
	repo := newTestRepo(t)
	own := addStore(t, repo, "own-1", store.ChainOwn, 10, 77)
	addStore(t, repo, "comp-1", "freshmart", 10+2/kmPerDegreeLat, 77)
	addStore(t, repo, "comp-out", "freshmart", 10+90/kmPerDegreeLat, 77)

	engine := NewEngine(repo)

	set, err := engine.SnapshotAll(10)
	require.NoError(t, err)
	require.Contains(t, set, own.ID)

	records := set[own.ID]
	require.Len(t, records, 1)
	require.Equal(t, "comp-1", records[0].CompetitorStoreID)
	require.Equal(t, own.ID, records[0].OwningStoreID)
	require.False(t, records[0].ComputedAt.IsZero())
	require.False(t, math.IsNaN(records[0].DistanceKm))

	_, err = engine.SnapshotAll(-1)
	require.True(t, errors.Is(err, ErrInvalidRadius))
}

package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var testBounds = Bounds{MinLat: 6.0, MinLon: 68.0, MaxLat: 37.0, MaxLon: 97.5}

func newTestRepo() *MemoryRepository {
	return NewMemoryRepository(testBounds, []Chain{"freshmart", "dailybazaar"}, nil)
}

func validStore() Store {
	return Store{
		Name:     "Main Street",
		Chain:    ChainOwn,
		Location: Coordinates{Latitude: 12.97, Longitude: 77.59},
		City:     "Bengaluru",
	}
}

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	r := newTestRepo()

	s, err := r.Create(validStore())
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)
	require.True(t, s.Active)
	require.False(t, s.CreatedAt.IsZero())
	require.Equal(t, s.CreatedAt, s.UpdatedAt)

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestCreateRejectsUnknownChain(t *testing.T) {
	r := newTestRepo()

	s := validStore()
	s.Chain = "megamart"
	_, err := r.Create(s)
	require.True(t, errors.Is(err, ErrValidation))
	require.Contains(t, err.Error(), "megamart")
}

func TestCreateRejectsOutOfBoundsCoordinates(t *testing.T) {
	r := newTestRepo()

	s := validStore()
	s.Location = Coordinates{Latitude: 48.85, Longitude: 2.35}
	_, err := r.Create(s)
	require.True(t, errors.Is(err, ErrValidation))
}

func TestCreateRequiresCoordinatesWithoutGeocoder(t *testing.T) {
	r := newTestRepo()

	s := validStore()
	s.Location = Coordinates{}
	_, err := r.Create(s)
	require.True(t, errors.Is(err, ErrValidation))
	require.Contains(t, err.Error(), "coordinates are required")
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	r := newTestRepo()

	s := validStore()
	s.ID = "fixed-id"
	_, err := r.Create(s)
	require.NoError(t, err)

	_, err = r.Create(s)
	require.True(t, errors.Is(err, ErrDuplicateID))
}

func TestGetUnknown(t *testing.T) {
	r := newTestRepo()

	_, err := r.Get("missing")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateMutableFields(t *testing.T) {
	r := newTestRepo()

	created, err := r.Create(validStore())
	require.NoError(t, err)

	in := created
	in.Name = "Main Street Flagship"
	in.Phone = "+91-80-12345678"
	updated, err := r.Update(created.ID, in)
	require.NoError(t, err)
	require.Equal(t, "Main Street Flagship", updated.Name)
	require.Equal(t, "+91-80-12345678", updated.Phone)
	require.Equal(t, created.CreatedAt, updated.CreatedAt)

	_, err = r.Update("missing", in)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestDeactivateDropsFromListings(t *testing.T) {
	r := newTestRepo()

	own, err := r.Create(validStore())
	require.NoError(t, err)

	comp := validStore()
	comp.Name = "FreshMart Central"
	comp.Chain = "freshmart"
	comp.Location = Coordinates{Latitude: 12.98, Longitude: 77.60}
	created, err := r.Create(comp)
	require.NoError(t, err)

	require.Len(t, r.OwnStores(), 1)
	require.Len(t, r.Competitors(), 1)

	require.NoError(t, r.Deactivate(created.ID))
	require.Empty(t, r.Competitors())
	require.Len(t, r.List(false), 2)
	require.Len(t, r.List(true), 1)

	// Deactivated stores remain readable by id.
	got, err := r.Get(created.ID)
	require.NoError(t, err)
	require.False(t, got.Active)

	require.NoError(t, r.Deactivate(own.ID))
	require.Empty(t, r.OwnStores())

	require.True(t, errors.Is(r.Deactivate("missing"), ErrNotFound))
}

func TestListSortedByID(t *testing.T) {
	r := newTestRepo()

	for _, id := range []string{"c-store", "a-store", "b-store"} {
		s := validStore()
		s.ID = id
		_, err := r.Create(s)
		require.NoError(t, err)
	}

	list := r.List(true)
	require.Len(t, list, 3)
	require.Equal(t, "a-store", list[0].ID)
	require.Equal(t, "b-store", list[1].ID)
	require.Equal(t, "c-store", list[2].ID)
}

func TestSeedSkipsInvalidEntries(t *testing.T) {
	r := newTestRepo()

	bad := validStore()
	bad.Chain = "megamart"
	n := r.Seed([]Store{validStore(), bad})
	require.Equal(t, 1, n)
	require.Len(t, r.List(true), 1)
}

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stores.json")
	payload := `[
		{"name": "Main Street", "chain": "own", "location": {"latitude": 12.97, "longitude": 77.59}},
		{"name": "FreshMart Central", "chain": "freshmart", "location": {"latitude": 12.98, "longitude": 77.60}}
	]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	stores, err := LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, stores, 2)
	require.Equal(t, Chain("freshmart"), stores[1].Chain)

	_, err = LoadSeed(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadSeed(path)
	require.Error(t, err)
}

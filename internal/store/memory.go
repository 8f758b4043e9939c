package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no store exists for a given id.
	ErrNotFound = errors.New("store not found")

	// ErrDuplicateID is returned when a store id is already registered.
	ErrDuplicateID = errors.New("store id already registered")

	// ErrValidation is returned when a store fails registration checks.
	ErrValidation = errors.New("invalid store")
)

var validate = validator.New()

// Repository is the contract the in-memory repository (and any future
// persistent repository) must satisfy. Derived-data components read it;
// only administrative tooling writes it.
type Repository interface {
	Create(s Store) (Store, error)
	Get(id string) (Store, error)
	Update(id string, s Store) (Store, error)
	Deactivate(id string) error
	List(onlyActive bool) []Store
	OwnStores() []Store
	Competitors() []Store
}

// MemoryRepository is a concurrency-safe in-memory Repository.
type MemoryRepository struct {
	mu sync.RWMutex

	data map[string]Store

	bounds   Bounds
	chains   map[Chain]bool
	geocoder *AddressGeocoder

	now func() time.Time
}

// NewMemoryRepository creates a repository that accepts the given competitor
// chains (ChainOwn is always accepted) and rejects coordinates outside
// bounds. geocoder may be nil, in which case stores must carry coordinates.
func NewMemoryRepository(bounds Bounds, competitorChains []Chain, geocoder *AddressGeocoder) *MemoryRepository {
	chains := map[Chain]bool{ChainOwn: true}
	for _, c := range competitorChains {
		chains[c] = true
	}
	return &MemoryRepository{
		data:     make(map[string]Store),
		bounds:   bounds,
		chains:   chains,
		geocoder: geocoder,
		now:      time.Now,
	}
}

// Create validates and registers a new store. A missing id is assigned a
// uuid; missing coordinates are geocoded from the address when a geocoder
// is configured.
func (r *MemoryRepository) Create(s Store) (Store, error) {
	if err := validate.Struct(s); err != nil {
		return Store{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !r.chains[s.Chain] {
		return Store{}, fmt.Errorf("%w: unknown chain %q", ErrValidation, s.Chain)
	}

	if s.Location.IsZero() {
		if r.geocoder == nil {
			return Store{}, fmt.Errorf("%w: coordinates are required", ErrValidation)
		}
		loc, err := r.geocoder.Resolve(s)
		if err != nil {
			return Store{}, fmt.Errorf("%w: geocoding failed: %v", ErrValidation, err)
		}
		s.Location = loc
	}
	if !r.bounds.Contains(s.Location) {
		return Store{}, fmt.Errorf("%w: coordinates %.4f,%.4f outside allowed bounds",
			ErrValidation, s.Location.Latitude, s.Location.Longitude)
	}

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Active = true
	s.CreatedAt = r.now().UTC()
	s.UpdatedAt = s.CreatedAt

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[s.ID]; exists {
		return Store{}, fmt.Errorf("%w: %s", ErrDuplicateID, s.ID)
	}
	r.data[s.ID] = s
	return s, nil
}

// Get returns the store with the given id, active or not.
func (r *MemoryRepository) Get(id string) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.data[id]
	if !ok {
		return Store{}, ErrNotFound
	}
	return s, nil
}

// Update replaces mutable fields of an existing store. Administrative path.
func (r *MemoryRepository) Update(id string, in Store) (Store, error) {
	if err := validate.Struct(in); err != nil {
		return Store{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !r.chains[in.Chain] {
		return Store{}, fmt.Errorf("%w: unknown chain %q", ErrValidation, in.Chain)
	}
	if !in.Location.IsZero() && !r.bounds.Contains(in.Location) {
		return Store{}, fmt.Errorf("%w: coordinates outside allowed bounds", ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.data[id]
	if !ok {
		return Store{}, ErrNotFound
	}

	cur.Name = in.Name
	cur.Chain = in.Chain
	if !in.Location.IsZero() {
		cur.Location = in.Location
	}
	cur.Address = in.Address
	cur.City = in.City
	cur.State = in.State
	cur.PostalCode = in.PostalCode
	cur.Phone = in.Phone
	cur.Email = in.Email
	cur.UpdatedAt = r.now().UTC()

	r.data[id] = cur
	return cur, nil
}

// Deactivate soft-deletes a store. Deactivated stores stay readable by id
// but drop out of listings and derived computations.
func (r *MemoryRepository) Deactivate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	s.Active = false
	s.UpdatedAt = r.now().UTC()
	r.data[id] = s
	return nil
}

// List returns stores sorted by id for deterministic output.
func (r *MemoryRepository) List(onlyActive bool) []Store {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Store, 0, len(r.data))
	for _, s := range r.data {
		if onlyActive && !s.Active {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OwnStores returns active own-brand stores.
func (r *MemoryRepository) OwnStores() []Store {
	return r.filter(func(s Store) bool { return s.Active && !s.IsCompetitor() })
}

// Competitors returns active competitor stores.
func (r *MemoryRepository) Competitors() []Store {
	return r.filter(func(s Store) bool { return s.Active && s.IsCompetitor() })
}

func (r *MemoryRepository) filter(keep func(Store) bool) []Store {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Store
	for _, s := range r.data {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

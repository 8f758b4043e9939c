package store

import "time"

// Chain identifies which retail chain a store belongs to. ChainOwn marks
// our own locations; every other allowed value names a competitor chain.
type Chain string

const ChainOwn Chain = "own"

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether the coordinates are unset.
func (c Coordinates) IsZero() bool {
	return c.Latitude == 0 && c.Longitude == 0
}

// Bounds is the country bounding box registrations must fall inside.
type Bounds struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// Contains reports whether c falls inside the bounding box (inclusive).
func (b Bounds) Contains(c Coordinates) bool {
	return c.Latitude >= b.MinLat && c.Latitude <= b.MaxLat &&
		c.Longitude >= b.MinLon && c.Longitude <= b.MaxLon
}

// Store is a canonical retail location, ours or a competitor's.
// Stores are never deleted, only deactivated.
type Store struct {
	ID         string      `json:"id"`
	Name       string      `json:"name" validate:"required"`
	Chain      Chain       `json:"chain" validate:"required"`
	Location   Coordinates `json:"location"`
	Address    string      `json:"address"`
	City       string      `json:"city"`
	State      string      `json:"state"`
	PostalCode string      `json:"postalCode"`
	Phone      string      `json:"phone,omitempty"`
	Email      string      `json:"email,omitempty" validate:"omitempty,email"`
	Active     bool        `json:"active"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// IsCompetitor reports whether the store belongs to a competitor chain.
func (s Store) IsCompetitor() bool {
	return s.Chain != ChainOwn
}

package store

import (
	"fmt"

	"github.com/kelvins/geocoder"
)

// AddressGeocoder resolves coordinates for stores registered without them.
// It wraps the Google geocoding API behind the kelvins/geocoder package.
type AddressGeocoder struct {
	country string
}

// NewAddressGeocoder configures the geocoding API key and returns a
// geocoder scoped to the given country. Returns nil when no key is set.
func NewAddressGeocoder(apiKey, country string) *AddressGeocoder {
	if apiKey == "" {
		return nil
	}
	geocoder.ApiKey = apiKey
	return &AddressGeocoder{country: country}
}

// Resolve geocodes the store's postal address.
func (g *AddressGeocoder) Resolve(s Store) (Coordinates, error) {
	addr := geocoder.Address{
		Street:     s.Address,
		City:       s.City,
		State:      s.State,
		PostalCode: s.PostalCode,
		Country:    g.country,
	}

	loc, err := geocoder.Geocoding(addr)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode %q: %w", s.Name, err)
	}
	return Coordinates{Latitude: loc.Latitude, Longitude: loc.Longitude}, nil
}

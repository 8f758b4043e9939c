package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/retailpulse/store-insights/internal/trend"
)

// MemorySource is an in-memory trend.Source backed by fixture data. Used
// for seeding, local development and tests.
type MemorySource struct {
	mu   sync.RWMutex
	data map[string][]trend.Point
}

// NewMemorySource creates an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{data: make(map[string][]trend.Point)}
}

// Add appends points to a store's series.
func (s *MemorySource) Add(storeID string, points ...trend.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[storeID] = append(s.data[storeID], points...)
}

// Load replaces the series of every store present in data.
func (s *MemorySource) Load(data map[string][]trend.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for storeID, points := range data {
		s.data[storeID] = points
	}
}

// Series returns the store's points within [from, to], sorted by date.
func (s *MemorySource) Series(ctx context.Context, storeID string, from, to time.Time) ([]trend.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []trend.Point
	for _, p := range s.data[storeID] {
		if !p.Date.Before(from) && !p.Date.After(to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// LoadPoints reads fixture series from a JSON file keyed by store id.
func LoadPoints(path string) (map[string][]trend.Point, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sales file: %w", err)
	}

	var data map[string][]trend.Point
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse sales file %s: %w", path, err)
	}
	return data, nil
}

package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
)

// LoadSeed reads a JSON array of stores from path. Used for first-boot
// fixtures until the administrative import tooling registers real data.
func LoadSeed(path string) ([]Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var stores []Store
	if err := json.Unmarshal(raw, &stores); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return stores, nil
}

// Seed registers the given stores, logging and skipping any that fail
// validation. Returns the number registered.
func (r *MemoryRepository) Seed(stores []Store) int {
	var n int
	for _, s := range stores {
		if _, err := r.Create(s); err != nil {
			log.Printf("store: skipping seed entry %q: %v", s.Name, err)
			continue
		}
		n++
	}
	return n
}

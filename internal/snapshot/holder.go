// Package snapshot publishes immutable derived-data generations behind an
// atomic pointer. Producers build a complete generation off to the side and
// swap it in with Publish; readers Load the pointer once per call and never
// observe partial writes.
package snapshot

import (
	"time"

	"go.uber.org/atomic"
)

// Generation is one complete, internally consistent recomputation cycle's
// worth of derived data.
type Generation[T any] struct {
	Version    uint64    `json:"version"`
	ProducedAt time.Time `json:"producedAt"`
	Data       T         `json:"data"`
}

// Holder owns the latest published generation of one derived dataset.
// The zero value is not usable; call NewHolder.
type Holder[T any] struct {
	ptr     atomic.Pointer[Generation[T]]
	version atomic.Uint64

	now func() time.Time
}

// NewHolder creates an empty holder.
func NewHolder[T any]() *Holder[T] {
	return &Holder[T]{now: time.Now}
}

// Publish swaps in a new generation wrapping data and returns it.
// The previous generation stays valid for readers that already loaded it.
func (h *Holder[T]) Publish(data T) *Generation[T] {
	gen := &Generation[T]{
		Version:    h.version.Add(1),
		ProducedAt: h.now().UTC(),
		Data:       data,
	}
	h.ptr.Store(gen)
	return gen
}

// Load returns the latest published generation, or false when nothing has
// been published yet.
func (h *Holder[T]) Load() (*Generation[T], bool) {
	gen := h.ptr.Load()
	if gen == nil {
		return nil, false
	}
	return gen, true
}

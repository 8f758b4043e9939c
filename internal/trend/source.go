package trend

import (
	"context"
	"time"
)

// Source pulls a store's transaction/inventory series from an external
// system. Read-only; the analyzer never writes back.
type Source interface {
	Series(ctx context.Context, storeID string, from, to time.Time) ([]Point, error)
}

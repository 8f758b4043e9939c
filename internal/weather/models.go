package weather

import (
	"time"

	"github.com/retailpulse/store-insights/internal/common"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Source tags where a snapshot's values came from, so consumers can branch
// on an explicit marker instead of probing fields.
type Source string

const (
	// SourceLive means the values came from an external provider.
	SourceLive Source = "live"
	// SourceFallback means the provider was unavailable and the values are
	// synthetic, derived from the store's seasonal profile.
	SourceFallback Source = "fallback"
)

// DateLayout is the civil-date key format for snapshot bucketing.
const DateLayout = "2006-01-02"

// Snapshot is one observed (or synthesized) weather record for a store in
// one daypart. At most one snapshot exists per (store, date, period).
type Snapshot struct {
	StoreID      string         `json:"storeId"`
	Date         string         `json:"date"` // DateLayout, local time
	Period       common.Daypart `json:"period"`
	TemperatureC float64        `json:"temperatureC"`
	Condition    Condition      `json:"condition"`
	Humidity     float64        `json:"humidityPercent"`
	WindSpeed    float64        `json:"windSpeedMs"`
	Source       Source         `json:"source"`
	FetchedAt    time.Time      `json:"fetchedAt"` // always UTC
}

// Status describes the cache freshness state for one store.
type Status string

const (
	// StatusStale means no snapshot exists or the latest one is past TTL.
	StatusStale Status = "stale"
	// StatusRefreshing means a refresh is currently in flight.
	StatusRefreshing Status = "refreshing"
	// StatusFresh means the latest snapshot is within TTL.
	StatusFresh Status = "fresh"
)

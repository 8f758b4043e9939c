package trend

import (
	"time"

	"github.com/retailpulse/store-insights/internal/common"
)

// Point is one observation in a store's transaction/inventory series.
type Point struct {
	Date       time.Time `json:"date"`
	Category   string    `json:"category"`
	Value      float64   `json:"value"`
	StockLevel float64   `json:"stockLevel"`
}

// Summary describes how a store's sales moved between two equal-length
// adjacent windows.
type Summary struct {
	StoreID       string             `json:"storeId"`
	WindowDays    int                `json:"windowDays"`
	TotalValue    float64            `json:"totalValue"`
	GrowthRatePct float64            `json:"growthRatePct"`
	PeakWeekday   time.Weekday       `json:"peakWeekday"`
	PeakPeriod    common.Daypart     `json:"peakPeriod"`
	Categories    map[string]float64 `json:"categories"` // category -> growth pct

	// LowConfidence is set when the history is shorter than two full
	// windows.
	LowConfidence bool      `json:"lowConfidence"`
	ComputedAt    time.Time `json:"computedAt"`
}

// ReorderSignal recommends restocking a category whose projected
// days-of-cover fell below the configured threshold.
type ReorderSignal struct {
	StoreID             string  `json:"storeId"`
	Category            string  `json:"category"`
	StockLevel          float64 `json:"stockLevel"`
	AvgDailyConsumption float64 `json:"avgDailyConsumption"`
	DaysOfCover         float64 `json:"daysOfCover"`
	SuggestedQty        float64 `json:"suggestedQty"`
	Critical            bool    `json:"critical"`
}

// Report bundles one store's trend summary with its reorder signals.
type Report struct {
	Summary  Summary         `json:"summary"`
	Reorders []ReorderSignal `json:"reorders"`
}

// ReportSet maps store id to its latest report; one complete generation per
// recompute cycle.
type ReportSet map[string]Report

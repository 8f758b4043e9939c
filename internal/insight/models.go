package insight

import "time"

// Priority orders insights by urgency.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// rank returns the sort position of a priority, critical first.
func (p Priority) rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// Category names which subsystem an insight derives from.
type Category string

const (
	CategorySales       Category = "sales"
	CategoryInventory   Category = "inventory"
	CategoryWeather     Category = "weather"
	CategoryCompetition Category = "competition"
)

// Record is one scored, prioritized insight for a store. Records are
// regenerated wholesale each aggregation cycle, never patched.
type Record struct {
	StoreID     string             `json:"storeId"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Priority    Priority           `json:"priority"`
	Category    Category           `json:"category"`
	Message     string             `json:"message"`
	Metrics     map[string]float64 `json:"supportingMetrics"`
	Confidence  float64            `json:"confidenceScore"` // 0-1
}

// RecordSet maps store id to its latest insight records.
type RecordSet map[string][]Record

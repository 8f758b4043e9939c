package weather

import (
	"context"
	"time"

	"github.com/retailpulse/store-insights/internal/store"
)

// Reading represents a single provider's normalized observation that can be
// aggregated into a Snapshot.
type Reading struct {
	ProviderName string
	Timestamp    time.Time

	TemperatureC float64
	HumidityPct  float64
	WindSpeedMS  float64
	Condition    Condition
}

// Provider abstracts a weather data source (e.g. OpenWeatherMap,
// WeatherAPI, Open-Meteo). Implementations are expected to handle their own
// retries and circuit breaking.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, coord store.Coordinates) (Reading, error)
}

// ForecastProvider is implemented by providers that can return multi-day
// forecasts, one reading per day.
type ForecastProvider interface {
	Provider
	FetchForecast(ctx context.Context, coord store.Coordinates, days int) ([]Reading, error)
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/retailpulse/store-insights/internal/store"
)

type AppConfig struct {
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	GeocoderAPIKey    string

	// Cadences of the managed refresh jobs.
	WeatherRefreshInterval time.Duration
	ProximityInterval      time.Duration
	TrendInterval          time.Duration

	// Weather cache freshness, retention and boot warm-up.
	WeatherTTL           time.Duration
	WeatherRetentionDays int
	ForecastWarmupDays   int

	// Analysis parameters.
	TrendWindowDays   int
	ProximityRadiusKm float64
	WorkerPoolSize    int

	// Rule thresholds. All tunable; defaults are illustrative.
	ReorderCoverDays       float64
	CriticalCoverDays      float64
	TargetCoverDays        float64
	GrowthAlertPct         float64
	WeatherVarianceBandPct float64
	PressureHighCount      int

	// Store registry.
	GeoBounds        store.Bounds
	CompetitorChains []store.Chain
	Country          string
	SeedFile         string

	// Transaction source: file fixtures or an HTTP backend.
	SalesFile            string
	TransactionSourceURL string

	HTTPTimeout time.Duration
	Port        string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	var err error
	if cfg.WeatherRefreshInterval, err = getenvDuration("WEATHER_REFRESH_INTERVAL", "3h"); err != nil {
		return nil, err
	}
	if cfg.ProximityInterval, err = getenvDuration("PROXIMITY_INTERVAL", "24h"); err != nil {
		return nil, err
	}
	if cfg.TrendInterval, err = getenvDuration("TREND_INTERVAL", "24h"); err != nil {
		return nil, err
	}
	if cfg.WeatherTTL, err = getenvDuration("WEATHER_TTL", "4h"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	cfg.WeatherRetentionDays = getenvInt("WEATHER_RETENTION_DAYS", 14)
	cfg.ForecastWarmupDays = getenvInt("FORECAST_WARMUP_DAYS", 7)
	cfg.TrendWindowDays = getenvInt("TREND_WINDOW_DAYS", 7)
	cfg.ProximityRadiusKm = getenvFloat("PROXIMITY_RADIUS_KM", 10)
	cfg.WorkerPoolSize = getenvInt("WORKER_POOL_SIZE", 4)

	cfg.ReorderCoverDays = getenvFloat("REORDER_COVER_DAYS", 3)
	cfg.CriticalCoverDays = getenvFloat("CRITICAL_COVER_DAYS", 2)
	cfg.TargetCoverDays = getenvFloat("TARGET_COVER_DAYS", 7)
	cfg.GrowthAlertPct = getenvFloat("GROWTH_ALERT_PCT", -10)
	cfg.WeatherVarianceBandPct = getenvFloat("WEATHER_VARIANCE_BAND_PCT", 25)
	cfg.PressureHighCount = getenvInt("PRESSURE_HIGH_COUNT", 3)

	bounds, err := parseBounds(getenvDefault("GEO_BOUNDS", "6.0,68.0,37.0,97.5"))
	if err != nil {
		return nil, err
	}
	cfg.GeoBounds = bounds
	cfg.Country = getenvDefault("GEO_COUNTRY", "India")

	for _, chain := range strings.Split(getenvDefault("COMPETITOR_CHAINS", "freshmart,dailybazaar,quickstop"), ",") {
		chain = strings.TrimSpace(chain)
		if chain != "" {
			cfg.CompetitorChains = append(cfg.CompetitorChains, store.Chain(chain))
		}
	}

	cfg.SeedFile = os.Getenv("STORE_SEED_FILE")
	cfg.SalesFile = os.Getenv("SALES_DATA_FILE")
	cfg.TransactionSourceURL = os.Getenv("TRANSACTION_SOURCE_URL")

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

// parseBounds reads "minLat,minLon,maxLat,maxLon".
func parseBounds(s string) (store.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return store.Bounds{}, fmt.Errorf("invalid GEO_BOUNDS %q: want minLat,minLon,maxLat,maxLon", s)
	}

	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return store.Bounds{}, fmt.Errorf("invalid GEO_BOUNDS %q: %w", s, err)
		}
		vals[i] = v
	}

	b := store.Bounds{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}
	if b.MinLat >= b.MaxLat || b.MinLon >= b.MaxLon {
		return store.Bounds{}, fmt.Errorf("invalid GEO_BOUNDS %q: min must be below max", s)
	}
	return b, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

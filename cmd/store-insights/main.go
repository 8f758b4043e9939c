package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	httpapi "github.com/retailpulse/store-insights/internal/api/http"
	"github.com/retailpulse/store-insights/internal/config"
	"github.com/retailpulse/store-insights/internal/geo"
	"github.com/retailpulse/store-insights/internal/insight"
	"github.com/retailpulse/store-insights/internal/scheduler"
	"github.com/retailpulse/store-insights/internal/snapshot"
	"github.com/retailpulse/store-insights/internal/store"
	"github.com/retailpulse/store-insights/internal/trend"
	"github.com/retailpulse/store-insights/internal/trend/sources"
	"github.com/retailpulse/store-insights/internal/weather"
	"github.com/retailpulse/store-insights/internal/weather/providers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Store registry with optional geocoding for seed entries lacking
	// coordinates.
	geocoder := store.NewAddressGeocoder(cfg.GeocoderAPIKey, cfg.Country)
	repo := store.NewMemoryRepository(cfg.GeoBounds, cfg.CompetitorChains, geocoder)

	if cfg.SeedFile != "" {
		seed, err := store.LoadSeed(cfg.SeedFile)
		if err != nil {
			log.Fatalf("failed to load store seed: %v", err)
		}
		log.Printf("registered %d seed stores", repo.Seed(seed))
	}

	// Weather providers with resilience (backoff + circuit breaker).
	var provs []weather.Provider
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey))
	}
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey))
	}
	// Open-Meteo needs no API key.
	provs = append(provs, providers.NewOpenMeteoProvider(httpClient))

	weatherCache := weather.NewCache(repo, provs, weather.Config{
		TTL:           cfg.WeatherTTL,
		RetentionDays: cfg.WeatherRetentionDays,
	})

	// Transaction source: HTTP backend when configured, file fixtures
	// otherwise.
	var txSource trend.Source
	if cfg.TransactionSourceURL != "" {
		txSource = sources.NewHTTPSource(httpClient, cfg.TransactionSourceURL)
	} else {
		mem := sources.NewMemorySource()
		if cfg.SalesFile != "" {
			data, err := sources.LoadPoints(cfg.SalesFile)
			if err != nil {
				log.Fatalf("failed to load sales data: %v", err)
			}
			mem.Load(data)
		}
		txSource = mem
	}

	geoEngine := geo.NewEngine(repo)
	analyzer := trend.NewAnalyzer(repo, txSource, trend.Config{
		ReorderCoverDays:  cfg.ReorderCoverDays,
		CriticalCoverDays: cfg.CriticalCoverDays,
		TargetCoverDays:   cfg.TargetCoverDays,
	})

	// Published generations read by the aggregator and the API.
	proxHolder := snapshot.NewHolder[geo.RecordSet]()
	trendHolder := snapshot.NewHolder[trend.ReportSet]()

	aggregator := insight.NewAggregator(repo, proxHolder, trendHolder, weatherCache, insight.Config{
		GrowthAlertPct:         cfg.GrowthAlertPct,
		WeatherVarianceBandPct: cfg.WeatherVarianceBandPct,
		PressureHighCount:      cfg.PressureHighCount,
		WeatherCadence:         cfg.WeatherRefreshInterval,
		ProximityCadence:       cfg.ProximityInterval,
		TrendCadence:           cfg.TrendInterval,
	})

	// Scheduler driving the recompute jobs at independent cadences.
	pipeline := &scheduler.Pipeline{
		Stores:     repo,
		Weather:    weatherCache,
		Geo:        geoEngine,
		Trends:     analyzer,
		Insights:   aggregator,
		Proximity:  proxHolder,
		TrendSnap:  trendHolder,
		RadiusKm:   cfg.ProximityRadiusKm,
		WindowDays: cfg.TrendWindowDays,
		Workers:    cfg.WorkerPoolSize,
	}

	sched := scheduler.New()
	pipeline.Register(sched, cfg.WeatherRefreshInterval, cfg.ProximityInterval, cfg.TrendInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	// First-boot initialization so the read surfaces have data before the
	// first scheduled ticks. Forecast warm-up runs first so any fallback
	// snapshots produced below draw on warmed seasonal profiles.
	go func() {
		warmCtx, cancelWarm := context.WithTimeout(context.Background(), time.Minute)
		n := weatherCache.WarmProfiles(warmCtx, cfg.ForecastWarmupDays)
		cancelWarm()
		log.Printf("warmed seasonal profiles for %d stores", n)

		for _, job := range []string{
			scheduler.JobProximityRecompute,
			scheduler.JobWeatherRefresh,
			scheduler.JobTrendRecompute,
		} {
			if err := sched.RunNow(job); err != nil {
				log.Printf("first-boot run of %s failed: %v", job, err)
			}
		}
	}()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "store-insights",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "store-insights",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Stores:    repo,
		Geo:       geoEngine,
		Weather:   weatherCache,
		Insights:  aggregator,
		Scheduler: sched,
		Proximity: proxHolder,
		Trends:    trendHolder,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Printf("error stopping scheduler: %v", err)
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

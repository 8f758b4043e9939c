package httpapi

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/retailpulse/store-insights/internal/geo"
	"github.com/retailpulse/store-insights/internal/insight"
	"github.com/retailpulse/store-insights/internal/scheduler"
	"github.com/retailpulse/store-insights/internal/snapshot"
	"github.com/retailpulse/store-insights/internal/store"
	"github.com/retailpulse/store-insights/internal/trend"
	"github.com/retailpulse/store-insights/internal/weather"
)

var validate = validator.New()

// Deps bundles the read-only surfaces the routes expose. Handlers never
// mutate derived state.
type Deps struct {
	Stores    store.Repository
	Geo       *geo.Engine
	Weather   *weather.Cache
	Insights  *insight.Aggregator
	Scheduler *scheduler.Scheduler
	Proximity *snapshot.Holder[geo.RecordSet]
	Trends    *snapshot.Holder[trend.ReportSet]
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	v1 := app.Group("/api/v1")

	// Bulk listings for the map consumer: direct serialization of the
	// data model, no reprocessing.
	v1.Get("/stores", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"stores": d.Stores.OwnStores()})
	})

	v1.Get("/stores/competitors", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"stores": d.Stores.Competitors()})
	})

	v1.Get("/proximity", func(c *fiber.Ctx) error {
		gen, ok := d.Proximity.Load()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no proximity generation published yet")
		}
		return c.JSON(gen)
	})

	v1.Get("/stores/:id/proximity", func(c *fiber.Ctx) error {
		var req proximityQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		matches, err := d.Geo.FindWithinRadius(c.Params("id"), req.RadiusKm)
		if err != nil {
			return mapError(err, "failed to compute proximity")
		}

		return c.JSON(fiber.Map{
			"storeId":  c.Params("id"),
			"radiusKm": req.RadiusKm,
			"matches":  matches,
			"byChain":  geo.GroupByChain(matches),
		})
	})

	v1.Get("/stores/:id/weather", func(c *fiber.Ctx) error {
		snap, err := d.Weather.GetLatest(c.Params("id"))
		if err != nil {
			return mapError(err, "failed to fetch weather summary")
		}

		return c.JSON(fiber.Map{
			"snapshot": snap,
			"status":   d.Weather.Status(c.Params("id")),
		})
	})

	v1.Get("/stores/:id/insights", func(c *fiber.Ctx) error {
		records, err := d.Insights.LatestInsights(c.Params("id"))
		if err != nil {
			return mapError(err, "failed to fetch insights")
		}
		if records == nil {
			records = []insight.Record{}
		}
		return c.JSON(fiber.Map{"storeId": c.Params("id"), "insights": records})
	})

	v1.Get("/stores/:id/trend", func(c *fiber.Ctx) error {
		if _, err := d.Stores.Get(c.Params("id")); err != nil {
			return mapError(err, "failed to fetch trend")
		}
		gen, ok := d.Trends.Load()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no trend generation published yet")
		}
		report, ok := gen.Data[c.Params("id")]
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no trend report for store")
		}
		return c.JSON(report)
	})

	// Administrative-boundary surface for the scheduler.
	v1.Get("/jobs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"jobs": d.Scheduler.Jobs()})
	})

	v1.Post("/jobs/:name/run", func(c *fiber.Ctx) error {
		if err := d.Scheduler.RunNow(c.Params("name")); err != nil {
			if errors.Is(err, scheduler.ErrUnknownJob) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"job": c.Params("name"), "triggered": true})
	})
}

// proximityQuery holds query parameters for the proximity endpoint.
type proximityQuery struct {
	RadiusKm float64 `validate:"required,gt=0"`
}

func (q *proximityQuery) bind(c *fiber.Ctx) error {
	raw := c.Query("radius_km")
	if raw == "" {
		return errors.New("radius_km query parameter is required")
	}

	r, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return errors.New("radius_km must be a number")
	}
	q.RadiusKm = r

	return validate.Struct(q)
}

// mapError translates domain errors into HTTP codes. Background-path
// failures never reach here; they are absorbed as staleness and fallback
// markers on the data.
func mapError(err error, fallbackMsg string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "store not found")
	case errors.Is(err, weather.ErrNoData):
		return fiber.NewError(fiber.StatusNotFound, "no weather data for store")
	case errors.Is(err, geo.ErrInvalidRadius),
		errors.Is(err, geo.ErrInvalidCount),
		errors.Is(err, trend.ErrInvalidWindow),
		errors.Is(err, store.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, fallbackMsg)
	}
}

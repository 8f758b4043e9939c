package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/retailpulse/store-insights/internal/httpx"
	"github.com/retailpulse/store-insights/internal/store"
	"github.com/retailpulse/store-insights/internal/weather"
)

// OpenMeteoProvider implements weather.Provider and weather.ForecastProvider
// for Open-Meteo. No API key is required.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg httpx.ClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: httpx.ClientConfig{
			Client:  client,
			Backoff: httpx.SingleRetryBackoff(),
		},
		circuit: httpx.NewBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, coord store.Coordinates) (weather.Reading, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", coord.Latitude))
		values.Set("longitude", fmt.Sprintf("%f", coord.Longitude))
		values.Set("current_weather", "true")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		return req, nil
	}

	resp, err := httpx.DoWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Reading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		CurrentWeather struct {
			Temperature float64 `json:"temperature"`
			WindSpeed   float64 `json:"windspeed"`
			Time        string  `json:"time"`
			WeatherCode int     `json:"weathercode"`
		} `json:"current_weather"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, err
	}

	ts, err := time.Parse(time.RFC3339, payload.CurrentWeather.Time)
	if err != nil {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	return weather.Reading{
		ProviderName: p.name,
		Timestamp:    ts,
		TemperatureC: payload.CurrentWeather.Temperature,
		// Open-Meteo current_weather has limited fields; we fill what we can.
		WindSpeedMS: payload.CurrentWeather.WindSpeed,
		Condition:   mapOpenMeteoCondition(payload.CurrentWeather.WeatherCode),
	}, nil
}

// FetchForecast returns one reading per day using Open-Meteo's daily
// forecast endpoint.
func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, coord store.Coordinates, days int) ([]weather.Reading, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be greater than zero")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", coord.Latitude))
		values.Set("longitude", fmt.Sprintf("%f", coord.Longitude))
		values.Set("daily", "temperature_2m_max,temperature_2m_min,weathercode,windspeed_10m_max")
		values.Set("forecast_days", strconv.Itoa(days))
		values.Set("timezone", "UTC")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		return req, nil
	}

	resp, err := httpx.DoWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Daily struct {
			Time        []string  `json:"time"`
			TempMax     []float64 `json:"temperature_2m_max"`
			TempMin     []float64 `json:"temperature_2m_min"`
			WeatherCode []int     `json:"weathercode"`
			WindMax     []float64 `json:"windspeed_10m_max"`
		} `json:"daily"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	readings := make([]weather.Reading, 0, len(payload.Daily.Time))
	for i, day := range payload.Daily.Time {
		ts, err := time.Parse(weather.DateLayout, day)
		if err != nil {
			continue
		}

		var temp float64
		if i < len(payload.Daily.TempMax) && i < len(payload.Daily.TempMin) {
			temp = (payload.Daily.TempMax[i] + payload.Daily.TempMin[i]) / 2
		}

		var wind float64
		if i < len(payload.Daily.WindMax) {
			wind = payload.Daily.WindMax[i]
		}

		cond := weather.ConditionUnknown
		if i < len(payload.Daily.WeatherCode) {
			cond = mapOpenMeteoCondition(payload.Daily.WeatherCode[i])
		}

		readings = append(readings, weather.Reading{
			ProviderName: p.name,
			Timestamp:    ts.UTC(),
			TemperatureC: temp,
			WindSpeedMS:  wind,
			Condition:    cond,
		})
	}

	return readings, nil
}

func mapOpenMeteoCondition(code int) weather.Condition {
	// Mapping based on Open-Meteo weather codes (simplified).
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code >= 45 && code <= 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case code >= 71 && code <= 77:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}

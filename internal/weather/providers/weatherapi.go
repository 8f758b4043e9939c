package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/retailpulse/store-insights/internal/httpx"
	"github.com/retailpulse/store-insights/internal/store"
	"github.com/retailpulse/store-insights/internal/weather"
)

// WeatherAPIProvider implements the weather.Provider interface for
// WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg httpx.ClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/current.json",
		httpCfg: httpx.ClientConfig{
			Client:  client,
			Backoff: httpx.SingleRetryBackoff(),
		},
		circuit: httpx.NewBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, coord store.Coordinates) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, fmt.Errorf("weatherapi api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		// WeatherAPI accepts "lat,lon" in the q parameter.
		values.Set("q", fmt.Sprintf("%f,%f", coord.Latitude, coord.Longitude))

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
		Location struct {
			LocaltimeEpoch int64 `json:"localtime_epoch"`
		} `json:"location"`
		Current struct {
			TempC     float64 `json:"temp_c"`
			Humidity  float64 `json:"humidity"`
			WindKph   float64 `json:"wind_kph"`
			Condition struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, err
	}

	ts := time.Unix(payload.Location.LocaltimeEpoch, 0).UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	// Convert wind from kph to m/s (approx).
	windMS := payload.Current.WindKph / 3.6

	cond := mapWeatherAPICondition(payload.Current.Condition.Text)

	return weather.Reading{
		ProviderName: p.name,
		Timestamp:    ts,
		TemperatureC: payload.Current.TempC,
		HumidityPct:  payload.Current.Humidity,
		WindSpeedMS:  windMS,
		Condition:    cond,
	}, nil
}

func mapWeatherAPICondition(text string) weather.Condition {
	switch {
	case text == "":
		return weather.ConditionUnknown
	case contains(text, "rain") || contains(text, "shower") || contains(text, "drizzle"):
		return weather.ConditionRain
	case contains(text, "snow") || contains(text, "sleet") || contains(text, "blizzard"):
		return weather.ConditionSnow
	case contains(text, "thunder") || contains(text, "storm"):
		return weather.ConditionStorm
	case contains(text, "cloud"):
		return weather.ConditionCloudy
	case contains(text, "mist") || contains(text, "fog"):
		return weather.ConditionMist
	case contains(text, "sunny") || contains(text, "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}

func contains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/retailpulse/store-insights/internal/httpx"
	"github.com/retailpulse/store-insights/internal/trend"
)

// HTTPSource pulls transaction series from the POS backend over HTTP with
// the same retry/breaker discipline as the weather providers.
type HTTPSource struct {
	baseURL string
	httpCfg httpx.ClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewHTTPSource creates a source reading from
// {baseURL}/stores/{id}/transactions.
func NewHTTPSource(client *http.Client, baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		httpCfg: httpx.ClientConfig{
			Client:  client,
			Backoff: httpx.DefaultBackoff(),
		},
		circuit: httpx.NewBreaker("transaction-source"),
	}
}

// Series fetches the store's points within [from, to].
func (s *HTTPSource) Series(ctx context.Context, storeID string, from, to time.Time) ([]trend.Point, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("from", from.Format(time.RFC3339))
		values.Set("to", to.Format(time.RFC3339))

		u := fmt.Sprintf("%s/stores/%s/transactions?%s", s.baseURL, url.PathEscape(storeID), values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		return req, nil
	}

	resp, err := httpx.DoWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var points []trend.Point
	if err := json.NewDecoder(resp.Body).Decode(&points); err != nil {
		return nil, err
	}
	return points, nil
}

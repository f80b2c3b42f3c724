// Package openweather implements the weather source against the
// OpenWeatherMap current-weather API.
package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
	"github.com/couchcryptid/weather-monitor-service/internal/observability"
)

// DefaultBaseURL is the public OpenWeatherMap endpoint.
const DefaultBaseURL = "https://api.openweathermap.org"

// Client fetches current conditions for a city.
type Client struct {
	apiKey     string
	country    string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[domain.Reading]
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// Options configure a Client.
type Options struct {
	APIKey      string
	CountryCode string
	BaseURL     string
	Timeout     time.Duration
}

// NewClient creates an OpenWeatherMap client.
func NewClient(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Client{
		apiKey:     opts.APIKey,
		country:    opts.CountryCode,
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		breaker:    newBreaker(logger),
		logger:     logger,
		metrics:    metrics,
	}
}

func newBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker[domain.Reading] {
	return gobreaker.NewCircuitBreaker[domain.Reading](gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// Only provider outages count; a bad payload or a 429 says the
		// provider is up.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, domain.ErrSourceUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Fetch returns the current normalized reading for city.
func (c *Client) Fetch(ctx context.Context, city string) (domain.Reading, error) {
	start := time.Now()
	reading, err := c.breaker.Execute(func() (domain.Reading, error) {
		return c.fetch(ctx, city)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}
	c.metrics.SourceRequestDuration.WithLabelValues(domain.SourceErrorKind(err)).Observe(time.Since(start).Seconds())
	return reading, err
}

func (c *Client) fetch(ctx context.Context, city string) (domain.Reading, error) {
	q := city
	if c.country != "" {
		q = city + "," + c.country
	}
	params := url.Values{
		"q":     {q},
		"appid": {c.apiKey},
	}
	u := c.baseURL + "/data/2.5/weather?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return domain.Reading{}, ctx.Err()
		}
		// An expired deadline is a provider that did not answer in time.
		return domain.Reading{}, fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, city, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.Reading{}, fmt.Errorf("%w: status %d", domain.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return domain.Reading{}, fmt.Errorf("%w: status %d", domain.ErrSourceUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Reading{}, fmt.Errorf("%w: openweather status %d: %s", domain.ErrInvalidReading, resp.StatusCode, body)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Reading{}, fmt.Errorf("%w: decode response: %w", domain.ErrInvalidReading, err)
	}
	return payload.toReading(city)
}

// OpenWeatherMap API response types.

type response struct {
	Main    *mainBlock `json:"main"`
	Weather []weather  `json:"weather"`
	Dt      int64      `json:"dt"`
}

type mainBlock struct {
	Temp      *float64 `json:"temp"` // Kelvin
	FeelsLike *float64 `json:"feels_like"`
	Humidity  *float64 `json:"humidity"`
}

type weather struct {
	Main string `json:"main"`
}

func (r response) toReading(city string) (domain.Reading, error) {
	if r.Main == nil || r.Main.Temp == nil {
		return domain.Reading{}, fmt.Errorf("%w: missing main.temp", domain.ErrInvalidReading)
	}
	if len(r.Weather) == 0 || r.Weather[0].Main == "" {
		return domain.Reading{}, fmt.Errorf("%w: missing weather condition", domain.ErrInvalidReading)
	}
	if r.Dt <= 0 {
		return domain.Reading{}, fmt.Errorf("%w: missing dt", domain.ErrInvalidReading)
	}

	temp := domain.KelvinToCelsius(*r.Main.Temp)
	feels := temp
	if r.Main.FeelsLike != nil {
		feels = domain.KelvinToCelsius(*r.Main.FeelsLike)
	}

	reading := domain.Reading{
		City:        city,
		Timestamp:   time.Unix(r.Dt, 0).UTC(),
		Temperature: temp,
		FeelsLike:   feels,
		Condition:   r.Weather[0].Main,
	}
	if r.Main.Humidity != nil {
		reading.Humidity = domain.Float(*r.Main.Humidity)
	}
	return reading, nil
}

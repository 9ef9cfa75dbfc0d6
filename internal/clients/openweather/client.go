// Package openweather fetches current-conditions snapshots keyed by
// coordinate from the OpenWeather API.
package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bishop/internal/geo"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

const requestTimeout = 10 * time.Second

type Config struct {
	APIKey  string
	BaseURL string
	Units   string // "metric" unless overridden
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: requestTimeout},
	}
}

// Snapshot is the subset of a weather report the integrations compare.
type Snapshot struct {
	Brief       string  // condition class, e.g. "Clear", "Rain"
	Description string  // human description, e.g. "light rain"
	FeelsLike   float64 // degrees, in configured units
	Humidity    float64 // percent
	WindSpeed   float64
	Place       string // station/locality name as reported by the API
}

// apiResponse mirrors the fields we read from the OpenWeather payload.
type apiResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Name string `json:"name"`
}

// Current fetches the current conditions at the given coordinate.
func (c *Client) Current(ctx context.Context, at geo.Coordinate) (*Snapshot, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("openweather: api key not configured")
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(at.Lon, 'f', -1, 64))
	q.Set("appid", c.cfg.APIKey)
	q.Set("units", c.cfg.Units)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("openweather: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openweather: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openweather: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openweather: read body: %w", err)
	}

	var data apiResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("openweather: decode: %w", err)
	}
	if len(data.Weather) == 0 {
		return nil, fmt.Errorf("openweather: no weather conditions in response")
	}

	return &Snapshot{
		Brief:       data.Weather[0].Main,
		Description: data.Weather[0].Description,
		FeelsLike:   data.Main.FeelsLike,
		Humidity:    data.Main.Humidity,
		WindSpeed:   data.Wind.Speed,
		Place:       data.Name,
	}, nil
}

// Package predictor talks to the external location-prediction model
// service.
package predictor

import (
	"bytes"
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

const requestTimeout = 10 * time.Second

type Config struct {
	BaseURL string // e.g. "http://localhost:5001"
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	return &Client{cfg: cfg, http: &http.Client{Timeout: requestTimeout}}
}

type coordinatePayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Current returns the subject's last known position.
func (c *Client) Current(ctx context.Context) (geo.Coordinate, error) {
	return c.fetch(ctx, c.cfg.BaseURL+"/model/coordinates")
}

// Predict returns the model's predicted position for the given future time.
func (c *Client) Predict(ctx context.Context, at time.Time) (geo.Coordinate, error) {
	q := url.Values{}
	q.Set("timestamp", strconv.FormatInt(at.Unix(), 10))
	return c.fetch(ctx, c.cfg.BaseURL+"/model/coordinates/predict?"+q.Encode())
}

// Record stores a location sample with the model service.
func (c *Client) Record(ctx context.Context, at geo.Coordinate) error {
	body, err := json.Marshal(coordinatePayload{Latitude: at.Lat, Longitude: at.Lon})
	if err != nil {
		return fmt.Errorf("predictor: marshal sample: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/model/coordinates", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("predictor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("predictor: record sample: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("predictor: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) (geo.Coordinate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("predictor: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("predictor: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Coordinate{}, fmt.Errorf("predictor: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("predictor: read body: %w", err)
	}

	var p coordinatePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return geo.Coordinate{}, fmt.Errorf("predictor: decode: %w", err)
	}

	coord := geo.Coordinate{Lat: p.Latitude, Lon: p.Longitude}
	if !coord.Valid() {
		return geo.Coordinate{}, fmt.Errorf("predictor: coordinate out of range: %+v", coord)
	}
	return coord, nil
}

// Package mapbox wraps the Mapbox geocoding and directions APIs.
package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"bishop/internal/geo"
)

const (
	defaultBaseURL = "https://api.mapbox.com"

	requestTimeout = 10 * time.Second
)

// Profile selects the routing profile for directions requests.
type Profile string

const (
	ProfileDriving        Profile = "driving"
	ProfileDrivingTraffic Profile = "driving-traffic"
)

var ErrNoResult = errors.New("mapbox: no result")

type Config struct {
	AccessToken string
	BaseURL     string

	// GeocodeCacheTTL bounds how long a reverse-geocoded place name is
	// reused for nearby lookups. Zero disables caching.
	GeocodeCacheTTL time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client

	// Reverse geocoding is called by several integrations against nearly
	// identical coordinates every cycle; a short TTL cache keeps us under
	// the API quota without changing results meaningfully.
	places *gocache.Cache
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: requestTimeout},
	}
	if cfg.GeocodeCacheTTL > 0 {
		c.places = gocache.New(cfg.GeocodeCacheTTL, 2*cfg.GeocodeCacheTTL)
	}
	return c
}

// Route is the distance/duration pair of the primary route.
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
}

// ReverseGeocode resolves a coordinate to a human-readable place name.
func (c *Client) ReverseGeocode(ctx context.Context, at geo.Coordinate) (string, error) {
	key := fmt.Sprintf("%.4f,%.4f", at.Lat, at.Lon)
	if c.places != nil {
		if v, ok := c.places.Get(key); ok {
			return v.(string), nil
		}
	}

	u := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%f,%f.json", c.cfg.BaseURL, at.Lon, at.Lat)
	q := url.Values{}
	q.Set("access_token", c.cfg.AccessToken)

	var data struct {
		Features []struct {
			PlaceName string `json:"place_name"`
		} `json:"features"`
	}
	if err := c.getJSON(ctx, u+"?"+q.Encode(), &data); err != nil {
		return "", err
	}
	if len(data.Features) == 0 {
		return "", fmt.Errorf("reverse geocode %s: %w", key, ErrNoResult)
	}

	name := data.Features[0].PlaceName
	if c.places != nil {
		c.places.SetDefault(key, name)
	}
	return name, nil
}

// ForwardGeocode resolves a free-text location to a coordinate.
func (c *Client) ForwardGeocode(ctx context.Context, location string) (geo.Coordinate, error) {
	q := url.Values{}
	q.Set("q", location)
	q.Set("limit", "1")
	q.Set("access_token", c.cfg.AccessToken)

	var data struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"` // [lon, lat]
			} `json:"geometry"`
		} `json:"features"`
	}
	u := c.cfg.BaseURL + "/search/geocode/v6/forward?" + q.Encode()
	if err := c.getJSON(ctx, u, &data); err != nil {
		return geo.Coordinate{}, err
	}
	if len(data.Features) == 0 || len(data.Features[0].Geometry.Coordinates) < 2 {
		return geo.Coordinate{}, fmt.Errorf("geocode %q: %w", location, ErrNoResult)
	}

	coords := data.Features[0].Geometry.Coordinates
	return geo.Coordinate{Lat: coords[1], Lon: coords[0]}, nil
}

// Directions fetches the primary route between two coordinates.
func (c *Client) Directions(ctx context.Context, profile Profile, start, end geo.Coordinate) (*Route, error) {
	if profile == "" {
		profile = ProfileDriving
	}
	u := fmt.Sprintf("%s/directions/v5/mapbox/%s/%f,%f;%f,%f",
		c.cfg.BaseURL, profile, start.Lon, start.Lat, end.Lon, end.Lat)
	q := url.Values{}
	q.Set("access_token", c.cfg.AccessToken)
	q.Set("alternatives", "false")
	q.Set("geometries", "geojson")
	q.Set("overview", "full")

	var data struct {
		Routes []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"routes"`
	}
	if err := c.getJSON(ctx, u+"?"+q.Encode(), &data); err != nil {
		return nil, err
	}
	if len(data.Routes) == 0 {
		return nil, nil // no route found is an ordinary outcome
	}
	return &Route{
		DistanceMeters:  data.Routes[0].Distance,
		DurationSeconds: data.Routes[0].Duration,
	}, nil
}

// DrivingRoute fetches the primary route using the traffic-aware driving
// profile.
func (c *Client) DrivingRoute(ctx context.Context, start, end geo.Coordinate) (*Route, error) {
	return c.Directions(ctx, ProfileDrivingTraffic, start, end)
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	if c.cfg.AccessToken == "" {
		return errors.New("mapbox: access token not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("mapbox: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mapbox: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mapbox: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mapbox: read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("mapbox: decode: %w", err)
	}
	return nil
}

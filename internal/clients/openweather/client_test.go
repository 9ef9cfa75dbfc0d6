package openweather

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"

	"bishop/internal/geo"
)

const sampleResponse = `{
  "weather": [{"main": "Rain", "description": "light rain"}],
  "main": {"temp": 10.2, "feels_like": 8.7, "humidity": 81},
  "wind": {"speed": 5.3},
  "name": "Boulder"
}`

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := New(Config{APIKey: "test-key"})
	httpmock.ActivateNonDefault(c.http)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestCurrent(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, defaultBaseURL,
		httpmock.NewStringResponder(http.StatusOK, sampleResponse))

	snap, err := c.Current(context.Background(), geo.Coordinate{Lat: 40, Lon: -105.25})
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if snap.Brief != "Rain" {
		t.Fatalf("expected brief Rain, got %q", snap.Brief)
	}
	if snap.FeelsLike != 8.7 || snap.Humidity != 81 || snap.WindSpeed != 5.3 {
		t.Fatalf("unexpected snapshot values: %+v", snap)
	}
	if snap.Place != "Boulder" {
		t.Fatalf("expected place Boulder, got %q", snap.Place)
	}
}

func TestCurrentHTTPError(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, defaultBaseURL,
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"cod":"401"}`))

	if _, err := c.Current(context.Background(), geo.Coordinate{}); err == nil {
		t.Fatalf("expected error on 401")
	}
}

func TestCurrentEmptyConditions(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, defaultBaseURL,
		httpmock.NewStringResponder(http.StatusOK, `{"weather": [], "main": {}, "wind": {}}`))

	if _, err := c.Current(context.Background(), geo.Coordinate{}); err == nil {
		t.Fatalf("expected error on empty conditions")
	}
}

func TestCurrentNoAPIKey(t *testing.T) {
	c := New(Config{})
	if _, err := c.Current(context.Background(), geo.Coordinate{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}

package traffic

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bishop/internal/clients/mapbox"
	"bishop/internal/geo"
	logx "bishop/pkg/logx"
)

type fakeRoutes struct {
	route *mapbox.Route
	err   error
	calls int
}

func (f *fakeRoutes) DrivingRoute(ctx context.Context, start, end geo.Coordinate) (*mapbox.Route, error) {
	f.calls++
	return f.route, f.err
}

type fakePlaces struct {
	name string
	err  error
}

func (f *fakePlaces) ReverseGeocode(ctx context.Context, at geo.Coordinate) (string, error) {
	return f.name, f.err
}

var (
	boulder    = geo.Coordinate{Lat: 40.00, Lon: -105.25}
	northField = geo.Coordinate{Lat: 40.03, Lon: -105.27} // ~2.3 mi away
)

func TestEvaluateReportsRoundedDistanceAndDuration(t *testing.T) {
	routes := &fakeRoutes{route: &mapbox.Route{DistanceMeters: 3700, DurationSeconds: 600}}
	p := New(routes, &fakePlaces{name: "North Boulder"}, logx.Nop())

	c, err := p.Evaluate(context.Background(), boulder, northField)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if c == nil {
		t.Fatalf("expected a candidate")
	}
	if !strings.Contains(c.Body, "2.30") {
		t.Fatalf("expected 2.30 mi in body, got %q", c.Body)
	}
	if !strings.Contains(c.Body, "10.00") {
		t.Fatalf("expected 10.00 min in body, got %q", c.Body)
	}
	if !strings.Contains(c.Body, "North Boulder") {
		t.Fatalf("expected destination name in body, got %q", c.Body)
	}
}

func TestEvaluateSkipsShortHops(t *testing.T) {
	routes := &fakeRoutes{route: &mapbox.Route{DistanceMeters: 100, DurationSeconds: 30}}
	p := New(routes, &fakePlaces{name: "Next door"}, logx.Nop())

	near := geo.Coordinate{Lat: 40.001, Lon: -105.25}
	c, err := p.Evaluate(context.Background(), boulder, near)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil candidate below min distance")
	}
	if routes.calls != 0 {
		t.Fatalf("no route lookup expected below min distance, got %d calls", routes.calls)
	}
}

func TestEvaluateNilOnNoRoute(t *testing.T) {
	p := New(&fakeRoutes{route: nil}, &fakePlaces{name: "x"}, logx.Nop())

	c, err := p.Evaluate(context.Background(), boulder, northField)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil candidate when no route is found")
	}
}

func TestEvaluateSwallowsRouteFailure(t *testing.T) {
	p := New(&fakeRoutes{err: errors.New("mapbox down")}, &fakePlaces{}, logx.Nop())

	c, err := p.Evaluate(context.Background(), boulder, northField)
	if err != nil {
		t.Fatalf("upstream failure must not surface as error: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil candidate on upstream failure")
	}
}

func TestDirections(t *testing.T) {
	p := New(&fakeRoutes{route: &mapbox.Route{DistanceMeters: 3700, DurationSeconds: 600}}, &fakePlaces{}, logx.Nop())

	r, err := p.Directions(context.Background(), boulder, northField)
	if err != nil {
		t.Fatalf("Directions: %v", err)
	}
	if r == nil || r.DistanceMeters != 3700 || r.DurationSeconds != 600 {
		t.Fatalf("unexpected route %+v", r)
	}
}

package calendar

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bishop/internal/clients/gcal"
	"bishop/internal/clients/mapbox"
	"bishop/internal/geo"
	logx "bishop/pkg/logx"
)

type fakeEvents struct {
	event *gcal.Event
	err   error
}

func (f *fakeEvents) NextEventWithLocation(ctx context.Context) (*gcal.Event, error) {
	return f.event, f.err
}

type fakePlaces struct {
	coord geo.Coordinate
	err   error
}

func (f *fakePlaces) ForwardGeocode(ctx context.Context, location string) (geo.Coordinate, error) {
	return f.coord, f.err
}

type fakeRoutes struct {
	route *mapbox.Route
	err   error
	calls int
}

func (f *fakeRoutes) DrivingRoute(ctx context.Context, start, end geo.Coordinate) (*mapbox.Route, error) {
	f.calls++
	return f.route, f.err
}

var (
	home  = geo.Coordinate{Lat: 40.00, Lon: -105.25}
	venue = geo.Coordinate{Lat: 40.05, Lon: -105.30} // well past the proximity gate
)

func TestEvaluateRemindsWithDriveTime(t *testing.T) {
	p := New(
		&fakeEvents{event: &gcal.Event{Summary: "Dentist", Location: "Pearl St"}},
		&fakePlaces{coord: venue},
		&fakeRoutes{route: &mapbox.Route{DistanceMeters: 8000, DurationSeconds: 900}},
		logx.Nop(),
	)

	c, err := p.Evaluate(context.Background(), home, home)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if c == nil {
		t.Fatalf("expected a candidate")
	}
	if !strings.Contains(c.Body, "Dentist") || !strings.Contains(c.Body, "Pearl St") {
		t.Fatalf("expected event details in body, got %q", c.Body)
	}
	if !strings.Contains(c.Body, "15 min") {
		t.Fatalf("expected 15 min drive time, got %q", c.Body)
	}
}

func TestEvaluateNilWithoutEvent(t *testing.T) {
	routes := &fakeRoutes{}
	p := New(&fakeEvents{}, &fakePlaces{coord: venue}, routes, logx.Nop())

	c, err := p.Evaluate(context.Background(), home, home)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil candidate without an event")
	}
	if routes.calls != 0 {
		t.Fatalf("no route lookup expected without an event")
	}
}

func TestEvaluateSkipsNearbyVenue(t *testing.T) {
	near := geo.Coordinate{Lat: 40.001, Lon: -105.25}
	routes := &fakeRoutes{route: &mapbox.Route{DistanceMeters: 100, DurationSeconds: 60}}
	p := New(
		&fakeEvents{event: &gcal.Event{Summary: "Coffee", Location: "Corner cafe"}},
		&fakePlaces{coord: near},
		routes,
		logx.Nop(),
	)

	c, err := p.Evaluate(context.Background(), home, home)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil candidate inside proximity gate, got %+v", c)
	}
	if routes.calls != 0 {
		t.Fatalf("no route lookup expected inside proximity gate")
	}
}

func TestEvaluateSwallowsCalendarFailure(t *testing.T) {
	p := New(
		&fakeEvents{err: errors.New("calendar down")},
		&fakePlaces{coord: venue},
		&fakeRoutes{},
		logx.Nop(),
	)

	c, err := p.Evaluate(context.Background(), home, home)
	if err != nil {
		t.Fatalf("upstream failure must not surface as error: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil candidate on upstream failure")
	}
}

func TestEvaluateSwallowsGeocodeFailure(t *testing.T) {
	p := New(
		&fakeEvents{event: &gcal.Event{Summary: "Gym", Location: "Somewhere vague"}},
		&fakePlaces{err: errors.New("no result")},
		&fakeRoutes{},
		logx.Nop(),
	)

	c, err := p.Evaluate(context.Background(), home, home)
	if err != nil {
		t.Fatalf("geocode failure must not surface as error: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil candidate on geocode failure")
	}
}

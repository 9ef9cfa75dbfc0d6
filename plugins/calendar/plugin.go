// Package calendar reminds about the next calendar event that has a
// location, with a drive-time estimate from the current position.
package calendar

import (
	"context"
	"fmt"

	"bishop/internal/clients/gcal"
	"bishop/internal/clients/mapbox"
	"bishop/internal/geo"
	"bishop/internal/integration"
	logx "bishop/pkg/logx"
)

// defaultProximityMiles: events closer than this need no reminder, the
// user is effectively already there.
const defaultProximityMiles = 0.5

type EventSource interface {
	NextEventWithLocation(ctx context.Context) (*gcal.Event, error)
}

type Geocoder interface {
	ForwardGeocode(ctx context.Context, location string) (geo.Coordinate, error)
}

type RouteSource interface {
	DrivingRoute(ctx context.Context, start, end geo.Coordinate) (*mapbox.Route, error)
}

type Plugin struct {
	log    logx.Logger
	events EventSource
	places Geocoder
	routes RouteSource

	proximityMiles float64
}

func New(events EventSource, places Geocoder, routes RouteSource, log logx.Logger) *Plugin {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Plugin{
		log:            log.With(logx.String("integration", "calendar")),
		events:         events,
		places:         places,
		routes:         routes,
		proximityMiles: defaultProximityMiles,
	}
}

// SetProximity overrides the straight-line gate (miles). Values <= 0
// keep the default.
func (p *Plugin) SetProximity(miles float64) {
	if miles > 0 {
		p.proximityMiles = miles
	}
}

func (p *Plugin) Evaluate(ctx context.Context, current, predicted geo.Coordinate) (*integration.Candidate, error) {
	event, err := p.events.NextEventWithLocation(ctx)
	if err != nil {
		p.log.Warn("calendar fetch failed", logx.Err(err))
		return nil, nil
	}
	if event == nil {
		return nil, nil
	}

	venue, err := p.places.ForwardGeocode(ctx, event.Location)
	if err != nil {
		p.log.Warn("geocode failed", logx.String("location", event.Location), logx.Err(err))
		return nil, nil
	}

	if geo.Haversine(current, venue) <= p.proximityMiles {
		return nil, nil
	}

	route, err := p.routes.DrivingRoute(ctx, current, venue)
	if err != nil {
		p.log.Warn("route fetch failed", logx.Err(err))
		return nil, nil
	}
	if route == nil {
		return nil, nil
	}

	return &integration.Candidate{
		Title: "Upcoming event",
		Body: fmt.Sprintf("%s at %s is %.0f min away by car.",
			event.Summary, event.Location, route.DurationSeconds/60),
	}, nil
}

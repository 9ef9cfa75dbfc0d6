// Package traffic alerts with drive distance and ETA when the predicted
// location is far enough from the current one to be worth a trip.
package traffic

import (
	"context"
	"fmt"

	"bishop/internal/clients/mapbox"
	"bishop/internal/geo"
	"bishop/internal/integration"
	logx "bishop/pkg/logx"
)

// defaultMinDistanceMiles is the straight-line distance below which no
// route lookup happens at all.
const defaultMinDistanceMiles = 1.0

type RouteSource interface {
	DrivingRoute(ctx context.Context, start, end geo.Coordinate) (*mapbox.Route, error)
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, at geo.Coordinate) (string, error)
}

type Plugin struct {
	log    logx.Logger
	routes RouteSource
	places Geocoder

	minDistanceMiles float64
}

func New(routes RouteSource, places Geocoder, log logx.Logger) *Plugin {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Plugin{
		log:              log.With(logx.String("integration", "traffic")),
		routes:           routes,
		places:           places,
		minDistanceMiles: defaultMinDistanceMiles,
	}
}

// SetMinDistance overrides the straight-line gate (miles). Values <= 0
// keep the default.
func (p *Plugin) SetMinDistance(miles float64) {
	if miles > 0 {
		p.minDistanceMiles = miles
	}
}

func (p *Plugin) Evaluate(ctx context.Context, current, predicted geo.Coordinate) (*integration.Candidate, error) {
	distance := geo.Haversine(current, predicted)
	if distance < p.minDistanceMiles {
		return nil, nil
	}

	route, err := p.routes.DrivingRoute(ctx, current, predicted)
	if err != nil {
		p.log.Warn("route fetch failed", logx.Err(err))
		return nil, nil
	}
	if route == nil {
		return nil, nil
	}

	place, err := p.places.ReverseGeocode(ctx, predicted)
	if err != nil {
		p.log.Debug("reverse geocode failed", logx.Err(err))
	}
	if place == "" {
		place = "your destination"
	}

	miles := route.DistanceMeters / geo.MetersPerMile
	minutes := route.DurationSeconds / 60

	return &integration.Candidate{
		Title: "Traffic ahead",
		Body:  fmt.Sprintf("%.2f mi (%.2f min) to %s with current traffic.", miles, minutes, place),
	}, nil
}

// Directions exposes the raw route for endpoints configured with the
// "directions" method.
func (p *Plugin) Directions(ctx context.Context, start, end geo.Coordinate) (*integration.Route, error) {
	route, err := p.routes.DrivingRoute(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, nil
	}
	return &integration.Route{
		DistanceMeters:  route.DistanceMeters,
		DurationSeconds: route.DurationSeconds,
	}, nil
}

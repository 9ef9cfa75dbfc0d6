// Package integration defines the capability contract every pluggable
// decision unit satisfies, plus the registry that resolves configured
// endpoints to live instances.
package integration

import (
	"context"

	"bishop/internal/geo"
)

// Candidate is a notification proposed by an integration for the current
// cycle. A nil candidate means "no alert warranted".
type Candidate struct {
	Title string
	Body  string
}

// Route is direction data between two coordinates.
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
}

// Evaluator is the "get" capability: compare the current and predicted
// position and decide whether the change is worth telling the user about.
//
// Implementations return (nil, nil) for the ordinary no-alert outcome.
// A non-nil error signals infrastructure failure, not "no alert".
type Evaluator interface {
	Evaluate(ctx context.Context, current, predicted geo.Coordinate) (*Candidate, error)
}

// Router is the "directions" capability.
type Router interface {
	Directions(ctx context.Context, start, end geo.Coordinate) (*Route, error)
}

// Method selects which capability an endpoint invokes.
type Method string

const (
	MethodGet        Method = "get"
	MethodDirections Method = "directions"
)

// EndpointConfig declares one integration to load and the capability to
// invoke on it. Owned by external settings; read-only here.
type EndpointConfig struct {
	Path   string `json:"path"`
	Method Method `json:"method"`
}

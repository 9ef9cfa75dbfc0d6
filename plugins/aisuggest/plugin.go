// Package aisuggest occasionally proposes a nearby point of interest
// generated by a language model.
package aisuggest

import (
	"context"
	"fmt"
	"math/rand"

	"bishop/internal/geo"
	"bishop/internal/integration"
	logx "bishop/pkg/logx"
)

// chance is the per-cycle probability of actually asking for a
// suggestion; most cycles stay quiet.
const chance = 0.25

const promptFormat = "Name me a single interesting place to check out near %s. " +
	"Your response must be a single line, nothing more nothing less. " +
	"Format your response like: You might want to check out PLACENAME near your current location, they REASON. " +
	"Feel free to also include restaurants."

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, at geo.Coordinate) (string, error)
}

type Plugin struct {
	log    logx.Logger
	gen    Generator
	places Geocoder

	// roll returns a value in [0, 1); swapped out in tests.
	roll func() float64
}

func New(gen Generator, places Geocoder, log logx.Logger) *Plugin {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Plugin{
		log:    log.With(logx.String("integration", "aisuggest")),
		gen:    gen,
		places: places,
		roll:   rand.Float64,
	}
}

// SetRoll replaces the probability source.
func (p *Plugin) SetRoll(roll func() float64) {
	if roll != nil {
		p.roll = roll
	}
}

func (p *Plugin) Evaluate(ctx context.Context, current, predicted geo.Coordinate) (*integration.Candidate, error) {
	if p.roll() >= chance {
		return nil, nil
	}

	place, err := p.places.ReverseGeocode(ctx, current)
	if err != nil {
		p.log.Warn("reverse geocode failed", logx.Err(err))
		return nil, nil
	}

	text, err := p.gen.Generate(ctx, fmt.Sprintf(promptFormat, place))
	if err != nil {
		p.log.Warn("generation failed", logx.Err(err))
		return nil, nil
	}

	return &integration.Candidate{Title: "AI Insight", Body: text}, nil
}

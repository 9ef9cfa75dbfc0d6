// Package weatherdelta alerts when the weather at the predicted location
// differs meaningfully from the weather at the current one.
package weatherdelta

import (
	"context"
	"fmt"
	"math"
	"sync"

	"bishop/internal/clients/openweather"
	"bishop/internal/geo"
	"bishop/internal/integration"
	logx "bishop/pkg/logx"
)

// deltaThreshold is the relative change (against the current snapshot)
// that counts as a meaningful difference for the numeric metrics.
const deltaThreshold = 0.10

type WeatherSource interface {
	Current(ctx context.Context, at geo.Coordinate) (*openweather.Snapshot, error)
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, at geo.Coordinate) (string, error)
}

type Plugin struct {
	log     logx.Logger
	weather WeatherSource
	places  Geocoder
}

func New(weather WeatherSource, places Geocoder, log logx.Logger) *Plugin {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Plugin{log: log.With(logx.String("integration", "weather")), weather: weather, places: places}
}

// Evaluate fetches both snapshots and the predicted place name
// concurrently, then runs the delta checks in fixed order: condition
// class, feels-like temperature, humidity, wind. Only the first satisfied
// check produces a message.
func (p *Plugin) Evaluate(ctx context.Context, current, predicted geo.Coordinate) (*integration.Candidate, error) {
	var (
		wg sync.WaitGroup

		curSnap, predSnap *openweather.Snapshot
		place             string
		curErr, predErr   error
		placeErr          error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		curSnap, curErr = p.weather.Current(ctx, current)
	}()
	go func() {
		defer wg.Done()
		predSnap, predErr = p.weather.Current(ctx, predicted)
	}()
	go func() {
		defer wg.Done()
		place, placeErr = p.places.ReverseGeocode(ctx, predicted)
	}()
	wg.Wait()

	if curErr != nil || predErr != nil {
		p.log.Warn("weather fetch failed", logx.Err(curErr), logx.Err(predErr))
		return nil, nil
	}
	if placeErr != nil {
		// The delta checks still work without a place name.
		p.log.Debug("reverse geocode failed", logx.Err(placeErr))
	}
	if place == "" {
		place = "your destination"
	}

	switch {
	case curSnap.Brief != predSnap.Brief:
		return &integration.Candidate{
			Title: "Weather change ahead",
			Body:  fmt.Sprintf("Expect %s in %s (currently %s).", predSnap.Brief, place, curSnap.Brief),
		}, nil
	case exceedsDelta(curSnap.FeelsLike, predSnap.FeelsLike):
		return &integration.Candidate{
			Title: "Weather change ahead",
			Body: fmt.Sprintf("Feels-like temperature shifts from %.1f° to %.1f° in %s.",
				curSnap.FeelsLike, predSnap.FeelsLike, place),
		}, nil
	case exceedsDelta(curSnap.Humidity, predSnap.Humidity):
		return &integration.Candidate{
			Title: "Weather change ahead",
			Body: fmt.Sprintf("Humidity shifts from %.0f%% to %.0f%% in %s.",
				curSnap.Humidity, predSnap.Humidity, place),
		}, nil
	case exceedsDelta(curSnap.WindSpeed, predSnap.WindSpeed):
		return &integration.Candidate{
			Title: "Weather change ahead",
			Body: fmt.Sprintf("Wind changes from %.1f to %.1f in %s.",
				curSnap.WindSpeed, predSnap.WindSpeed, place),
		}, nil
	}
	return nil, nil
}

func exceedsDelta(cur, pred float64) bool {
	if cur == 0 {
		return pred != 0
	}
	return math.Abs(pred-cur) > deltaThreshold*math.Abs(cur)
}

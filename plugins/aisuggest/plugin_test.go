package aisuggest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bishop/internal/geo"
	logx "bishop/pkg/logx"
)

type fakeGen struct {
	text  string
	err   error
	calls int
}

func (f *fakeGen) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakePlaces struct {
	name  string
	err   error
	calls int
}

func (f *fakePlaces) ReverseGeocode(ctx context.Context, at geo.Coordinate) (string, error) {
	f.calls++
	return f.name, f.err
}

var here = geo.Coordinate{Lat: 40, Lon: -105.25}

func TestEvaluateSuggestsWhenRollHits(t *testing.T) {
	gen := &fakeGen{text: "You might want to check out The Sink near your current location."}
	p := New(gen, &fakePlaces{name: "Boulder"}, logx.Nop())
	p.SetRoll(func() float64 { return 0.1 })

	c, err := p.Evaluate(context.Background(), here, here)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if c == nil {
		t.Fatalf("expected a candidate")
	}
	if c.Title != "AI Insight" {
		t.Fatalf("unexpected title %q", c.Title)
	}
	if !strings.Contains(c.Body, "The Sink") {
		t.Fatalf("unexpected body %q", c.Body)
	}
}

func TestEvaluateQuietWhenRollMisses(t *testing.T) {
	gen := &fakeGen{text: "irrelevant"}
	places := &fakePlaces{name: "Boulder"}
	p := New(gen, places, logx.Nop())
	p.SetRoll(func() float64 { return 0.9 })

	c, err := p.Evaluate(context.Background(), here, here)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil candidate when the roll misses")
	}
	if gen.calls != 0 || places.calls != 0 {
		t.Fatalf("no remote calls expected when the roll misses")
	}
}

func TestEvaluateSwallowsGenerationFailure(t *testing.T) {
	p := New(&fakeGen{err: errors.New("quota")}, &fakePlaces{name: "Boulder"}, logx.Nop())
	p.SetRoll(func() float64 { return 0 })

	c, err := p.Evaluate(context.Background(), here, here)
	if err != nil {
		t.Fatalf("generation failure must not surface as error: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil candidate on generation failure")
	}
}

func TestEvaluateSwallowsGeocodeFailure(t *testing.T) {
	gen := &fakeGen{text: "irrelevant"}
	p := New(gen, &fakePlaces{err: errors.New("no result")}, logx.Nop())
	p.SetRoll(func() float64 { return 0 })

	c, err := p.Evaluate(context.Background(), here, here)
	if err != nil {
		t.Fatalf("geocode failure must not surface as error: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil candidate on geocode failure")
	}
	if gen.calls != 0 {
		t.Fatalf("generation should not run without a place name")
	}
}

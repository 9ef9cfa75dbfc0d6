package integration

import (
	"context"
	"errors"
	"testing"

	"bishop/internal/geo"
	logx "bishop/pkg/logx"
)

func nopLogger() logx.Logger { return logx.Nop() }

type fakeEvaluator struct{ hits int }

func (f *fakeEvaluator) Evaluate(ctx context.Context, cur, pred geo.Coordinate) (*Candidate, error) {
	f.hits++
	return &Candidate{Title: "t", Body: "b"}, nil
}

type fakeRouter struct{}

func (fakeRouter) Directions(ctx context.Context, start, end geo.Coordinate) (*Route, error) {
	return &Route{DistanceMeters: 1, DurationSeconds: 2}, nil
}

func TestLoadAllOneResultPerConfig(t *testing.T) {
	r := NewRegistry(nopLogger())
	r.Register("weather", func() (any, error) { return &fakeEvaluator{}, nil })
	r.Register("maps", func() (any, error) { return fakeRouter{}, nil })

	configs := []EndpointConfig{
		{Path: "weather", Method: MethodGet},
		{Path: "maps", Method: MethodDirections},
		{Path: "missing", Method: MethodGet},
	}
	results := r.LoadAll(configs)
	if len(results) != len(configs) {
		t.Fatalf("expected %d results, got %d", len(configs), len(results))
	}
	if results[0].Err != nil || results[0].Evaluator == nil {
		t.Fatalf("expected usable evaluator, got %+v", results[0])
	}
	if results[1].Err != nil || results[1].Router == nil {
		t.Fatalf("expected usable router, got %+v", results[1])
	}
	if !errors.Is(results[2].Err, ErrUnknownPath) {
		t.Fatalf("expected ErrUnknownPath, got %v", results[2].Err)
	}
}

func TestLoadAllCachesInstances(t *testing.T) {
	r := NewRegistry(nopLogger())
	built := 0
	r.Register("weather", func() (any, error) {
		built++
		return &fakeEvaluator{}, nil
	})

	cfg := []EndpointConfig{{Path: "weather", Method: MethodGet}}
	first := r.LoadAll(cfg)
	second := r.LoadAll(cfg)
	if built != 1 {
		t.Fatalf("expected factory to run once, ran %d times", built)
	}
	if first[0].Evaluator != second[0].Evaluator {
		t.Fatalf("expected cached instance to be reused")
	}
}

func TestLoadAllCapabilityMismatch(t *testing.T) {
	r := NewRegistry(nopLogger())
	r.Register("maps", func() (any, error) { return fakeRouter{}, nil })

	results := r.LoadAll([]EndpointConfig{{Path: "maps", Method: MethodGet}})
	if !errors.Is(results[0].Err, ErrNoCapability) {
		t.Fatalf("expected ErrNoCapability, got %v", results[0].Err)
	}
	if results[0].Evaluator != nil {
		t.Fatalf("expected nil evaluator on mismatch")
	}
}

func TestLoadAllFactoryFailureIsIsolatedAndSticky(t *testing.T) {
	r := NewRegistry(nopLogger())
	attempts := 0
	r.Register("broken", func() (any, error) {
		attempts++
		return nil, errors.New("boom")
	})
	r.Register("ok", func() (any, error) { return &fakeEvaluator{}, nil })

	configs := []EndpointConfig{
		{Path: "broken", Method: MethodGet},
		{Path: "ok", Method: MethodGet},
	}
	results := r.LoadAll(configs)
	if results[0].Err == nil {
		t.Fatalf("expected error for broken factory")
	}
	if results[1].Err != nil {
		t.Fatalf("sibling load should not be affected: %v", results[1].Err)
	}

	// Failed constructors are not retried on later cycles.
	_ = r.LoadAll(configs)
	if attempts != 1 {
		t.Fatalf("expected 1 construction attempt, got %d", attempts)
	}
}

func TestLoadAllRecoversFactoryPanic(t *testing.T) {
	r := NewRegistry(nopLogger())
	r.Register("panicky", func() (any, error) { panic("nope") })
	r.Register("ok", func() (any, error) { return &fakeEvaluator{}, nil })

	results := r.LoadAll([]EndpointConfig{
		{Path: "panicky", Method: MethodGet},
		{Path: "ok", Method: MethodGet},
	})
	if results[0].Err == nil {
		t.Fatalf("expected error from panicking factory")
	}
	if results[1].Err != nil || results[1].Evaluator == nil {
		t.Fatalf("sibling should still load: %+v", results[1])
	}
}

func TestValidate(t *testing.T) {
	r := NewRegistry(nopLogger())
	r.Register("weather", func() (any, error) { return &fakeEvaluator{}, nil })

	if err := r.Validate([]EndpointConfig{{Path: "weather", Method: MethodGet}}); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if err := r.Validate([]EndpointConfig{{Path: "nope", Method: MethodGet}}); !errors.Is(err, ErrUnknownPath) {
		t.Fatalf("expected ErrUnknownPath, got %v", err)
	}
	if err := r.Validate([]EndpointConfig{{Path: "weather", Method: "post"}}); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
}

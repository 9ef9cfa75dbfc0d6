package geo

import (
	"math"
	"testing"
)

func TestHaversineSymmetric(t *testing.T) {
	a := Coordinate{Lat: 40.00, Lon: -105.25}
	b := Coordinate{Lat: 40.03, Lon: -105.27}

	ab := Haversine(a, b)
	ba := Haversine(b, a)
	if ab != ba {
		t.Fatalf("expected symmetric distance, got %v vs %v", ab, ba)
	}
}

func TestHaversineZeroOnSamePoint(t *testing.T) {
	a := Coordinate{Lat: 51.5, Lon: -0.12}
	if d := Haversine(a, a); d != 0 {
		t.Fatalf("expected 0 for identical coordinates, got %v", d)
	}
}

func TestHaversineKnownPair(t *testing.T) {
	// Boulder-ish pair, roughly 2.3 miles apart.
	a := Coordinate{Lat: 40.00, Lon: -105.25}
	b := Coordinate{Lat: 40.03, Lon: -105.27}

	d := Haversine(a, b)
	if math.Abs(d-2.3) > 0.15 {
		t.Fatalf("expected ~2.3 miles, got %v", d)
	}
}

func TestCoordinateValid(t *testing.T) {
	cases := []struct {
		c  Coordinate
		ok bool
	}{
		{Coordinate{Lat: 0, Lon: 0}, true},
		{Coordinate{Lat: 90, Lon: 180}, true},
		{Coordinate{Lat: -90, Lon: -180}, true},
		{Coordinate{Lat: 91, Lon: 0}, false},
		{Coordinate{Lat: 0, Lon: -181}, false},
	}
	for _, tc := range cases {
		if got := tc.c.Valid(); got != tc.ok {
			t.Fatalf("Valid(%+v) = %v, want %v", tc.c, got, tc.ok)
		}
	}
}

package som

import (
	"math"
	"testing"
)

func TestToroidDistanceWraps(t *testing.T) {
	dist, err := newGridDistance(MapTypeToroid, 10, 10)
	if err != nil {
		t.Fatalf("new distance: %v", err)
	}
	// Opposite corners are one diagonal step apart on a torus.
	if got := dist(0, 0, 9, 9); math.Abs(got-math.Sqrt2) > 1e-12 {
		t.Fatalf("corner distance = %v, want sqrt(2)", got)
	}
	if got := dist(0, 5, 9, 5); got != 1 {
		t.Fatalf("vertical wrap distance = %v, want 1", got)
	}
	if got := dist(2, 2, 2, 2); got != 0 {
		t.Fatalf("self distance = %v, want 0", got)
	}
}

func TestFlatDistanceDoesNotWrap(t *testing.T) {
	dist, err := newGridDistance(MapTypeFlat, 10, 10)
	if err != nil {
		t.Fatalf("new distance: %v", err)
	}
	if got := dist(0, 0, 9, 9); math.Abs(got-9*math.Sqrt2) > 1e-12 {
		t.Fatalf("corner distance = %v, want 9*sqrt(2)", got)
	}
}

func TestUnknownMapType(t *testing.T) {
	if _, err := newGridDistance("hexagonal", 10, 10); err == nil {
		t.Fatal("expected error for unknown map type")
	}
}

func TestNeighborhoodWeight(t *testing.T) {
	if got := neighborhoodWeight(0, 2); got != 1 {
		t.Fatalf("weight at BMU = %v, want 1", got)
	}
	if got := neighborhoodWeight(3, 2); got != 0 {
		t.Fatalf("weight beyond radius = %v, want 0", got)
	}
	near := neighborhoodWeight(1, 2)
	far := neighborhoodWeight(2, 2)
	if !(near > far && far > 0) {
		t.Fatalf("weight should decay with distance: near=%v far=%v", near, far)
	}
}

func TestLinearCoolingEndpoints(t *testing.T) {
	cool, err := newCoolingSchedule(CoolingLinear, 16, 2, 10)
	if err != nil {
		t.Fatalf("new schedule: %v", err)
	}
	if got := cool(0); got != 16 {
		t.Fatalf("epoch 0 radius = %v, want 16", got)
	}
	if got := cool(9); math.Abs(got-2) > 1e-12 {
		t.Fatalf("final epoch radius = %v, want 2", got)
	}
	for e := 1; e < 10; e++ {
		if cool(e) >= cool(e-1) {
			t.Fatalf("radius not strictly decreasing at epoch %d", e)
		}
	}
}

func TestExponentialCoolingEndpoints(t *testing.T) {
	cool, err := newCoolingSchedule(CoolingExponential, 16, 2, 10)
	if err != nil {
		t.Fatalf("new schedule: %v", err)
	}
	if got := cool(0); math.Abs(got-16) > 1e-12 {
		t.Fatalf("epoch 0 radius = %v, want 16", got)
	}
	if got := cool(9); math.Abs(got-2) > 1e-12 {
		t.Fatalf("final epoch radius = %v, want 2", got)
	}
	for e := 1; e < 10; e++ {
		if cool(e) >= cool(e-1) {
			t.Fatalf("radius not strictly decreasing at epoch %d", e)
		}
	}
}

func TestCoolingSingleEpoch(t *testing.T) {
	cool, err := newCoolingSchedule(CoolingLinear, 16, 2, 1)
	if err != nil {
		t.Fatalf("new schedule: %v", err)
	}
	if got := cool(0); got != 16 {
		t.Fatalf("single epoch radius = %v, want 16", got)
	}
}

func TestCoolingRejectsGrowingRadius(t *testing.T) {
	if _, err := newCoolingSchedule(CoolingLinear, 2, 16, 10); err == nil {
		t.Fatal("expected error when end radius exceeds initial")
	}
}

func TestUnknownCooling(t *testing.T) {
	if _, err := newCoolingSchedule("inverse", 16, 2, 10); err == nil {
		t.Fatal("expected error for unknown cooling name")
	}
}

package som

import (
	"fmt"
	"math"
)

// Map topologies. Toroid is the default for this domain: wrapping the grid
// at its edges removes the systematic under-updating of edge and corner
// nodes a flat grid suffers.
const (
	MapTypeFlat   = "flat"
	MapTypeToroid = "toroid"
)

// gridDistance computes the distance between two node positions under the
// active topology.
type gridDistance func(r1, c1, r2, c2 int) float64

func newGridDistance(mapType string, rows, cols int) (gridDistance, error) {
	switch mapType {
	case MapTypeFlat:
		return func(r1, c1, r2, c2 int) float64 {
			dr := float64(r1 - r2)
			dc := float64(c1 - c2)
			return math.Sqrt(dr*dr + dc*dc)
		}, nil
	case MapTypeToroid:
		return func(r1, c1, r2, c2 int) float64 {
			dr := wrapDelta(r1-r2, rows)
			dc := wrapDelta(c1-c2, cols)
			return math.Sqrt(dr*dr + dc*dc)
		}, nil
	default:
		return nil, fmt.Errorf("som: unknown map type %q", mapType)
	}
}

// wrapDelta returns the minimum of the direct axis distance and the
// distance via wrap-around.
func wrapDelta(d, size int) float64 {
	if d < 0 {
		d = -d
	}
	if wrapped := size - d; wrapped < d {
		d = wrapped
	}
	return float64(d)
}

// euclidean computes the feature-space distance between an input vector
// and a prototype.
func euclidean(a, b []float64) float64 {
	var sum float64
	for i, v := range a {
		d := v - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// neighborhoodWeight is the Gaussian falloff applied to node updates
// around the best-matching unit. Nodes beyond the radius receive no
// update.
func neighborhoodWeight(dist, radius float64) float64 {
	if dist > radius {
		return 0
	}
	sigma := radius
	if sigma <= 0 {
		sigma = 1e-9
	}
	return math.Exp(-(dist * dist) / (2 * sigma * sigma))
}

package som

import (
	"fmt"
	"math"
)

// Radius cooling schedules. Each maps an epoch index onto a neighborhood
// radius decaying monotonically from the initial to the end radius over
// the configured epoch budget.
const (
	CoolingLinear      = "linear"
	CoolingExponential = "exponential"
)

type coolingSchedule func(epoch int) float64

func newCoolingSchedule(name string, initial, end float64, maxEpochs int) (coolingSchedule, error) {
	if end > initial {
		return nil, fmt.Errorf("som: end radius %v exceeds initial radius %v", end, initial)
	}
	span := float64(maxEpochs - 1)
	switch name {
	case CoolingLinear:
		return func(epoch int) float64 {
			if span <= 0 {
				return initial
			}
			return initial - (initial-end)*float64(epoch)/span
		}, nil
	case CoolingExponential:
		return func(epoch int) float64 {
			if span <= 0 || initial <= 0 {
				return initial
			}
			ratio := end / initial
			if ratio <= 0 {
				ratio = 1e-9
			}
			return initial * math.Pow(ratio, float64(epoch)/span)
		}, nil
	default:
		return nil, fmt.Errorf("som: unknown radius cooling %q", name)
	}
}

package align

import (
	"errors"
	"fmt"
	"math"

	"flowsom/internal/model"
)

const (
	ScalerMinMax   = "MinMaxScaler"
	ScalerStandard = "StandardScaler"
)

// ErrInvalidScaler indicates an unsupported scaler name was requested.
// Surfaced at construction time, never deferred to training.
var ErrInvalidScaler = errors.New("align: invalid scaler")

// ErrScalerNotFitted indicates Transform or Inverse was called before Fit.
var ErrScalerNotFitted = errors.New("align: scaler has not been fitted")

// Scaler is a reversible per-column numeric transform. Parameters are
// fitted once on the training corpus and persisted; transform-time scaling
// replays the persisted fit instead of refitting.
type Scaler interface {
	Name() string
	Fit(data [][]float64) error
	Transform(data [][]float64) ([][]float64, error)
	Inverse(data [][]float64) ([][]float64, error)
	Record() model.TransformRecord
}

// NewScaler returns a fresh unfitted scaler for the given name.
func NewScaler(name string) (Scaler, error) {
	switch name {
	case ScalerMinMax:
		return &MinMaxScaler{}, nil
	case ScalerStandard:
		return &StandardScaler{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidScaler, name)
	}
}

// ScalerFromRecord reconstructs a fitted scaler from a persisted transform
// record.
func ScalerFromRecord(rec model.TransformRecord) (Scaler, error) {
	switch rec.Scaler {
	case ScalerMinMax:
		return &MinMaxScaler{
			min: append([]float64(nil), rec.Min...),
			max: append([]float64(nil), rec.Max...),
		}, nil
	case ScalerStandard:
		return &StandardScaler{
			mean: append([]float64(nil), rec.Mean...),
			std:  append([]float64(nil), rec.Std...),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidScaler, rec.Scaler)
	}
}

// MinMaxScaler maps each column linearly onto [0,1] using the column range
// observed at fit time.
type MinMaxScaler struct {
	min []float64
	max []float64
}

func (s *MinMaxScaler) Name() string { return ScalerMinMax }

func (s *MinMaxScaler) Fit(data [][]float64) error {
	cols, err := columnCount(data)
	if err != nil {
		return err
	}
	s.min = make([]float64, cols)
	s.max = make([]float64, cols)
	for j := 0; j < cols; j++ {
		s.min[j] = math.Inf(1)
		s.max[j] = math.Inf(-1)
	}
	for _, row := range data {
		for j, v := range row {
			if v < s.min[j] {
				s.min[j] = v
			}
			if v > s.max[j] {
				s.max[j] = v
			}
		}
	}
	return nil
}

func (s *MinMaxScaler) Transform(data [][]float64) ([][]float64, error) {
	if s.min == nil {
		return nil, ErrScalerNotFitted
	}
	return apply(data, len(s.min), func(j int, v float64) float64 {
		span := s.max[j] - s.min[j]
		if span == 0 {
			return 0
		}
		return (v - s.min[j]) / span
	})
}

func (s *MinMaxScaler) Inverse(data [][]float64) ([][]float64, error) {
	if s.min == nil {
		return nil, ErrScalerNotFitted
	}
	return apply(data, len(s.min), func(j int, v float64) float64 {
		return v*(s.max[j]-s.min[j]) + s.min[j]
	})
}

func (s *MinMaxScaler) Record() model.TransformRecord {
	return model.TransformRecord{
		Scaler: ScalerMinMax,
		Min:    append([]float64(nil), s.min...),
		Max:    append([]float64(nil), s.max...),
	}
}

// StandardScaler standardizes each column to zero mean and unit variance
// using moments fitted on the training corpus.
type StandardScaler struct {
	mean []float64
	std  []float64
}

func (s *StandardScaler) Name() string { return ScalerStandard }

func (s *StandardScaler) Fit(data [][]float64) error {
	cols, err := columnCount(data)
	if err != nil {
		return err
	}
	s.mean = make([]float64, cols)
	s.std = make([]float64, cols)
	n := float64(len(data))
	for _, row := range data {
		for j, v := range row {
			s.mean[j] += v
		}
	}
	for j := range s.mean {
		s.mean[j] /= n
	}
	for _, row := range data {
		for j, v := range row {
			d := v - s.mean[j]
			s.std[j] += d * d
		}
	}
	for j := range s.std {
		s.std[j] = math.Sqrt(s.std[j] / n)
	}
	return nil
}

func (s *StandardScaler) Transform(data [][]float64) ([][]float64, error) {
	if s.mean == nil {
		return nil, ErrScalerNotFitted
	}
	return apply(data, len(s.mean), func(j int, v float64) float64 {
		if s.std[j] == 0 {
			return 0
		}
		return (v - s.mean[j]) / s.std[j]
	})
}

func (s *StandardScaler) Inverse(data [][]float64) ([][]float64, error) {
	if s.mean == nil {
		return nil, ErrScalerNotFitted
	}
	return apply(data, len(s.mean), func(j int, v float64) float64 {
		return v*s.std[j] + s.mean[j]
	})
}

func (s *StandardScaler) Record() model.TransformRecord {
	return model.TransformRecord{
		Scaler: ScalerStandard,
		Mean:   append([]float64(nil), s.mean...),
		Std:    append([]float64(nil), s.std...),
	}
}

func columnCount(data [][]float64) (int, error) {
	if len(data) == 0 {
		return 0, errors.New("align: cannot fit scaler on empty data")
	}
	return len(data[0]), nil
}

func apply(data [][]float64, cols int, fn func(j int, v float64) float64) ([][]float64, error) {
	out := make([][]float64, len(data))
	for i, row := range data {
		if len(row) != cols {
			return nil, fmt.Errorf("align: row %d has %d columns, scaler fitted on %d", i, len(row), cols)
		}
		scaled := make([]float64, cols)
		for j, v := range row {
			scaled[j] = fn(j, v)
		}
		out[i] = scaled
	}
	return out, nil
}

package som

import (
	"errors"
	"fmt"
	"math/rand"
)

// Initializer seeds the prototype vectors of a new grid before training.
type Initializer interface {
	seed(cfg Config, rng *rand.Rand) (*Grid, error)
}

// RandomInit draws every prototype component uniformly from [0, spread).
// A spread of 0 uses the default unit spread.
func RandomInit(spread float64) Initializer {
	if spread <= 0 {
		spread = 1
	}
	return randomInit{spread: spread}
}

type randomInit struct {
	spread float64
}

func (r randomInit) seed(cfg Config, rng *rand.Rand) (*Grid, error) {
	if len(cfg.Markers) == 0 {
		return nil, errors.New("som: random init requires a marker list")
	}
	g := emptyGrid(defaultDims(cfg))
	for i := range g.values {
		g.values[i] = rng.Float64() * r.spread
	}
	return g, nil
}

// ReferenceInit copies the prototypes of an existing grid. Markers always
// come from the reference; unset config dims are inferred from it.
func ReferenceInit(ref *Grid) Initializer {
	return referenceInit{ref: ref}
}

type referenceInit struct {
	ref *Grid
}

func (r referenceInit) seed(cfg Config, rng *rand.Rand) (*Grid, error) {
	if r.ref == nil {
		return nil, errors.New("som: reference init requires a grid")
	}
	rows, cols := cfg.Rows, cfg.Cols
	refRows, refCols := r.ref.Dims()
	if rows <= 0 {
		rows = refRows
	}
	if cols <= 0 {
		cols = refCols
	}
	if rows != refRows || cols != refCols {
		return nil, fmt.Errorf("%w: config wants %dx%d, reference is %dx%d",
			ErrShapeMismatch, rows, cols, refRows, refCols)
	}
	cfg.Rows, cfg.Cols = rows, cols
	cfg.Markers = r.ref.Markers()
	cfg.NameOnly = r.ref.nameOnly
	g := emptyGrid(cfg)
	copy(g.values, r.ref.values)
	return g, nil
}

// SampleInit seeds prototypes by subsampling event rows from the first
// training batch.
func SampleInit(markers []string, events [][]float64) Initializer {
	return sampleInit{markers: markers, events: events}
}

type sampleInit struct {
	markers []string
	events  [][]float64
}

func (s sampleInit) seed(cfg Config, rng *rand.Rand) (*Grid, error) {
	if len(s.markers) == 0 {
		return nil, errors.New("som: sample init requires a marker list")
	}
	if len(s.events) == 0 {
		return nil, errors.New("som: sample init requires events")
	}
	cfg.Markers = append([]string(nil), s.markers...)
	g := emptyGrid(defaultDims(cfg))
	dim := g.Dim()
	for i := 0; i < g.Nodes(); i++ {
		row := s.events[rng.Intn(len(s.events))]
		if len(row) != dim {
			return nil, fmt.Errorf("%w: sample row has %d components, grid wants %d",
				ErrShapeMismatch, len(row), dim)
		}
		copy(g.Node(i), row)
	}
	return g, nil
}

// defaultDims fills unset grid dimensions for initializers that have no
// reference to infer them from. Reference seeding never goes through
// here; its dims come from the reference grid.
func defaultDims(cfg Config) Config {
	if cfg.Rows <= 0 {
		cfg.Rows, cfg.Cols = 32, 32
	}
	return cfg
}

func emptyGrid(cfg Config) *Grid {
	return &Grid{
		id:       cfg.ID,
		name:     cfg.Name,
		tube:     cfg.Tube,
		rows:     cfg.Rows,
		cols:     cfg.Cols,
		markers:  append([]string(nil), cfg.Markers...),
		nameOnly: cfg.NameOnly,
		values:   make([]float64, cfg.Rows*cfg.Cols*len(cfg.Markers)),
	}
}

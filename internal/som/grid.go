package som

import (
	"errors"
	"fmt"
	"math"

	"flowsom/internal/model"
)

var (
	// ErrShapeMismatch indicates a stored grid whose declared dims and
	// marker count disagree with its value array.
	ErrShapeMismatch = errors.New("som: grid shape mismatch")
	// ErrUntrainedSave indicates an attempt to persist a grid before
	// training completed.
	ErrUntrainedSave = errors.New("som: save requires trained state")
)

// Grid is a self-organizing map: a square 2D array of prototype vectors
// plus identifying metadata. The flattened value array is row-major with
// rows*cols nodes of len(markers) components each. Padding is always a
// derived view, never stored.
type Grid struct {
	id         string
	name       string
	tube       string
	rows, cols int
	markers    []string
	nameOnly   bool
	trained    bool
	transforms []model.TransformRecord
	values     []float64
}

// GridFromRecord reconstructs a Grid from its persistent form, validating
// the declared shape against the stored value count.
func GridFromRecord(rec model.Grid) (*Grid, error) {
	rows, cols := rec.Rows, rec.Cols
	if rows == 0 && cols == 0 {
		side := inferSide(len(rec.Values), len(rec.Markers))
		rows, cols = side, side
	}
	want := rows * cols * len(rec.Markers)
	if want == 0 || len(rec.Values) != want {
		return nil, fmt.Errorf("%w: %dx%d grid with %d markers declares %d values, stored %d",
			ErrShapeMismatch, rows, cols, len(rec.Markers), want, len(rec.Values))
	}
	return &Grid{
		id:         rec.ID,
		name:       rec.Name,
		tube:       rec.Tube,
		rows:       rows,
		cols:       cols,
		markers:    append([]string(nil), rec.Markers...),
		nameOnly:   rec.NameOnly,
		trained:    rec.Trained,
		transforms: append([]model.TransformRecord(nil), rec.Transforms...),
		values:     append([]float64(nil), rec.Values...),
	}, nil
}

// Record returns the persistent form of the grid.
func (g *Grid) Record() model.Grid {
	return model.Grid{
		ID:         g.id,
		Name:       g.name,
		Tube:       g.tube,
		Rows:       g.rows,
		Cols:       g.cols,
		Markers:    append([]string(nil), g.markers...),
		NameOnly:   g.nameOnly,
		Trained:    g.trained,
		Transforms: append([]model.TransformRecord(nil), g.transforms...),
		Values:     append([]float64(nil), g.values...),
	}
}

func (g *Grid) ID() string             { return g.id }
func (g *Grid) Name() string           { return g.name }
func (g *Grid) Tube() string           { return g.tube }
func (g *Grid) Dims() (rows, cols int) { return g.rows, g.cols }
func (g *Grid) Dim() int               { return len(g.markers) }
func (g *Grid) Nodes() int             { return g.rows * g.cols }
func (g *Grid) Trained() bool          { return g.trained }
func (g *Grid) NameOnly() bool         { return g.nameOnly }
func (g *Grid) Markers() []string      { return append([]string(nil), g.markers...) }

func (g *Grid) Transforms() []model.TransformRecord {
	return append([]model.TransformRecord(nil), g.transforms...)
}

// MarkerIndex resolves a marker name to its column position.
func (g *Grid) MarkerIndex(name string) (int, bool) {
	for i, m := range g.markers {
		if m == name {
			return i, true
		}
	}
	return 0, false
}

// Node returns the prototype vector of node i as a live subslice.
func (g *Grid) Node(i int) []float64 {
	dim := len(g.markers)
	return g.values[i*dim : (i+1)*dim]
}

// NodeAt returns the prototype vector at grid position (row, col).
func (g *Grid) NodeAt(row, col int) []float64 {
	return g.Node(row*g.cols + col)
}

// Clone returns a deep copy sharing no state with the receiver.
func (g *Grid) Clone() *Grid {
	out := *g
	out.markers = append([]string(nil), g.markers...)
	out.transforms = append([]model.TransformRecord(nil), g.transforms...)
	out.values = append([]float64(nil), g.values...)
	return &out
}

// Padded returns the grid as a (rows+2p) x (cols+2p) x dim tensor with
// wrap-style padding: border cells are copies of the opposite interior
// edge, preserving the toroidal topology at the consumer's input boundary.
// With p == 0 this is the plain unpadded tensor.
func (g *Grid) Padded(p int) [][][]float64 {
	if p < 0 {
		p = 0
	}
	dim := len(g.markers)
	out := make([][][]float64, g.rows+2*p)
	for r := range out {
		src := ((r-p)%g.rows + g.rows) % g.rows
		row := make([][]float64, g.cols+2*p)
		for c := range row {
			srcCol := ((c-p)%g.cols + g.cols) % g.cols
			cell := make([]float64, dim)
			copy(cell, g.NodeAt(src, srcCol))
			row[c] = cell
		}
		out[r] = row
	}
	return out
}

// inferSide derives the square side length from a flat node-value count.
func inferSide(values, dim int) int {
	if dim == 0 {
		return 0
	}
	return int(math.Sqrt(float64(values / dim)))
}

package som

import (
	"errors"
	"reflect"
	"testing"

	"flowsom/internal/model"
)

func testGridRecord() model.Grid {
	return model.Grid{
		ID:      "grid-1",
		Name:    "reference",
		Tube:    "1",
		Rows:    2,
		Cols:    2,
		Markers: []string{"a", "b"},
		Trained: true,
		Values: []float64{
			1, 2,
			3, 4,
			5, 6,
			7, 8,
		},
	}
}

func TestGridRecordRoundTrip(t *testing.T) {
	rec := testGridRecord()
	g, err := GridFromRecord(rec)
	if err != nil {
		t.Fatalf("from record: %v", err)
	}
	got := g.Record()
	if !reflect.DeepEqual(got.Values, rec.Values) {
		t.Fatalf("values diverge: %v != %v", got.Values, rec.Values)
	}
	if got.ID != rec.ID || got.Tube != rec.Tube || got.Rows != 2 || got.Cols != 2 || !got.Trained {
		t.Fatalf("metadata diverges: %+v", got)
	}
}

func TestGridFromRecordInfersSquareDims(t *testing.T) {
	rec := testGridRecord()
	rec.Rows, rec.Cols = 0, 0
	g, err := GridFromRecord(rec)
	if err != nil {
		t.Fatalf("from record: %v", err)
	}
	if rows, cols := g.Dims(); rows != 2 || cols != 2 {
		t.Fatalf("expected inferred 2x2, got %dx%d", rows, cols)
	}
}

func TestGridFromRecordShapeMismatch(t *testing.T) {
	rec := testGridRecord()
	rec.Values = rec.Values[:5]
	if _, err := GridFromRecord(rec); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestGridCloneIsIndependent(t *testing.T) {
	g, err := GridFromRecord(testGridRecord())
	if err != nil {
		t.Fatalf("from record: %v", err)
	}
	c := g.Clone()
	c.Node(0)[0] = 99
	if g.Node(0)[0] == 99 {
		t.Fatal("clone shares value storage with original")
	}
}

func TestGridNodeAccess(t *testing.T) {
	g, err := GridFromRecord(testGridRecord())
	if err != nil {
		t.Fatalf("from record: %v", err)
	}
	if got := g.NodeAt(1, 0); !reflect.DeepEqual(got, []float64{5, 6}) {
		t.Fatalf("unexpected node (1,0): %v", got)
	}
	if i, ok := g.MarkerIndex("b"); !ok || i != 1 {
		t.Fatalf("MarkerIndex(b) = %d, %v", i, ok)
	}
	if _, ok := g.MarkerIndex("z"); ok {
		t.Fatal("unknown marker should not resolve")
	}
}

func TestPaddedShapeAndWrap(t *testing.T) {
	g, err := GridFromRecord(testGridRecord())
	if err != nil {
		t.Fatalf("from record: %v", err)
	}

	p := g.Padded(1)
	if len(p) != 4 || len(p[0]) != 4 || len(p[0][0]) != 2 {
		t.Fatalf("expected 4x4x2 tensor, got %dx%dx%d", len(p), len(p[0]), len(p[0][0]))
	}
	// Interior is the grid itself.
	if !reflect.DeepEqual(p[1][1], []float64{1, 2}) || !reflect.DeepEqual(p[2][2], []float64{7, 8}) {
		t.Fatalf("interior mismatch: %v %v", p[1][1], p[2][2])
	}
	// Borders wrap to the opposite edge.
	if !reflect.DeepEqual(p[0][1], g.NodeAt(1, 0)) {
		t.Fatalf("top border should wrap to bottom row, got %v", p[0][1])
	}
	if !reflect.DeepEqual(p[1][0], g.NodeAt(0, 1)) {
		t.Fatalf("left border should wrap to right column, got %v", p[1][0])
	}
	if !reflect.DeepEqual(p[0][0], g.NodeAt(1, 1)) {
		t.Fatalf("corner should wrap diagonally, got %v", p[0][0])
	}
}

func TestPaddedZeroIsPlainTensor(t *testing.T) {
	g, err := GridFromRecord(testGridRecord())
	if err != nil {
		t.Fatalf("from record: %v", err)
	}
	p := g.Padded(0)
	if len(p) != 2 || len(p[0]) != 2 {
		t.Fatalf("expected 2x2 tensor, got %dx%d", len(p), len(p[0]))
	}
	if !reflect.DeepEqual(p[0][0], []float64{1, 2}) {
		t.Fatalf("unexpected cell: %v", p[0][0])
	}
}

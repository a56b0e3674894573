package som

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"flowsom/internal/model"
)

func trainedReference(t *testing.T) *Grid {
	t.Helper()
	events, _, _ := twoClusterEvents(200, 20)
	tr, err := NewTrainer(clusterConfig(20, 1), RandomInit(1))
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}
	grid, err := tr.Train(context.Background(), events)
	if err != nil {
		t.Fatalf("train reference: %v", err)
	}
	return grid
}

func TestTransformerRequiresTrainedReference(t *testing.T) {
	untrained, err := GridFromRecord(model.Grid{
		Rows:    2,
		Cols:    2,
		Markers: []string{"a"},
		Values:  make([]float64, 4),
	})
	if err != nil {
		t.Fatalf("from record: %v", err)
	}
	if _, err := NewTransformer(untrained, Config{}); !errors.Is(err, ErrUntrainedReference) {
		t.Fatalf("expected ErrUntrainedReference, got %v", err)
	}
	if _, err := NewTransformer(nil, Config{}); !errors.Is(err, ErrUntrainedReference) {
		t.Fatalf("nil reference: expected ErrUntrainedReference, got %v", err)
	}
}

func TestTransformDoesNotMutateReference(t *testing.T) {
	ref := trainedReference(t)
	before := ref.Record().Values

	tx, err := NewTransformer(ref, Config{Workers: 1})
	if err != nil {
		t.Fatalf("new transformer: %v", err)
	}
	_, caseEvents, _ := twoClusterEvents(80, 21)
	grid, err := tx.Transform(context.Background(), "case-1", caseEvents)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	if !reflect.DeepEqual(ref.Record().Values, before) {
		t.Fatal("transform mutated the reference grid")
	}
	if reflect.DeepEqual(grid.Record().Values, before) {
		t.Fatal("refinement should move the per-sample grid away from the reference")
	}
	if grid.Name() != "case-1" {
		t.Fatalf("grid name = %q", grid.Name())
	}
	if !grid.Trained() {
		t.Fatal("per-sample grid should be trained")
	}
}

func TestTransformCarriesReferenceProvenance(t *testing.T) {
	ref := trainedReference(t)
	ref.transforms = []model.TransformRecord{{Scaler: "MinMaxScaler", Min: []float64{0, 0}, Max: []float64{1, 1}}}

	tx, err := NewTransformer(ref, Config{Workers: 1})
	if err != nil {
		t.Fatalf("new transformer: %v", err)
	}
	_, caseEvents, _ := twoClusterEvents(40, 22)
	grid, err := tx.Transform(context.Background(), "case-1", caseEvents)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if got := grid.Transforms(); len(got) != 1 || got[0].Scaler != "MinMaxScaler" {
		t.Fatalf("provenance not carried: %+v", got)
	}
}

func TestTransformDeterminism(t *testing.T) {
	ref := trainedReference(t)
	_, caseEvents, _ := twoClusterEvents(80, 23)

	run := func() []float64 {
		tx, err := NewTransformer(ref, Config{Workers: 2})
		if err != nil {
			t.Fatalf("new transformer: %v", err)
		}
		grid, err := tx.Transform(context.Background(), "case-1", caseEvents)
		if err != nil {
			t.Fatalf("transform: %v", err)
		}
		return grid.Record().Values
	}

	if !reflect.DeepEqual(run(), run()) {
		t.Fatal("transform should be deterministic for a fixed reference and input")
	}
}

func TestGridSeqYieldsOneGridPerSample(t *testing.T) {
	ref := trainedReference(t)
	tx, err := NewTransformer(ref, Config{Workers: 1})
	if err != nil {
		t.Fatalf("new transformer: %v", err)
	}

	_, a, b := twoClusterEvents(80, 24)
	src := NewSliceSource([]Sample{
		{Label: "case-a", Events: a},
		{Label: "case-b", Events: b},
	})
	seq := tx.Seq(src)

	var labels []string
	for {
		grid, ok, err := seq.Next(context.Background())
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
		labels = append(labels, grid.Name())
	}
	if !reflect.DeepEqual(labels, []string{"case-a", "case-b"}) {
		t.Fatalf("unexpected labels: %v", labels)
	}

	if _, ok, err := seq.Next(context.Background()); ok || err != nil {
		t.Fatalf("exhausted sequence yielded ok=%v err=%v", ok, err)
	}

	src.Reset()
	if _, ok, err := seq.Next(context.Background()); !ok || err != nil {
		t.Fatalf("reset source should replay, ok=%v err=%v", ok, err)
	}
}

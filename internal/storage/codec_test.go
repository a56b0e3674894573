package storage

import (
	"errors"
	"reflect"
	"testing"

	"flowsom/internal/model"
	"flowsom/internal/som"
)

func testGridRecord() model.Grid {
	return model.Grid{
		VersionedRecord: NewVersion(),
		ID:              "grid-1",
		Name:            "reference",
		Tube:            "1",
		Rows:            2,
		Cols:            2,
		Markers:         []string{"CD45", "CD19"},
		NameOnly:        true,
		Trained:         true,
		Transforms: []model.TransformRecord{
			{Scaler: "MinMaxScaler", Min: []float64{0, 0}, Max: []float64{1024, 1024}},
		},
		Values: []float64{1, 2, 3, 4, 5, 6, 7, 8},
	}
}

func TestGridCodecRoundTrip(t *testing.T) {
	grid := testGridRecord()

	data, err := EncodeGrid(grid)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeGrid(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, grid) {
		t.Fatalf("round trip diverges:\n got %+v\nwant %+v", decoded, grid)
	}
}

func TestEncodeGridRejectsUntrained(t *testing.T) {
	grid := testGridRecord()
	grid.Trained = false
	if _, err := EncodeGrid(grid); !errors.Is(err, som.ErrUntrainedSave) {
		t.Fatalf("expected ErrUntrainedSave, got %v", err)
	}
}

func TestDecodeGridVersionMismatch(t *testing.T) {
	grid := testGridRecord()
	grid.SchemaVersion = CurrentSchemaVersion + 1

	data, err := EncodeGrid(grid)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeGrid(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestDecodeGridShapeMismatch(t *testing.T) {
	grid := testGridRecord()
	grid.Values = grid.Values[:6]

	data, err := EncodeGrid(grid)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeGrid(data); !errors.Is(err, som.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestCheckpointCodecRoundTrip(t *testing.T) {
	grid := testGridRecord()
	grid.Trained = false
	ckpt := model.Checkpoint{
		VersionedRecord: NewVersion(),
		RunID:           "run-1",
		Epoch:           4,
		Grid:            grid,
	}

	data, err := EncodeCheckpoint(ckpt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeCheckpoint(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, ckpt) {
		t.Fatalf("round trip diverges:\n got %+v\nwant %+v", decoded, ckpt)
	}
}

func TestDecodeCheckpointCorruptGrid(t *testing.T) {
	ckpt := model.Checkpoint{
		VersionedRecord: NewVersion(),
		RunID:           "run-1",
		Grid: model.Grid{
			Rows:    2,
			Cols:    2,
			Markers: []string{"CD45"},
			Values:  []float64{1},
		},
	}

	data, err := EncodeCheckpoint(ckpt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeCheckpoint(data); !errors.Is(err, som.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func testDatasetRecord() model.Dataset {
	return model.Dataset{
		VersionedRecord: NewVersion(),
		ID:              "ds-1",
		Config: model.DatasetConfig{
			Tubes: map[string]model.TubeConfig{
				"1": {Rows: 32, Cols: 32, Channels: []string{"CD45", "CD19"}},
			},
		},
		Cases: []model.CaseRow{
			{Label: "case-1", Group: "CLL", GridIDs: map[string]string{"1": "grid-1"}},
		},
	}
}

func TestDatasetCodecRoundTrip(t *testing.T) {
	ds := testDatasetRecord()

	data, err := EncodeDataset(ds)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeDataset(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, ds) {
		t.Fatalf("round trip diverges:\n got %+v\nwant %+v", decoded, ds)
	}
}

func TestDecodeDatasetVersionMismatch(t *testing.T) {
	data, err := EncodeDataset(model.Dataset{ID: "ds-1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeDataset(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"flowsom/internal/model"
	"flowsom/internal/som"
)

func TestMemoryStoreGridRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	grid := testGridRecord()
	if err := store.SaveGrid(ctx, grid); err != nil {
		t.Fatalf("save grid: %v", err)
	}

	loaded, ok, err := store.GetGrid(ctx, grid.ID)
	if err != nil {
		t.Fatalf("get grid: %v", err)
	}
	if !ok {
		t.Fatal("grid not found")
	}
	if !reflect.DeepEqual(loaded, grid) {
		t.Fatalf("round trip diverges:\n got %+v\nwant %+v", loaded, grid)
	}

	// Stored state must not alias caller slices.
	loaded.Values[0] = 99
	again, _, err := store.GetGrid(ctx, grid.ID)
	if err != nil {
		t.Fatalf("get grid: %v", err)
	}
	if again.Values[0] == 99 {
		t.Fatal("store leaked internal state to the caller")
	}
}

func TestMemoryStoreRejectsUntrainedGrid(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	grid := testGridRecord()
	grid.Trained = false
	if err := store.SaveGrid(ctx, grid); !errors.Is(err, som.ErrUntrainedSave) {
		t.Fatalf("expected ErrUntrainedSave, got %v", err)
	}
}

func TestMemoryStoreGridMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	_, ok, err := store.GetGrid(ctx, "missing")
	if err != nil {
		t.Fatalf("get grid: %v", err)
	}
	if ok {
		t.Fatal("missing grid reported present")
	}
}

func TestMemoryStoreCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	grid := testGridRecord()
	grid.Trained = false
	ckpt := model.Checkpoint{
		VersionedRecord: NewVersion(),
		RunID:           "run-1",
		Epoch:           3,
		Grid:            grid,
	}
	if err := store.SaveCheckpoint(ctx, ckpt); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	loaded, ok, err := store.GetCheckpoint(ctx, ckpt.RunID)
	if err != nil {
		t.Fatalf("get checkpoint: %v", err)
	}
	if !ok {
		t.Fatal("checkpoint not found")
	}
	if !reflect.DeepEqual(loaded, ckpt) {
		t.Fatalf("round trip diverges:\n got %+v\nwant %+v", loaded, ckpt)
	}

	// Later epochs overwrite the run's checkpoint.
	ckpt.Epoch = 7
	if err := store.SaveCheckpoint(ctx, ckpt); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}
	loaded, _, err = store.GetCheckpoint(ctx, ckpt.RunID)
	if err != nil {
		t.Fatalf("get checkpoint: %v", err)
	}
	if loaded.Epoch != 7 {
		t.Fatalf("checkpoint epoch = %d, want 7", loaded.Epoch)
	}
}

func TestMemoryStoreDatasetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	ds := testDatasetRecord()
	if err := store.SaveDataset(ctx, ds); err != nil {
		t.Fatalf("save dataset: %v", err)
	}

	loaded, ok, err := store.GetDataset(ctx, ds.ID)
	if err != nil {
		t.Fatalf("get dataset: %v", err)
	}
	if !ok {
		t.Fatal("dataset not found")
	}
	if !reflect.DeepEqual(loaded, ds) {
		t.Fatalf("round trip diverges:\n got %+v\nwant %+v", loaded, ds)
	}

	loaded.Cases[0].GridIDs["1"] = "tampered"
	again, _, err := store.GetDataset(ctx, ds.ID)
	if err != nil {
		t.Fatalf("get dataset: %v", err)
	}
	if again.Cases[0].GridIDs["1"] == "tampered" {
		t.Fatal("store leaked internal state to the caller")
	}
}

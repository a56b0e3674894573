package storage

import (
	"context"

	"flowsom/internal/model"
)

// Store defines logical persistence for the SOM engine: trained grids per
// (case, tube), training checkpoints per run, and cohort dataset
// metadata. Loading a grid must reconstruct it bit-identical to what was
// saved, including marker order.
type Store interface {
	Init(ctx context.Context) error
	SaveGrid(ctx context.Context, grid model.Grid) error
	GetGrid(ctx context.Context, id string) (model.Grid, bool, error)
	SaveCheckpoint(ctx context.Context, ckpt model.Checkpoint) error
	GetCheckpoint(ctx context.Context, runID string) (model.Checkpoint, bool, error)
	SaveDataset(ctx context.Context, ds model.Dataset) error
	GetDataset(ctx context.Context, id string) (model.Dataset, bool, error)
}

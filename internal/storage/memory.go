package storage

import (
	"context"
	"sync"

	"flowsom/internal/model"
	"flowsom/internal/som"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	grids       map[string]model.Grid
	checkpoints map[string]model.Checkpoint
	datasets    map[string]model.Dataset
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.grids = make(map[string]model.Grid)
	s.checkpoints = make(map[string]model.Checkpoint)
	s.datasets = make(map[string]model.Dataset)
	return nil
}

func (s *MemoryStore) SaveGrid(_ context.Context, grid model.Grid) error {
	if !grid.Trained {
		return som.ErrUntrainedSave
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.grids[grid.ID] = copyGrid(grid)
	return nil
}

func (s *MemoryStore) GetGrid(_ context.Context, id string) (model.Grid, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grid, ok := s.grids[id]
	if !ok {
		return model.Grid{}, false, nil
	}
	return copyGrid(grid), true, nil
}

func (s *MemoryStore) SaveCheckpoint(_ context.Context, ckpt model.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ckpt.Grid = copyGrid(ckpt.Grid)
	s.checkpoints[ckpt.RunID] = ckpt
	return nil
}

func (s *MemoryStore) GetCheckpoint(_ context.Context, runID string) (model.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ckpt, ok := s.checkpoints[runID]
	if !ok {
		return model.Checkpoint{}, false, nil
	}
	ckpt.Grid = copyGrid(ckpt.Grid)
	return ckpt, true, nil
}

func (s *MemoryStore) SaveDataset(_ context.Context, ds model.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.datasets[ds.ID] = copyDataset(ds)
	return nil
}

func (s *MemoryStore) GetDataset(_ context.Context, id string) (model.Dataset, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.datasets[id]
	if !ok {
		return model.Dataset{}, false, nil
	}
	return copyDataset(ds), true, nil
}

func copyGrid(g model.Grid) model.Grid {
	g.Markers = append([]string(nil), g.Markers...)
	g.Transforms = copyTransforms(g.Transforms)
	g.Values = append([]float64(nil), g.Values...)
	return g
}

func copyTransforms(transforms []model.TransformRecord) []model.TransformRecord {
	copied := make([]model.TransformRecord, len(transforms))
	for i, t := range transforms {
		t.Mean = append([]float64(nil), t.Mean...)
		t.Std = append([]float64(nil), t.Std...)
		t.Min = append([]float64(nil), t.Min...)
		t.Max = append([]float64(nil), t.Max...)
		copied[i] = t
	}
	return copied
}

func copyDataset(d model.Dataset) model.Dataset {
	cases := make([]model.CaseRow, len(d.Cases))
	for i, row := range d.Cases {
		grids := make(map[string]string, len(row.GridIDs))
		for tube, ref := range row.GridIDs {
			grids[tube] = ref
		}
		row.GridIDs = grids
		cases[i] = row
	}
	d.Cases = cases

	tubes := make(map[string]model.TubeConfig, len(d.Config.Tubes))
	for tube, cfg := range d.Config.Tubes {
		cfg.Channels = append([]string(nil), cfg.Channels...)
		tubes[tube] = cfg
	}
	d.Config.Tubes = tubes
	return d
}

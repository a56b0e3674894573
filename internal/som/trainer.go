package som

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"flowsom/internal/model"
)

// Trainer states. Transitions only move forward; retraining a grid means
// constructing a new trainer.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitialized   State = "initialized"
	StateTraining      State = "training"
	StateTrained       State = "trained"
)

// ErrAlreadyTrained indicates Train was called on a trainer in its
// terminal state.
var ErrAlreadyTrained = errors.New("som: trainer has already reached trained state")

// Config holds the competitive-learning parameters of one map training.
type Config struct {
	ID       string
	Name     string
	Tube     string
	Rows     int
	Cols     int
	Markers  []string
	NameOnly bool

	MaxEpochs     int
	BatchSize     int
	InitialRadius float64
	EndRadius     float64
	RadiusCooling string
	MapType       string
	Seed          int64
	Workers       int

	// OnEpochEnd, when set, receives a snapshot after every completed
	// epoch. Returning an error aborts training. The snapshot is the
	// checkpoint/resume contract: training can only stop and restart at
	// epoch boundaries.
	OnEpochEnd func(epoch int, snapshot model.Grid) error
}

func normalizeConfig(cfg Config) Config {
	if cfg.Rows <= 0 && cfg.Cols > 0 {
		cfg.Rows = cfg.Cols
	}
	if cfg.Cols <= 0 && cfg.Rows > 0 {
		cfg.Cols = cfg.Rows
	}
	if cfg.MaxEpochs <= 0 {
		cfg.MaxEpochs = 10
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50000
	}
	if cfg.InitialRadius <= 0 {
		cfg.InitialRadius = 16
	}
	if cfg.EndRadius <= 0 {
		cfg.EndRadius = 2
	}
	if cfg.RadiusCooling == "" {
		cfg.RadiusCooling = CoolingLinear
	}
	if cfg.MapType == "" {
		cfg.MapType = MapTypeToroid
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return cfg
}

// Trainer runs the batch SOM algorithm: per epoch, per batch, find each
// sample's best-matching unit, accumulate neighborhood-weighted update
// contributions per node, then apply them in one reduction step. The
// epoch boundary is a strict synchronization point; cancellation and
// checkpointing happen only there.
type Trainer struct {
	cfg   Config
	grid  *Grid
	rng   *rand.Rand
	dist  gridDistance
	cool  coolingSchedule
	state State
	epoch int
}

// NewTrainer seeds a grid with the given initializer and returns a trainer
// in the initialized state.
func NewTrainer(cfg Config, init Initializer) (*Trainer, error) {
	cfg = normalizeConfig(cfg)
	if cfg.EndRadius > cfg.InitialRadius {
		return nil, fmt.Errorf("som: end radius %v exceeds initial radius %v", cfg.EndRadius, cfg.InitialRadius)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	grid, err := init.seed(cfg, rng)
	if err != nil {
		return nil, err
	}
	if rows, cols := grid.Dims(); rows != cols {
		return nil, fmt.Errorf("%w: grid must be square, got %dx%d", ErrShapeMismatch, rows, cols)
	}
	cfg.Rows, cfg.Cols = grid.Dims()
	cfg.Markers = grid.Markers()

	dist, err := newGridDistance(cfg.MapType, cfg.Rows, cfg.Cols)
	if err != nil {
		return nil, err
	}
	cool, err := newCoolingSchedule(cfg.RadiusCooling, cfg.InitialRadius, cfg.EndRadius, cfg.MaxEpochs)
	if err != nil {
		return nil, err
	}
	return &Trainer{
		cfg:   cfg,
		grid:  grid,
		rng:   rng,
		dist:  dist,
		cool:  cool,
		state: StateInitialized,
	}, nil
}

// ResumeTrainer reconstructs a trainer from a checkpoint snapshot taken
// after a completed epoch. Training continues with the next epoch.
func ResumeTrainer(cfg Config, ckpt model.Checkpoint) (*Trainer, error) {
	grid, err := GridFromRecord(ckpt.Grid)
	if err != nil {
		return nil, fmt.Errorf("resume checkpoint %s: %w", ckpt.RunID, err)
	}
	if grid.trained {
		return nil, ErrAlreadyTrained
	}
	t, err := NewTrainer(cfg, ReferenceInit(grid))
	if err != nil {
		return nil, err
	}
	t.grid.id = grid.id
	t.grid.name = grid.name
	t.grid.tube = grid.tube
	t.epoch = ckpt.Epoch + 1
	t.state = StateTraining
	return t, nil
}

func (t *Trainer) State() State { return t.state }
func (t *Trainer) Epoch() int   { return t.epoch }

// Grid returns the trainer's grid. Until training completes the grid is
// not trained and cannot be persisted as a finished map.
func (t *Trainer) Grid() *Grid { return t.grid }

// Train runs the epoch loop over the given aligned, scaled event rows and
// returns the trained grid. Epoch count is the sole terminal condition.
// Context cancellation is honored between epochs only.
func (t *Trainer) Train(ctx context.Context, events [][]float64) (*Grid, error) {
	switch t.state {
	case StateInitialized, StateTraining:
	case StateTrained:
		return nil, ErrAlreadyTrained
	default:
		return nil, fmt.Errorf("som: cannot train from state %q", t.state)
	}
	if len(events) == 0 {
		return nil, errors.New("som: no training events")
	}
	dim := t.grid.Dim()
	for i, row := range events {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: event %d has %d components, grid wants %d",
				ErrShapeMismatch, i, len(row), dim)
		}
	}

	t.state = StateTraining
	for ; t.epoch < t.cfg.MaxEpochs; t.epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		radius := t.cool(t.epoch)
		for start := 0; start < len(events); start += t.cfg.BatchSize {
			end := start + t.cfg.BatchSize
			if end > len(events) {
				end = len(events)
			}
			if err := t.updateBatch(ctx, events[start:end], radius); err != nil {
				return nil, err
			}
		}
		if t.cfg.OnEpochEnd != nil {
			if err := t.cfg.OnEpochEnd(t.epoch, t.grid.Record()); err != nil {
				return nil, fmt.Errorf("epoch %d checkpoint: %w", t.epoch, err)
			}
		}
	}

	t.grid.trained = true
	t.state = StateTrained
	return t.grid, nil
}

// updateBatch accumulates neighborhood-weighted contributions for every
// sample in the batch, then applies them to the grid in one step. Workers
// partition the samples; each owns private accumulators that are reduced
// in worker order, so results do not depend on scheduling.
func (t *Trainer) updateBatch(ctx context.Context, batch [][]float64, radius float64) error {
	nodes := t.grid.Nodes()
	dim := t.grid.Dim()
	workers := t.cfg.Workers
	if workers > len(batch) {
		workers = len(batch)
	}

	nums := make([][]float64, workers)
	dens := make([][]float64, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		num := make([]float64, nodes*dim)
		den := make([]float64, nodes)
		nums[w], dens[w] = num, den
		lo := w * len(batch) / workers
		hi := (w + 1) * len(batch) / workers
		part := batch[lo:hi]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for _, sample := range part {
				t.accumulate(sample, radius, num, den)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Single-writer apply after reduction: no torn node updates.
	for w := 1; w < workers; w++ {
		for i, v := range nums[w] {
			nums[0][i] += v
		}
		for i, v := range dens[w] {
			dens[0][i] += v
		}
	}
	if workers > 0 {
		t.apply(nums[0], dens[0])
	}
	return nil
}

func (t *Trainer) accumulate(sample []float64, radius float64, num, den []float64) {
	dim := len(sample)
	bmu := t.grid.BMU(sample)
	bmuRow, bmuCol := bmu/t.cfg.Cols, bmu%t.cfg.Cols
	for node := 0; node < t.grid.Nodes(); node++ {
		row, col := node/t.cfg.Cols, node%t.cfg.Cols
		w := neighborhoodWeight(t.dist(bmuRow, bmuCol, row, col), radius)
		if w == 0 {
			continue
		}
		base := node * dim
		for k, v := range sample {
			num[base+k] += w * v
		}
		den[node] += w
	}
}

func (t *Trainer) apply(num, den []float64) {
	dim := t.grid.Dim()
	for node, d := range den {
		if d == 0 {
			continue
		}
		proto := t.grid.Node(node)
		base := node * dim
		for k := range proto {
			proto[k] = num[base+k] / d
		}
	}
}

// BMU returns the index of the grid node whose prototype has minimum
// Euclidean distance to the input vector.
func (g *Grid) BMU(vec []float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i := 0; i < g.Nodes(); i++ {
		if d := euclidean(vec, g.Node(i)); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

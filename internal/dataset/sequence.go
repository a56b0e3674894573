package dataset

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// Tensor is a rows x cols x markers block, wrap-padded when the sequence
// has a pad width.
type Tensor = [][][]float64

// Binarizer one-hot encodes group labels against a fixed class
// vocabulary.
type Binarizer struct {
	classes []string
	index   map[string]int
}

func NewBinarizer(classes []string) *Binarizer {
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	return &Binarizer{classes: append([]string(nil), classes...), index: index}
}

func (b *Binarizer) Classes() []string { return append([]string(nil), b.classes...) }

func (b *Binarizer) Transform(labels []string) ([][]float64, error) {
	out := make([][]float64, len(labels))
	for i, label := range labels {
		idx, ok := b.index[label]
		if !ok {
			return nil, fmt.Errorf("dataset: group %q not in class vocabulary", label)
		}
		row := make([]float64, len(b.classes))
		row[idx] = 1
		out[i] = row
	}
	return out, nil
}

// Inverse maps one-hot (or probability) rows back to class names by
// argmax.
func (b *Binarizer) Inverse(rows [][]float64) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		best := 0
		for j, v := range row {
			if v > row[best] {
				best = j
			}
		}
		if best < len(b.classes) {
			out[i] = b.classes[best]
		}
	}
	return out
}

// Batch is one classifier-ready slice of the dataset: per configured
// tube, one padded tensor per case, plus the one-hot group labels.
type Batch struct {
	Inputs [][]Tensor
	Labels [][]float64
}

// SequenceConfig sizes the indexed batch view over a dataset.
type SequenceConfig struct {
	Tubes     []string
	BatchSize int
	PadWidth  int
	// CacheSize bounds the batch memoization. The cache is a bounded
	// LRU keyed by batch index, keeping memory predictable for large
	// datasets.
	CacheSize int
}

func normalizeSequenceConfig(cfg SequenceConfig) SequenceConfig {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.PadWidth < 0 {
		cfg.PadWidth = 0
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 16
	}
	return cfg
}

// Sequence provides indexed batch access over a dataset for downstream
// classifier training.
type Sequence struct {
	ds    *Dataset
	cfg   SequenceConfig
	bin   *Binarizer
	cache *lru.Cache[int, Batch]
}

func NewSequence(ds *Dataset, bin *Binarizer, cfg SequenceConfig) (*Sequence, error) {
	cfg = normalizeSequenceConfig(cfg)
	if len(cfg.Tubes) == 0 {
		return nil, errors.New("dataset: sequence requires at least one tube")
	}
	for _, tube := range cfg.Tubes {
		if _, ok := ds.Config.Tubes[tube]; !ok {
			return nil, fmt.Errorf("dataset: tube %s not declared in dataset config", tube)
		}
	}
	cache, err := lru.New[int, Batch](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Sequence{ds: ds, cfg: cfg, bin: bin, cache: cache}, nil
}

// Len is the number of batches.
func (s *Sequence) Len() int {
	return (s.ds.Len() + s.cfg.BatchSize - 1) / s.cfg.BatchSize
}

// TrueLabels returns the group of every case in dataset order.
func (s *Sequence) TrueLabels() []string { return s.ds.Groups() }

// Batch assembles (or returns the memoized) batch at idx: each case's
// per-tube grids are loaded in parallel, wrap-padded and stacked.
func (s *Sequence) Batch(ctx context.Context, idx int) (Batch, error) {
	if idx < 0 || idx >= s.Len() {
		return Batch{}, fmt.Errorf("dataset: batch index %d out of range [0,%d)", idx, s.Len())
	}
	if cached, ok := s.cache.Get(idx); ok {
		return cached, nil
	}

	lo := idx * s.cfg.BatchSize
	hi := lo + s.cfg.BatchSize
	if hi > s.ds.Len() {
		hi = s.ds.Len()
	}
	cases := s.ds.Cases[lo:hi]

	inputs := make([][]Tensor, len(s.cfg.Tubes))
	for t := range inputs {
		inputs[t] = make([]Tensor, len(cases))
	}
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range cases {
		i, c := i, c
		g.Go(func() error {
			for t, tube := range s.cfg.Tubes {
				grid, ok, err := c.Grids.Get(ctx, tube)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("dataset: case %s has no grid for tube %s", c.Label, tube)
				}
				inputs[t][i] = grid.Padded(s.cfg.PadWidth)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, err
	}

	groups := make([]string, len(cases))
	for i, c := range cases {
		groups[i] = c.Group
	}
	labels, err := s.bin.Transform(groups)
	if err != nil {
		return Batch{}, err
	}

	batch := Batch{Inputs: inputs, Labels: labels}
	s.cache.Add(idx, batch)
	return batch, nil
}

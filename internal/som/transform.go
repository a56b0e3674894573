package som

import (
	"context"
	"errors"
	"fmt"
)

// ErrUntrainedReference indicates a transformer was built from a grid that
// never completed training.
var ErrUntrainedReference = errors.New("som: transform requires a trained reference grid")

// Transformer projects held-out samples onto a fixed, already-trained
// reference grid. Each sample gets its own grid, derived from the
// reference by a short continued-refinement pass over that sample's
// events alone. The reference is never mutated; every transform works on
// a clone.
type Transformer struct {
	ref *Grid
	cfg Config
}

func normalizeTransformConfig(cfg Config) Config {
	if cfg.MaxEpochs <= 0 {
		cfg.MaxEpochs = 4
	}
	if cfg.InitialRadius <= 0 {
		cfg.InitialRadius = 4
	}
	if cfg.EndRadius <= 0 {
		cfg.EndRadius = 1
	}
	return normalizeConfig(cfg)
}

// NewTransformer validates the reference and fixes the short refinement
// schedule used for every subsequent transform.
func NewTransformer(ref *Grid, cfg Config) (*Transformer, error) {
	if ref == nil || !ref.Trained() {
		return nil, ErrUntrainedReference
	}
	cfg = normalizeTransformConfig(cfg)
	cfg.Rows, cfg.Cols = ref.Dims()
	cfg.Markers = ref.Markers()
	cfg.Tube = ref.Tube()
	return &Transformer{ref: ref, cfg: cfg}, nil
}

// Transform derives a per-sample grid from the reference. The input events
// must already be aligned to the reference markers and scaled with the
// reference's persisted scaler parameters.
func (t *Transformer) Transform(ctx context.Context, label string, events [][]float64) (*Grid, error) {
	cfg := t.cfg
	cfg.Name = label
	trainer, err := NewTrainer(cfg, ReferenceInit(t.ref))
	if err != nil {
		return nil, err
	}
	out, err := trainer.Train(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("transform %q: %w", label, err)
	}
	out.transforms = t.ref.Transforms()
	return out, nil
}

// SampleSource yields one sample at a time: a case label and its aligned,
// scaled event rows. The produced grid sequence is restartable only if
// the source is.
type SampleSource interface {
	Next() (label string, events [][]float64, ok bool, err error)
}

// Seq returns a lazy grid sequence over the source. At most one sample is
// in flight; nothing is buffered ahead.
func (t *Transformer) Seq(src SampleSource) *GridSeq {
	return &GridSeq{t: t, src: src}
}

// GridSeq lazily yields one grid per source sample.
type GridSeq struct {
	t   *Transformer
	src SampleSource
}

// Next transforms the next sample. ok is false once the source is
// exhausted.
func (s *GridSeq) Next(ctx context.Context) (*Grid, bool, error) {
	label, events, ok, err := s.src.Next()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	grid, err := s.t.Transform(ctx, label, events)
	if err != nil {
		return nil, false, err
	}
	return grid, true, nil
}

// Sample is one labeled event batch for slice-backed sources.
type Sample struct {
	Label  string
	Events [][]float64
}

// SliceSource is a restartable in-memory SampleSource.
type SliceSource struct {
	samples []Sample
	next    int
}

func NewSliceSource(samples []Sample) *SliceSource {
	return &SliceSource{samples: samples}
}

func (s *SliceSource) Next() (string, [][]float64, bool, error) {
	if s.next >= len(s.samples) {
		return "", nil, false, nil
	}
	sample := s.samples[s.next]
	s.next++
	return sample.Label, sample.Events, true, nil
}

// Reset rewinds the source so the sequence can be replayed.
func (s *SliceSource) Reset() { s.next = 0 }

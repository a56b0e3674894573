// Package flowsom is the client facade over the SOM engine: training
// shared reference maps from flow-cytometry event corpora, projecting
// held-out cases onto them, and assembling per-case multi-tube grids into
// classifier-ready batches.
package flowsom

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"flowsom/internal/align"
	"flowsom/internal/dataset"
	"flowsom/internal/model"
	"flowsom/internal/som"
	"flowsom/internal/storage"
)

const defaultDBPath = "flowsom.db"

type Options struct {
	StoreKind string
	DBPath    string
}

type Client struct {
	store storage.Store
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// ReferenceRequest configures the long-lived shared reference map trained
// once per tube over a corpus of cases.
type ReferenceRequest struct {
	RunID    string
	Name     string
	Tube     string
	Markers  []string
	NameOnly bool
	Scaler   string

	Rows          int
	Cols          int
	MaxEpochs     int
	BatchSize     int
	InitialRadius float64
	EndRadius     float64
	RadiusCooling string
	MapType       string
	Seed          int64
	Workers       int

	// Sample optionally subsamples the joined corpus before training.
	Sample int
	// Checkpoint persists a snapshot after every completed epoch so an
	// aborted run can resume from the last epoch boundary.
	Checkpoint bool
}

func normalizeReferenceRequest(req ReferenceRequest) ReferenceRequest {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.Name == "" {
		req.Name = "reference"
	}
	if req.Scaler == "" {
		req.Scaler = align.ScalerMinMax
	}
	return req
}

// TrainReference aligns and joins the corpus, fits the scaler once,
// trains a reference grid and persists it together with the fitted
// scaler parameters.
func (c *Client) TrainReference(ctx context.Context, req ReferenceRequest, corpus []*align.EventMatrix) (model.Grid, error) {
	req = normalizeReferenceRequest(req)

	scaled, scaler, err := fitCorpus(req, corpus)
	if err != nil {
		return model.Grid{}, err
	}

	trainer, err := som.NewTrainer(c.referenceConfig(ctx, req), som.RandomInit(1))
	if err != nil {
		return model.Grid{}, err
	}
	return c.finishReference(ctx, req, trainer, scaled, scaler)
}

// ResumeReference continues an aborted reference training from its last
// persisted epoch checkpoint. The corpus must be the one the original run
// used; the scaler fit is deterministic, so refitting reproduces the
// original parameters.
func (c *Client) ResumeReference(ctx context.Context, req ReferenceRequest, corpus []*align.EventMatrix) (model.Grid, error) {
	req = normalizeReferenceRequest(req)

	ckpt, ok, err := c.store.GetCheckpoint(ctx, req.RunID)
	if err != nil {
		return model.Grid{}, err
	}
	if !ok {
		return model.Grid{}, fmt.Errorf("flowsom: no checkpoint for run %s", req.RunID)
	}

	scaled, scaler, err := fitCorpus(req, corpus)
	if err != nil {
		return model.Grid{}, err
	}

	trainer, err := som.ResumeTrainer(c.referenceConfig(ctx, req), ckpt)
	if err != nil {
		return model.Grid{}, err
	}
	return c.finishReference(ctx, req, trainer, scaled, scaler)
}

func (c *Client) referenceConfig(ctx context.Context, req ReferenceRequest) som.Config {
	cfg := som.Config{
		ID:            req.RunID,
		Name:          req.Name,
		Tube:          req.Tube,
		Rows:          req.Rows,
		Cols:          req.Cols,
		Markers:       req.Markers,
		NameOnly:      req.NameOnly,
		MaxEpochs:     req.MaxEpochs,
		BatchSize:     req.BatchSize,
		InitialRadius: req.InitialRadius,
		EndRadius:     req.EndRadius,
		RadiusCooling: req.RadiusCooling,
		MapType:       req.MapType,
		Seed:          req.Seed,
		Workers:       req.Workers,
	}
	if req.Checkpoint {
		cfg.OnEpochEnd = func(epoch int, snapshot model.Grid) error {
			return c.store.SaveCheckpoint(ctx, model.Checkpoint{
				VersionedRecord: storage.NewVersion(),
				RunID:           req.RunID,
				Epoch:           epoch,
				Grid:            snapshot,
			})
		}
	}
	return cfg
}

func fitCorpus(req ReferenceRequest, corpus []*align.EventMatrix) ([][]float64, align.Scaler, error) {
	scaler, err := align.NewScaler(req.Scaler)
	if err != nil {
		return nil, nil, err
	}
	joined, err := align.Join(corpus, req.Markers, align.Options{NameOnly: req.NameOnly})
	if err != nil {
		return nil, nil, err
	}
	if err := scaler.Fit(joined.Data); err != nil {
		return nil, nil, err
	}
	scaled, err := scaler.Transform(joined.Data)
	if err != nil {
		return nil, nil, err
	}
	if req.Sample > 0 {
		rng := rand.New(rand.NewSource(req.Seed))
		m := &align.EventMatrix{Channels: req.Markers, Data: scaled}
		scaled = m.Subsample(req.Sample, rng).Data
	}
	return scaled, scaler, nil
}

func (c *Client) finishReference(ctx context.Context, req ReferenceRequest, trainer *som.Trainer, scaled [][]float64, scaler align.Scaler) (model.Grid, error) {
	grid, err := trainer.Train(ctx, scaled)
	if err != nil {
		return model.Grid{}, fmt.Errorf("train reference %s: %w", req.RunID, err)
	}

	rec := grid.Record()
	rec.VersionedRecord = storage.NewVersion()
	rec.ID = req.RunID
	rec.Transforms = []model.TransformRecord{scaler.Record()}
	if err := c.store.SaveGrid(ctx, rec); err != nil {
		return model.Grid{}, fmt.Errorf("save reference %s: %w", req.RunID, err)
	}
	return rec, nil
}

// TransformRequest configures the short per-case refinement pass run
// against a stored reference grid.
type TransformRequest struct {
	ReferenceID string

	MaxEpochs     int
	BatchSize     int
	InitialRadius float64
	EndRadius     float64
	RadiusCooling string
	MapType       string
	Seed          int64
	Workers       int
	Sample        int
}

// CaseSample is one held-out case's raw events for a single tube.
type CaseSample struct {
	Label  string
	Events *align.EventMatrix
}

// TransformCases projects each case onto the stored reference grid and
// persists the resulting per-case grids. Cases are processed lazily, one
// at a time.
func (c *Client) TransformCases(ctx context.Context, req TransformRequest, cases []CaseSample) ([]model.Grid, error) {
	refRec, ok, err := c.store.GetGrid(ctx, req.ReferenceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("flowsom: reference grid %s not found", req.ReferenceID)
	}
	ref, err := som.GridFromRecord(refRec)
	if err != nil {
		return nil, err
	}

	transformer, err := som.NewTransformer(ref, som.Config{
		MaxEpochs:     req.MaxEpochs,
		BatchSize:     req.BatchSize,
		InitialRadius: req.InitialRadius,
		EndRadius:     req.EndRadius,
		RadiusCooling: req.RadiusCooling,
		MapType:       req.MapType,
		Seed:          req.Seed,
		Workers:       req.Workers,
	})
	if err != nil {
		return nil, err
	}

	src := &caseSource{
		ref:    ref,
		cases:  cases,
		sample: req.Sample,
		rng:    rand.New(rand.NewSource(req.Seed)),
	}
	seq := transformer.Seq(src)
	var out []model.Grid
	for {
		grid, ok, err := seq.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rec := grid.Record()
		rec.VersionedRecord = storage.NewVersion()
		rec.ID = fmt.Sprintf("%s_t%s", grid.Name(), ref.Tube())
		if err := c.store.SaveGrid(ctx, rec); err != nil {
			return nil, fmt.Errorf("save case grid %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// caseSource prepares one case per Next call, so alignment, scaling and
// subsampling happen only when the grid sequence pulls the case. At most
// one prepared case is held in memory at a time.
type caseSource struct {
	ref    *som.Grid
	cases  []CaseSample
	sample int
	rng    *rand.Rand
	next   int
}

func (s *caseSource) Next() (string, [][]float64, bool, error) {
	if s.next >= len(s.cases) {
		return "", nil, false, nil
	}
	cs := s.cases[s.next]
	s.next++
	events, err := prepareCase(s.ref, cs.Events, s.sample, s.rng)
	if err != nil {
		return "", nil, false, fmt.Errorf("case %s: %w", cs.Label, err)
	}
	return cs.Label, events, true, nil
}

// prepareCase aligns raw case events to the reference markers and replays
// the reference's persisted scaler provenance, so the case lands in the
// coordinate space the reference was trained in.
func prepareCase(ref *som.Grid, events *align.EventMatrix, sample int, rng *rand.Rand) ([][]float64, error) {
	aligned, err := events.Align(ref.Markers(), align.Options{NameOnly: ref.NameOnly()})
	if err != nil {
		return nil, err
	}
	data := aligned.Data
	for _, rec := range ref.Transforms() {
		scaler, err := align.ScalerFromRecord(rec)
		if err != nil {
			return nil, err
		}
		if data, err = scaler.Transform(data); err != nil {
			return nil, err
		}
	}
	if sample > 0 {
		m := &align.EventMatrix{Channels: ref.Markers(), Data: data}
		data = m.Subsample(sample, rng).Data
	}
	return data, nil
}

// SaveDataset registers cohort metadata: one row per case with per-tube
// grid references, plus the shared tube configuration.
func (c *Client) SaveDataset(ctx context.Context, ds model.Dataset) error {
	if ds.ID == "" {
		ds.ID = uuid.NewString()
	}
	ds.VersionedRecord = storage.NewVersion()
	return c.store.SaveDataset(ctx, ds)
}

// PrepareRequest configures cohort assembly for downstream classifier
// training.
type PrepareRequest struct {
	DatasetID string
	// Groups is the class vocabulary after mapping.
	Groups []string
	// Mapping optionally collapses fine-grained groups into coarse ones.
	Mapping map[string]string
	// Balance gives the target count per group for the training
	// partition. Groups absent from it are dropped.
	Balance map[string]int

	SplitRatio     float64
	Tubes          []string
	PadWidth       int
	BatchSize      int
	ValidBatchSize int
	CacheSize      int
	Seed           int64
}

// PreparedData is a classifier-ready train/validate pair of padded batch
// sequences.
type PreparedData struct {
	Train     *dataset.Sequence
	Validate  *dataset.Sequence
	Binarizer *dataset.Binarizer
}

// PrepareTrainingData loads the cohort, remaps and filters groups,
// splits stratified by group, balances the training partition and wraps
// both partitions in padded batch sequences.
func (c *Client) PrepareTrainingData(ctx context.Context, req PrepareRequest) (*PreparedData, error) {
	if len(req.Groups) == 0 {
		return nil, fmt.Errorf("flowsom: prepare needs at least one group")
	}
	if req.SplitRatio <= 0 || req.SplitRatio >= 1 {
		req.SplitRatio = 0.9
	}
	if req.ValidBatchSize <= 0 {
		req.ValidBatchSize = 128
	}

	rec, ok, err := c.store.GetDataset(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("flowsom: dataset %s not found", req.DatasetID)
	}

	ds := dataset.FromRecord(rec, gridLoader{store: c.store})
	if len(req.Mapping) > 0 {
		ds = ds.MapGroups(req.Mapping)
	}
	ds = ds.FilterGroups(req.Groups)

	rng := rand.New(rand.NewSource(req.Seed))
	train, validate := ds.Split(req.SplitRatio, rng)
	if len(req.Balance) > 0 {
		train = train.Balance(req.Balance, rng)
	}

	bin := dataset.NewBinarizer(req.Groups)
	trainSeq, err := dataset.NewSequence(train, bin, dataset.SequenceConfig{
		Tubes:     req.Tubes,
		BatchSize: req.BatchSize,
		PadWidth:  req.PadWidth,
		CacheSize: req.CacheSize,
	})
	if err != nil {
		return nil, err
	}
	validSeq, err := dataset.NewSequence(validate, bin, dataset.SequenceConfig{
		Tubes:     req.Tubes,
		BatchSize: req.ValidBatchSize,
		PadWidth:  req.PadWidth,
		CacheSize: req.CacheSize,
	})
	if err != nil {
		return nil, err
	}
	return &PreparedData{Train: trainSeq, Validate: validSeq, Binarizer: bin}, nil
}

// gridLoader adapts the store to the dataset layer's lazy loading.
type gridLoader struct {
	store storage.Store
}

func (l gridLoader) LoadGrid(ctx context.Context, ref string) (*som.Grid, bool, error) {
	rec, ok, err := l.store.GetGrid(ctx, ref)
	if err != nil || !ok {
		return nil, false, err
	}
	grid, err := som.GridFromRecord(rec)
	if err != nil {
		return nil, false, err
	}
	return grid, true, nil
}

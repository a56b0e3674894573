package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// TransformRecord describes one fitted preprocessing step applied to event
// data before it reached a map. Records are replayed in order at transform
// time so held-out samples land in the same coordinate space the map was
// trained in.
type TransformRecord struct {
	Scaler string    `json:"scaler"`
	Mean   []float64 `json:"mean,omitempty"`
	Std    []float64 `json:"std,omitempty"`
	Min    []float64 `json:"min,omitempty"`
	Max    []float64 `json:"max,omitempty"`
}

// Grid is the persistent form of a self-organizing map: a row-major array of
// Rows*Cols prototype vectors, each len(Markers) wide.
type Grid struct {
	VersionedRecord
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Tube       string            `json:"tube"`
	Rows       int               `json:"rows"`
	Cols       int               `json:"cols"`
	Markers    []string          `json:"markers"`
	NameOnly   bool              `json:"name_only,omitempty"`
	Trained    bool              `json:"trained"`
	Transforms []TransformRecord `json:"transforms,omitempty"`
	Values     []float64         `json:"values"`
}

// Checkpoint snapshots a training run after a completed epoch so an aborted
// run can resume without losing progress.
type Checkpoint struct {
	VersionedRecord
	RunID string `json:"run_id"`
	Epoch int    `json:"epoch"`
	Grid  Grid   `json:"grid"`
}

// CaseRow is one cohort member in the dataset metadata table: its label,
// diagnostic group and the storage reference of its map per tube.
type CaseRow struct {
	Label   string            `json:"label"`
	Group   string            `json:"group"`
	GridIDs map[string]string `json:"grid_ids"`
}

// TubeConfig declares the grid dimensions and channel list shared by every
// case's map for one tube.
type TubeConfig struct {
	Rows     int      `json:"rows"`
	Cols     int      `json:"cols"`
	Channels []string `json:"channels"`
}

// DatasetConfig is the shared per-tube configuration of a cohort dataset.
type DatasetConfig struct {
	Tubes map[string]TubeConfig `json:"tubes"`
}

// Dataset is the persistent cohort metadata: one row per case plus the
// shared tube configuration.
type Dataset struct {
	VersionedRecord
	ID     string        `json:"id"`
	Config DatasetConfig `json:"config"`
	Cases  []CaseRow     `json:"cases"`
}

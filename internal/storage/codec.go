package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"flowsom/internal/model"
	"flowsom/internal/som"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("storage: record version mismatch")

// NewVersion stamps a record with the current schema and codec versions.
func NewVersion() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func EncodeGrid(g model.Grid) ([]byte, error) {
	if !g.Trained {
		return nil, som.ErrUntrainedSave
	}
	return json.Marshal(g)
}

// DecodeGrid parses a stored grid payload and validates that the declared
// dims and marker count agree with the stored value array; disagreement
// signals corrupted or incompatible storage.
func DecodeGrid(data []byte) (model.Grid, error) {
	var grid model.Grid
	if err := json.Unmarshal(data, &grid); err != nil {
		return model.Grid{}, err
	}
	if err := checkVersion(grid.VersionedRecord); err != nil {
		return model.Grid{}, err
	}
	if _, err := som.GridFromRecord(grid); err != nil {
		return model.Grid{}, err
	}
	return grid, nil
}

func EncodeCheckpoint(c model.Checkpoint) ([]byte, error) {
	return json.Marshal(c)
}

func DecodeCheckpoint(data []byte) (model.Checkpoint, error) {
	var ckpt model.Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return model.Checkpoint{}, err
	}
	if err := checkVersion(ckpt.VersionedRecord); err != nil {
		return model.Checkpoint{}, err
	}
	if _, err := som.GridFromRecord(ckpt.Grid); err != nil {
		return model.Checkpoint{}, fmt.Errorf("checkpoint %s: %w", ckpt.RunID, err)
	}
	return ckpt, nil
}

func EncodeDataset(d model.Dataset) ([]byte, error) {
	return json.Marshal(d)
}

func DecodeDataset(data []byte) (model.Dataset, error) {
	var ds model.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return model.Dataset{}, err
	}
	if err := checkVersion(ds.VersionedRecord); err != nil {
		return model.Dataset{}, err
	}
	return ds, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

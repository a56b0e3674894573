package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"flowsom/internal/model"
	fcapi "flowsom/pkg/flowsom"
)

func loadReferenceConfig(path string) (fcapi.ReferenceRequest, []string, error) {
	raw, err := loadRawConfig(path)
	if err != nil {
		return fcapi.ReferenceRequest{}, nil, err
	}

	var req fcapi.ReferenceRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["name"]); ok {
		req.Name = v
	}
	if v, ok := asString(raw["tube"]); ok {
		req.Tube = v
	}
	if v, ok := asStringSlice(raw["markers"]); ok {
		req.Markers = v
	}
	if v, ok := asBool(raw["marker_name_only"]); ok {
		req.NameOnly = v
	}
	if v, ok := asString(raw["scaler"]); ok {
		req.Scaler = v
	}
	if v, ok := asInt(raw["rows"]); ok {
		req.Rows = v
	}
	if v, ok := asInt(raw["cols"]); ok {
		req.Cols = v
	}
	if v, ok := asInt(raw["max_epochs"]); ok {
		req.MaxEpochs = v
	}
	if v, ok := asInt(raw["batch_size"]); ok {
		req.BatchSize = v
	}
	if v, ok := asFloat64(raw["initial_radius"]); ok {
		req.InitialRadius = v
	}
	if v, ok := asFloat64(raw["end_radius"]); ok {
		req.EndRadius = v
	}
	if v, ok := asString(raw["radius_cooling"]); ok {
		req.RadiusCooling = v
	}
	if v, ok := asString(raw["map_type"]); ok {
		req.MapType = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asInt(raw["sample"]); ok {
		req.Sample = v
	}
	if v, ok := asBool(raw["checkpoint"]); ok {
		req.Checkpoint = v
	}

	events, ok := asStringSlice(raw["events"])
	if !ok || len(events) == 0 {
		return fcapi.ReferenceRequest{}, nil, fmt.Errorf("reference config %s: events file list is required", path)
	}
	return req, events, nil
}

func loadTransformConfig(path string) (fcapi.TransformRequest, map[string]string, error) {
	raw, err := loadRawConfig(path)
	if err != nil {
		return fcapi.TransformRequest{}, nil, err
	}

	var req fcapi.TransformRequest
	if v, ok := asString(raw["reference_id"]); ok {
		req.ReferenceID = v
	}
	if v, ok := asInt(raw["max_epochs"]); ok {
		req.MaxEpochs = v
	}
	if v, ok := asInt(raw["batch_size"]); ok {
		req.BatchSize = v
	}
	if v, ok := asFloat64(raw["initial_radius"]); ok {
		req.InitialRadius = v
	}
	if v, ok := asFloat64(raw["end_radius"]); ok {
		req.EndRadius = v
	}
	if v, ok := asString(raw["radius_cooling"]); ok {
		req.RadiusCooling = v
	}
	if v, ok := asString(raw["map_type"]); ok {
		req.MapType = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asInt(raw["sample"]); ok {
		req.Sample = v
	}
	if req.ReferenceID == "" {
		return fcapi.TransformRequest{}, nil, fmt.Errorf("transform config %s: reference_id is required", path)
	}

	casesRaw, ok := raw["cases"].(map[string]any)
	if !ok || len(casesRaw) == 0 {
		return fcapi.TransformRequest{}, nil, fmt.Errorf("transform config %s: cases map is required", path)
	}
	cases := make(map[string]string, len(casesRaw))
	for label, v := range casesRaw {
		file, ok := asString(v)
		if !ok {
			return fcapi.TransformRequest{}, nil, fmt.Errorf("transform config %s: case %s needs a file path", path, label)
		}
		cases[label] = file
	}
	return req, cases, nil
}

func loadDatasetConfig(path string) (model.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Dataset{}, err
	}
	var ds model.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return model.Dataset{}, fmt.Errorf("parse dataset config %s: %w", path, err)
	}
	if len(ds.Cases) == 0 {
		return model.Dataset{}, fmt.Errorf("dataset config %s: cases are required", path)
	}
	return ds, nil
}

func loadPrepareConfig(path string) (fcapi.PrepareRequest, error) {
	raw, err := loadRawConfig(path)
	if err != nil {
		return fcapi.PrepareRequest{}, err
	}

	var req fcapi.PrepareRequest
	if v, ok := asString(raw["dataset_id"]); ok {
		req.DatasetID = v
	}
	if v, ok := asStringSlice(raw["groups"]); ok {
		req.Groups = v
	}
	if v, ok := asStringSlice(raw["tubes"]); ok {
		req.Tubes = v
	}
	if mapping, ok := raw["mapping"].(map[string]any); ok {
		req.Mapping = make(map[string]string, len(mapping))
		for from, v := range mapping {
			if to, ok := asString(v); ok {
				req.Mapping[from] = to
			}
		}
	}
	if balance, ok := raw["balance"].(map[string]any); ok {
		req.Balance = make(map[string]int, len(balance))
		for group, v := range balance {
			if n, ok := asInt(v); ok {
				req.Balance[group] = n
			}
		}
	}
	if v, ok := asFloat64(raw["split_ratio"]); ok {
		req.SplitRatio = v
	}
	if v, ok := asInt(raw["pad_width"]); ok {
		req.PadWidth = v
	}
	if v, ok := asInt(raw["batch_size"]); ok {
		req.BatchSize = v
	}
	if v, ok := asInt(raw["valid_batch_size"]); ok {
		req.ValidBatchSize = v
	}
	if v, ok := asInt(raw["cache_size"]); ok {
		req.CacheSize = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if req.DatasetID == "" {
		return fcapi.PrepareRequest{}, fmt.Errorf("prepare config %s: dataset_id is required", path)
	}
	return req, nil
}

func loadRawConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return raw, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asFloat64(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func asInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func asInt64(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func asStringSlice(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

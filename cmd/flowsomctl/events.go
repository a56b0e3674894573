package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"flowsom/internal/align"
	fcapi "flowsom/pkg/flowsom"
)

// readEventFile parses a CSV of events: a header row of channel names
// followed by one numeric row per event.
func readEventFile(path string) (*align.EventMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("event file %s is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read event csv header %s: %w", path, err)
	}
	channels := make([]string, len(header))
	for i, name := range header {
		channels[i] = strings.TrimSpace(name)
	}

	var rows [][]float64
	rowIndex := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read event csv %s row %d: %w", path, rowIndex, err)
		}
		if blankRecord(record) {
			continue
		}
		if len(record) != len(channels) {
			return nil, fmt.Errorf("event csv %s row %d has %d fields, header has %d",
				path, rowIndex, len(record), len(channels))
		}
		row := make([]float64, len(record))
		for i, raw := range record {
			value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("parse event csv %s row %d column %d: %w", path, rowIndex, i, err)
			}
			row[i] = value
		}
		rows = append(rows, row)
		rowIndex++
	}
	return &align.EventMatrix{Channels: channels, Data: rows}, nil
}

func readEventFiles(paths []string) ([]*align.EventMatrix, error) {
	out := make([]*align.EventMatrix, 0, len(paths))
	for _, path := range paths {
		m, err := readEventFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func readCaseFiles(files map[string]string) ([]fcapi.CaseSample, error) {
	labels := make([]string, 0, len(files))
	for label := range files {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make([]fcapi.CaseSample, 0, len(labels))
	for _, label := range labels {
		m, err := readEventFile(files[label])
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", label, err)
		}
		out = append(out, fcapi.CaseSample{Label: label, Events: m})
	}
	return out, nil
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

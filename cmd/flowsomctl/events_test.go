package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeEventCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestReadEventFile(t *testing.T) {
	path := writeEventCSV(t, "events.csv", "CD45-KrOr, CD19-APCA750\n1.5,2\n\n3,4.25\n")

	m, err := readEventFile(path)
	if err != nil {
		t.Fatalf("read event file: %v", err)
	}
	if !reflect.DeepEqual(m.Channels, []string{"CD45-KrOr", "CD19-APCA750"}) {
		t.Fatalf("unexpected channels: %v", m.Channels)
	}
	want := [][]float64{{1.5, 2}, {3, 4.25}}
	if !reflect.DeepEqual(m.Data, want) {
		t.Fatalf("unexpected data: %v", m.Data)
	}
}

func TestReadEventFileFieldCountMismatch(t *testing.T) {
	path := writeEventCSV(t, "events.csv", "a,b\n1,2,3\n")
	if _, err := readEventFile(path); err == nil {
		t.Fatal("expected error for field count mismatch")
	}
}

func TestReadEventFileBadNumber(t *testing.T) {
	path := writeEventCSV(t, "events.csv", "a,b\n1,two\n")
	if _, err := readEventFile(path); err == nil {
		t.Fatal("expected error for non-numeric field")
	}
}

func TestReadEventFileEmpty(t *testing.T) {
	path := writeEventCSV(t, "events.csv", "")
	if _, err := readEventFile(path); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestReadCaseFilesSortsLabels(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{}
	for _, label := range []string{"zeta", "alpha"} {
		path := filepath.Join(dir, label+".csv")
		if err := os.WriteFile(path, []byte("a\n1\n"), 0o644); err != nil {
			t.Fatalf("write csv: %v", err)
		}
		files[label] = path
	}

	cases, err := readCaseFiles(files)
	if err != nil {
		t.Fatalf("read case files: %v", err)
	}
	if len(cases) != 2 || cases[0].Label != "alpha" || cases[1].Label != "zeta" {
		t.Fatalf("unexpected case order: %+v", cases)
	}
	if cases[0].Events == nil || len(cases[0].Events.Data) != 1 {
		t.Fatalf("unexpected events: %+v", cases[0].Events)
	}
}

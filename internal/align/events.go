package align

import (
	"fmt"
	"math/rand"
	"strings"
)

// EventMatrix is a rectangular block of per-event measurements: one row per
// event, one column per named channel.
type EventMatrix struct {
	Channels []string
	Data     [][]float64
}

// MarkerMissingError reports target markers that could not be resolved
// against an input channel list. Alignment never zero-fills a missing
// column; the caller decides whether to skip the case or abort the run.
type MarkerMissingError struct {
	Markers []string
}

func (e *MarkerMissingError) Error() string {
	return fmt.Sprintf("align: markers missing from input: %s", strings.Join(e.Markers, ", "))
}

// Options controls channel resolution during alignment.
type Options struct {
	// NameOnly matches channels on the marker name alone, ignoring the
	// fluorochrome suffix, so "CD45-KrOr" and "CD45-PerCP" both resolve
	// the target "CD45".
	NameOnly bool
}

// NameOnly strips the trailing fluorochrome label from a channel name.
// Channels without a dash separator are returned unchanged.
func NameOnly(channel string) string {
	if i := strings.LastIndex(channel, "-"); i > 0 {
		return channel[:i]
	}
	return channel
}

// Align reorders the matrix columns to exactly match the target marker
// list. The column index map is resolved once and reused for the whole
// matrix. Returns a MarkerMissingError listing every unresolved marker if
// any target cannot be found.
func (m *EventMatrix) Align(target []string, opts Options) (*EventMatrix, error) {
	indexes, err := resolveIndexes(m.Channels, target, opts)
	if err != nil {
		return nil, err
	}

	out := make([][]float64, len(m.Data))
	for i, row := range m.Data {
		aligned := make([]float64, len(indexes))
		for j, src := range indexes {
			aligned[j] = row[src]
		}
		out[i] = aligned
	}
	return &EventMatrix{
		Channels: append([]string(nil), target...),
		Data:     out,
	}, nil
}

func resolveIndexes(channels, target []string, opts Options) ([]int, error) {
	byName := make(map[string]int, len(channels))
	for i, name := range channels {
		if _, ok := byName[name]; !ok {
			byName[name] = i
		}
	}
	var byShort map[string]int
	if opts.NameOnly {
		byShort = make(map[string]int, len(channels))
		for i, name := range channels {
			short := NameOnly(name)
			if _, ok := byShort[short]; !ok {
				byShort[short] = i
			}
		}
	}

	indexes := make([]int, 0, len(target))
	var missing []string
	for _, marker := range target {
		if i, ok := byName[marker]; ok {
			indexes = append(indexes, i)
			continue
		}
		if opts.NameOnly {
			if i, ok := byShort[NameOnly(marker)]; ok {
				indexes = append(indexes, i)
				continue
			}
		}
		missing = append(missing, marker)
	}
	if len(missing) > 0 {
		return nil, &MarkerMissingError{Markers: missing}
	}
	return indexes, nil
}

// Join aligns each input matrix to the target markers and concatenates
// their rows into one training corpus.
func Join(mats []*EventMatrix, target []string, opts Options) (*EventMatrix, error) {
	joined := &EventMatrix{Channels: append([]string(nil), target...)}
	for i, m := range mats {
		aligned, err := m.Align(target, opts)
		if err != nil {
			return nil, fmt.Errorf("join matrix %d: %w", i, err)
		}
		joined.Data = append(joined.Data, aligned.Data...)
	}
	return joined, nil
}

// Subsample draws n event rows without replacement. When n is not positive
// or exceeds the event count the matrix is returned unchanged.
func (m *EventMatrix) Subsample(n int, rng *rand.Rand) *EventMatrix {
	if n <= 0 || n >= len(m.Data) {
		return m
	}
	perm := rng.Perm(len(m.Data))
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = m.Data[perm[i]]
	}
	return &EventMatrix{
		Channels: append([]string(nil), m.Channels...),
		Data:     out,
	}
}

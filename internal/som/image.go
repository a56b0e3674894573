package som

import (
	"errors"

	"flowsom/internal/align"
)

// WeightImage renders three marker planes of the grid as an RGB tensor
// for diagnostic visualization. An empty marker name leaves that color
// channel zero. Returns a MarkerMissingError listing every marker the
// grid does not carry.
func (g *Grid) WeightImage(markers [3]string) ([][][3]float64, error) {
	var cols [3]int
	var active [3]bool
	var missing []string
	for i, name := range markers {
		if name == "" {
			continue
		}
		idx, ok := g.MarkerIndex(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[i], active[i] = idx, true
	}
	if len(missing) > 0 {
		return nil, &align.MarkerMissingError{Markers: missing}
	}

	out := make([][][3]float64, g.rows)
	for r := 0; r < g.rows; r++ {
		row := make([][3]float64, g.cols)
		for c := 0; c < g.cols; c++ {
			node := g.NodeAt(r, c)
			for i := 0; i < 3; i++ {
				if active[i] {
					row[c][i] = node[cols[i]]
				}
			}
		}
		out[r] = row
	}
	return out, nil
}

// WeightImages renders every named image spec it can. A spec referencing
// markers the grid lacks is the one recoverable condition in the engine:
// it is reported through the hook and skipped instead of aborting the
// run.
func WeightImages(g *Grid, specs map[string][3]string, onMissing func(name string, missing []string)) map[string][][][3]float64 {
	out := make(map[string][][][3]float64, len(specs))
	for name, markers := range specs {
		img, err := g.WeightImage(markers)
		if err != nil {
			var missErr *align.MarkerMissingError
			if errors.As(err, &missErr) && onMissing != nil {
				onMissing(name, missErr.Markers)
			}
			continue
		}
		out[name] = img
	}
	return out
}

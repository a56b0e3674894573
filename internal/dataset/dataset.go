package dataset

import (
	"math"
	"math/rand"
	"sort"

	"flowsom/internal/model"
)

// Dataset is an ordered cohort of cases plus the shared per-tube grid
// configuration. Transform operations are functional: they return new
// datasets over new case slices and leave the receiver untouched.
type Dataset struct {
	Cases  []Case
	Config model.DatasetConfig
}

// New wraps cases and configuration into a dataset.
func New(cases []Case, config model.DatasetConfig) *Dataset {
	return &Dataset{Cases: cases, Config: config}
}

// FromRecord rebuilds a dataset from persisted metadata, attaching lazy
// grid collections backed by the loader.
func FromRecord(rec model.Dataset, loader GridLoader) *Dataset {
	cases := make([]Case, 0, len(rec.Cases))
	for _, row := range rec.Cases {
		cases = append(cases, Case{
			Label: row.Label,
			Group: row.Group,
			Grids: NewGridCollection(row.GridIDs, loader),
		})
	}
	return &Dataset{Cases: cases, Config: rec.Config}
}

func (d *Dataset) Len() int { return len(d.Cases) }

// Groups returns each case's group in dataset order.
func (d *Dataset) Groups() []string {
	out := make([]string, len(d.Cases))
	for i, c := range d.Cases {
		out[i] = c.Group
	}
	return out
}

// Labels returns each case's label in dataset order.
func (d *Dataset) Labels() []string {
	out := make([]string, len(d.Cases))
	for i, c := range d.Cases {
		out[i] = c.Label
	}
	return out
}

// GroupCounts tallies cases per group.
func (d *Dataset) GroupCounts() map[string]int {
	counts := make(map[string]int)
	for _, c := range d.Cases {
		counts[c.Group]++
	}
	return counts
}

// FilterGroups keeps only cases whose group is in the given set.
func (d *Dataset) FilterGroups(groups []string) *Dataset {
	keep := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		keep[g] = struct{}{}
	}
	var cases []Case
	for _, c := range d.Cases {
		if _, ok := keep[c.Group]; ok {
			cases = append(cases, c)
		}
	}
	return New(cases, d.Config)
}

// MapGroups relabels cases many-to-one from fine-grained to coarse
// groups in one pass. Groups absent from the mapping pass through
// unchanged.
func (d *Dataset) MapGroups(mapping map[string]string) *Dataset {
	cases := make([]Case, len(d.Cases))
	for i, c := range d.Cases {
		if mapped, ok := mapping[c.Group]; ok {
			c.Group = mapped
		}
		cases[i] = c
	}
	return New(cases, d.Config)
}

// Balance samples each group with replacement to exactly the count in
// perGroup, oversampling small groups and undersampling large ones. A
// group absent from perGroup is dropped from the result silently, so the
// target mapping must cover every group the caller wants retained. The
// result is shuffled.
func (d *Dataset) Balance(perGroup map[string]int, rng *rand.Rand) *Dataset {
	byGroup := d.groupIndexes()
	var cases []Case
	for _, group := range sortedKeys(byGroup) {
		n, ok := perGroup[group]
		if !ok {
			continue
		}
		members := byGroup[group]
		for i := 0; i < n; i++ {
			cases = append(cases, d.Cases[members[rng.Intn(len(members))]])
		}
	}
	shuffleCases(cases, rng)
	return New(cases, d.Config)
}

// Split partitions the dataset stratified by group at the given ratio.
// Each group's unique labels are shuffled and split independently, so a
// label never lands in both partitions even when balancing duplicated
// entries, and per-group proportions track the ratio within rounding.
// Both partitions are shuffled before being returned.
func (d *Dataset) Split(ratio float64, rng *rand.Rand) (train, validate *Dataset) {
	var trainCases, validateCases []Case
	byGroup := d.groupIndexes()
	for _, group := range sortedKeys(byGroup) {
		labels, byLabel := labelIndexes(d.Cases, byGroup[group])
		rng.Shuffle(len(labels), func(i, j int) {
			labels[i], labels[j] = labels[j], labels[i]
		})
		pivot := int(math.Round(ratio * float64(len(labels))))
		for i, label := range labels {
			for _, idx := range byLabel[label] {
				if i < pivot {
					trainCases = append(trainCases, d.Cases[idx])
				} else {
					validateCases = append(validateCases, d.Cases[idx])
				}
			}
		}
	}
	shuffleCases(trainCases, rng)
	shuffleCases(validateCases, rng)
	return New(trainCases, d.Config), New(validateCases, d.Config)
}

func (d *Dataset) groupIndexes() map[string][]int {
	byGroup := make(map[string][]int)
	for i, c := range d.Cases {
		byGroup[c.Group] = append(byGroup[c.Group], i)
	}
	return byGroup
}

// labelIndexes groups member indexes by case label, preserving first-seen
// label order.
func labelIndexes(cases []Case, members []int) ([]string, map[string][]int) {
	var labels []string
	byLabel := make(map[string][]int)
	for _, idx := range members {
		label := cases[idx].Label
		if _, ok := byLabel[label]; !ok {
			labels = append(labels, label)
		}
		byLabel[label] = append(byLabel[label], idx)
	}
	return labels, byLabel
}

func shuffleCases(cases []Case, rng *rand.Rand) {
	rng.Shuffle(len(cases), func(i, j int) {
		cases[i], cases[j] = cases[j], cases[i]
	})
}

func sortedKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

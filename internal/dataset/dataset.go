package dataset

import (
	"sort"
	"time"

	"github.com/yourusername/matchcast/internal/models"
)

// Row is one labeled training example.
type Row struct {
	MatchID  int64          `json:"match_id"`
	Season   int            `json:"season"`
	Date     time.Time      `json:"date"`
	Features []float64      `json:"features"`
	Label    models.Outcome `json:"label"`
	Weight   float64        `json:"weight"`
}

// Dataset is a table of rows sharing one feature schema.
type Dataset struct {
	SchemaVersion string   `json:"schema_version"`
	Columns       []string `json:"columns"`
	Rows          []Row    `json:"rows"`
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// X returns the feature matrix. Rows share backing arrays with the dataset.
func (d *Dataset) X() [][]float64 {
	out := make([][]float64, len(d.Rows))
	for i := range d.Rows {
		out[i] = d.Rows[i].Features
	}
	return out
}

// Y returns the class labels.
func (d *Dataset) Y() []int {
	out := make([]int, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = int(r.Label)
	}
	return out
}

// Weights returns per-row sample weights.
func (d *Dataset) Weights() []float64 {
	out := make([]float64, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r.Weight
	}
	return out
}

// Seasons returns the distinct seasons present, ascending.
func (d *Dataset) Seasons() []int {
	seen := make(map[int]bool)
	var out []int
	for _, r := range d.Rows {
		if !seen[r.Season] {
			seen[r.Season] = true
			out = append(out, r.Season)
		}
	}
	sort.Ints(out)
	return out
}

// LabelCounts returns the number of rows per outcome.
func (d *Dataset) LabelCounts() [models.NumOutcomes]int {
	var out [models.NumOutcomes]int
	for _, r := range d.Rows {
		out[r.Label]++
	}
	return out
}

// SortByDate orders rows chronologically, breaking ties by match id.
func (d *Dataset) SortByDate() {
	sort.SliceStable(d.Rows, func(i, j int) bool {
		a, b := d.Rows[i], d.Rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.MatchID < b.MatchID
	})
}

// ApplyWeights sets the weight of rows found in weights. Other rows keep
// their current weight.
func (d *Dataset) ApplyWeights(weights map[int64]float64) int {
	applied := 0
	for i := range d.Rows {
		if w, ok := weights[d.Rows[i].MatchID]; ok {
			d.Rows[i].Weight = w
			applied++
		}
	}
	return applied
}

// Merge appends rows of other whose match ids are not already present.
// Both datasets must share the same columns.
func (d *Dataset) Merge(other *Dataset) (int, error) {
	if err := models.CheckSchema(d.SchemaVersion, d.Columns, other.Columns); err != nil {
		return 0, err
	}
	present := make(map[int64]bool, len(d.Rows))
	for _, r := range d.Rows {
		present[r.MatchID] = true
	}
	added := 0
	for _, r := range other.Rows {
		if present[r.MatchID] {
			continue
		}
		d.Rows = append(d.Rows, r)
		present[r.MatchID] = true
		added++
	}
	d.SortByDate()
	return added, nil
}

func (d *Dataset) subset(keep func(Row) bool) *Dataset {
	out := &Dataset{SchemaVersion: d.SchemaVersion, Columns: d.Columns}
	for _, r := range d.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// DefaultValidFraction is the chronological hold-out share used when no
// validation season is given.
const DefaultValidFraction = 0.2

// ErrEmptySplit is returned when a split leaves one side without rows.
var ErrEmptySplit = errors.New("split produced an empty partition")

// SplitOptions selects the validation rows.
type SplitOptions struct {
	// ValidSeason holds out a whole season when set.
	ValidSeason *int
	// ValidFraction holds out the most recent share of rows otherwise.
	ValidFraction float64
}

// Split partitions ds into training and validation sets without shuffling.
func Split(ds *Dataset, opts SplitOptions) (train, valid *Dataset, err error) {
	if opts.ValidSeason != nil {
		season := *opts.ValidSeason
		train = ds.subset(func(r Row) bool { return r.Season != season })
		valid = ds.subset(func(r Row) bool { return r.Season == season })
		if train.Len() == 0 || valid.Len() == 0 {
			return nil, nil, fmt.Errorf("%w: season %d gives %d train and %d validation rows", ErrEmptySplit, season, train.Len(), valid.Len())
		}
		train.SortByDate()
		valid.SortByDate()
		return train, valid, nil
	}

	fraction := opts.ValidFraction
	if fraction <= 0 || fraction >= 1 {
		fraction = DefaultValidFraction
	}

	ordered := ds.subset(func(Row) bool { return true })
	ordered.SortByDate()

	n := ordered.Len()
	cut := n - int(math.Round(float64(n)*fraction))
	if cut <= 0 || cut >= n {
		return nil, nil, fmt.Errorf("%w: %d rows with validation fraction %.2f", ErrEmptySplit, n, fraction)
	}

	train = &Dataset{SchemaVersion: ds.SchemaVersion, Columns: ds.Columns, Rows: ordered.Rows[:cut:cut]}
	valid = &Dataset{SchemaVersion: ds.SchemaVersion, Columns: ds.Columns, Rows: ordered.Rows[cut:]}
	return train, valid, nil
}

// Fold is one time-ordered cross-validation split, as row indices.
type Fold struct {
	Train []int
	Valid []int
}

// TimeSeriesFolds returns expanding-window folds over n chronologically
// ordered rows: fold k trains on every block before block k and validates on
// block k. The first block is never used for validation.
func TimeSeriesFolds(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	block := n / (k + 1)
	if block == 0 {
		return nil, fmt.Errorf("%w: %d rows cannot form %d folds", ErrEmptySplit, n, k)
	}

	folds := make([]Fold, 0, k)
	for i := 1; i <= k; i++ {
		start := i * block
		end := start + block
		if i == k {
			end = n
		}
		f := Fold{Train: indexRange(0, start), Valid: indexRange(start, end)}
		folds = append(folds, f)
	}
	return folds, nil
}

func indexRange(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

// IsChronological reports whether rows are ordered by date.
func IsChronological(ds *Dataset) bool {
	return sort.SliceIsSorted(ds.Rows, func(i, j int) bool {
		return ds.Rows[i].Date.Before(ds.Rows[j].Date)
	})
}

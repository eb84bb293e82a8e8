package ml

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/matchcast/internal/dataset"
	"github.com/yourusername/matchcast/internal/evaluation"
)

// CVResult is the cross-validated score of one algorithm.
type CVResult struct {
	Algorithm   string    `json:"algorithm"`
	AUC         float64   `json:"auc"`
	LogLoss     float64   `json:"log_loss"`
	FoldAUC     []float64 `json:"fold_auc"`
	FoldLogLoss []float64 `json:"fold_log_loss"`
}

// Better reports whether r beats other: higher AUC, then lower log-loss.
func (r CVResult) Better(other CVResult) bool {
	if math.Abs(r.AUC-other.AUC) > 1e-9 {
		return r.AUC > other.AUC
	}
	return r.LogLoss < other.LogLoss
}

// CrossValidate scores algorithm on time-ordered folds of raw rows X. Each
// fold fits its own scaler on the fold's training part. Folds run
// concurrently.
func CrossValidate(ctx context.Context, algorithm string, p Params, X [][]float64, y []int, w []float64, folds []dataset.Fold) (CVResult, error) {
	result := CVResult{
		Algorithm:   algorithm,
		FoldAUC:     make([]float64, len(folds)),
		FoldLogLoss: make([]float64, len(folds)),
	}

	g, gctx := errgroup.WithContext(ctx)
	for f, fold := range folds {
		f, fold := f, fold
		g.Go(func() error {
			auc, loss, err := scoreFold(gctx, algorithm, p, X, y, w, fold)
			if err != nil {
				return fmt.Errorf("fold %d: %w", f, err)
			}
			result.FoldAUC[f] = auc
			result.FoldLogLoss[f] = loss
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CVResult{}, err
	}

	for f := range folds {
		result.AUC += result.FoldAUC[f]
		result.LogLoss += result.FoldLogLoss[f]
	}
	result.AUC /= float64(len(folds))
	result.LogLoss /= float64(len(folds))
	return result, nil
}

func scoreFold(ctx context.Context, algorithm string, p Params, X [][]float64, y []int, w []float64, fold dataset.Fold) (float64, float64, error) {
	trainX, trainY, trainW := pick(X, y, w, fold.Train)
	validX, validY, _ := pick(X, y, w, fold.Valid)

	scaler, err := FitScaler(trainX)
	if err != nil {
		return 0, 0, err
	}
	if trainX, err = scaler.Transform(trainX); err != nil {
		return 0, 0, err
	}
	if validX, err = scaler.Transform(validX); err != nil {
		return 0, 0, err
	}

	model, err := New(algorithm, p)
	if err != nil {
		return 0, 0, err
	}
	if err := model.Fit(ctx, trainX, trainY, trainW); err != nil {
		return 0, 0, err
	}
	probs, err := PredictAll(model, validX)
	if err != nil {
		return 0, 0, err
	}
	return evaluation.MacroAUC(probs, validY), evaluation.LogLoss(probs, validY), nil
}

func pick(X [][]float64, y []int, w []float64, idx []int) ([][]float64, []int, []float64) {
	px := make([][]float64, len(idx))
	py := make([]int, len(idx))
	var pw []float64
	if w != nil {
		pw = make([]float64, len(idx))
	}
	for n, i := range idx {
		px[n] = X[i]
		py[n] = y[i]
		if w != nil {
			pw[n] = w[i]
		}
	}
	return px, py, pw
}

// Select cross-validates every algorithm and returns the scores sorted best
// first.
func Select(ctx context.Context, algorithms []string, p Params, X [][]float64, y []int, w []float64, folds []dataset.Fold) ([]CVResult, error) {
	results := make([]CVResult, 0, len(algorithms))
	for _, algo := range algorithms {
		r, err := CrossValidate(ctx, algo, p, X, y, w, folds)
		if err != nil {
			return nil, fmt.Errorf("cross-validate %s: %w", algo, err)
		}
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Better(results[j]) })
	return results, nil
}

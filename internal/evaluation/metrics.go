// Package evaluation scores probabilistic 3-way forecasts.
package evaluation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/matchcast/internal/models"
)

// ProbabilityFloor bounds probabilities away from zero inside log-loss.
const ProbabilityFloor = 1e-15

// CalibrationBins is the number of equal-width confidence bins used for ECE.
const CalibrationBins = 10

// ClassMetrics holds one-vs-rest scores for a single outcome.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Metrics summarizes forecast quality on a labeled set.
type Metrics struct {
	Samples         int                                         `json:"samples"`
	Accuracy        float64                                     `json:"accuracy"`
	LogLoss         float64                                     `json:"log_loss"`
	Brier           float64                                     `json:"brier"`
	ECE             float64                                     `json:"ece"`
	MacroAUC        float64                                     `json:"macro_auc"`
	MacroPrecision  float64                                     `json:"macro_precision"`
	MacroRecall     float64                                     `json:"macro_recall"`
	MacroF1         float64                                     `json:"macro_f1"`
	PerClass        map[string]ClassMetrics                     `json:"per_class"`
	ConfusionMatrix [models.NumOutcomes][models.NumOutcomes]int `json:"confusion_matrix"`
}

// Map returns the scalar metrics keyed by name.
func (m Metrics) Map() map[string]float64 {
	return map[string]float64{
		"accuracy":        m.Accuracy,
		"log_loss":        m.LogLoss,
		"brier":           m.Brier,
		"ece":             m.ECE,
		"macro_auc":       m.MacroAUC,
		"macro_precision": m.MacroPrecision,
		"macro_recall":    m.MacroRecall,
		"macro_f1":        m.MacroF1,
	}
}

// ToJSON encodes the metrics for artifact metadata.
func (m Metrics) ToJSON() json.RawMessage {
	data, _ := json.Marshal(m)
	return data
}

// Compute scores probs against labels. Each probs row holds class
// probabilities indexed by models.Outcome.
func Compute(probs [][]float64, labels []int) (Metrics, error) {
	if len(probs) != len(labels) {
		return Metrics{}, fmt.Errorf("got %d probability rows for %d labels", len(probs), len(labels))
	}
	if len(probs) == 0 {
		return Metrics{}, fmt.Errorf("cannot score an empty set")
	}

	m := Metrics{Samples: len(labels)}
	var correct int
	for i, p := range probs {
		if len(p) != models.NumOutcomes {
			return Metrics{}, fmt.Errorf("row %d has %d probabilities", i, len(p))
		}
		pred := Argmax(p)
		m.ConfusionMatrix[labels[i]][pred]++
		if pred == labels[i] {
			correct++
		}
	}
	m.Accuracy = float64(correct) / float64(len(labels))
	m.LogLoss = LogLoss(probs, labels)
	m.Brier = Brier(probs, labels)
	m.ECE = ExpectedCalibrationError(probs, labels, CalibrationBins)
	m.MacroAUC = MacroAUC(probs, labels)
	m.PerClass, m.MacroPrecision, m.MacroRecall, m.MacroF1 = classReport(m.ConfusionMatrix)
	return m, nil
}

// Argmax returns the index of the largest probability, preferring the lower
// index on ties.
func Argmax(p []float64) int {
	best := 0
	for k := 1; k < len(p); k++ {
		if p[k] > p[best] {
			best = k
		}
	}
	return best
}

// RealizedLogLoss is -ln p(actual) with p floored at ProbabilityFloor.
func RealizedLogLoss(pActual float64) float64 {
	return -math.Log(math.Max(pActual, ProbabilityFloor))
}

// LogLoss is the mean realized log-loss.
func LogLoss(probs [][]float64, labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	var total float64
	for i, p := range probs {
		total += RealizedLogLoss(p[labels[i]])
	}
	return total / float64(len(labels))
}

// Brier is the mean over samples of the summed squared error against the
// one-hot outcome.
func Brier(probs [][]float64, labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	var total float64
	for i, p := range probs {
		for k, pk := range p {
			target := 0.0
			if k == labels[i] {
				target = 1
			}
			total += (pk - target) * (pk - target)
		}
	}
	return total / float64(len(labels))
}

// ExpectedCalibrationError bins samples by top-class confidence and averages
// |accuracy - confidence| weighted by bin size.
func ExpectedCalibrationError(probs [][]float64, labels []int, bins int) float64 {
	if len(labels) == 0 || bins <= 0 {
		return 0
	}
	count := make([]int, bins)
	conf := make([]float64, bins)
	hits := make([]float64, bins)
	for i, p := range probs {
		pred := Argmax(p)
		c := p[pred]
		b := int(c * float64(bins))
		if b >= bins {
			b = bins - 1
		}
		if b < 0 {
			b = 0
		}
		count[b]++
		conf[b] += c
		if pred == labels[i] {
			hits[b]++
		}
	}
	var ece float64
	n := float64(len(labels))
	for b := 0; b < bins; b++ {
		if count[b] == 0 {
			continue
		}
		k := float64(count[b])
		ece += (k / n) * math.Abs(hits[b]/k-conf[b]/k)
	}
	return ece
}

// MacroAUC averages one-vs-rest ROC AUC over classes present with both
// positive and negative examples. It returns 0.5 when no class qualifies.
func MacroAUC(probs [][]float64, labels []int) float64 {
	var sum float64
	var classes int
	for k := 0; k < models.NumOutcomes; k++ {
		scores := make([]float64, len(labels))
		positive := make([]bool, len(labels))
		for i, p := range probs {
			scores[i] = p[k]
			positive[i] = labels[i] == k
		}
		if auc, ok := BinaryAUC(scores, positive); ok {
			sum += auc
			classes++
		}
	}
	if classes == 0 {
		return 0.5
	}
	return sum / float64(classes)
}

// BinaryAUC integrates the ROC curve over every distinct score, so tied
// scores earn half credit. ok is false when either class is absent.
func BinaryAUC(scores []float64, positive []bool) (float64, bool) {
	var nPos int
	for _, p := range positive {
		if p {
			nPos++
		}
	}
	if nPos == 0 || nPos == len(positive) {
		return 0, false
	}

	y := append([]float64(nil), scores...)
	classes := append([]bool(nil), positive...)
	sort.Sort(byScore{y, classes})

	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), true
}

// byScore sorts scores ascending and keeps labels aligned.
type byScore struct {
	y       []float64
	classes []bool
}

func (b byScore) Len() int           { return len(b.y) }
func (b byScore) Less(i, j int) bool { return b.y[i] < b.y[j] }
func (b byScore) Swap(i, j int) {
	b.y[i], b.y[j] = b.y[j], b.y[i]
	b.classes[i], b.classes[j] = b.classes[j], b.classes[i]
}

func classReport(cm [models.NumOutcomes][models.NumOutcomes]int) (map[string]ClassMetrics, float64, float64, float64) {
	out := make(map[string]ClassMetrics, models.NumOutcomes)
	var sp, sr, sf float64
	for k := 0; k < models.NumOutcomes; k++ {
		var predicted, actual int
		for j := 0; j < models.NumOutcomes; j++ {
			predicted += cm[j][k]
			actual += cm[k][j]
		}
		tp := cm[k][k]
		cmK := ClassMetrics{Support: actual}
		if predicted > 0 {
			cmK.Precision = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			cmK.Recall = float64(tp) / float64(actual)
		}
		if cmK.Precision+cmK.Recall > 0 {
			cmK.F1 = 2 * cmK.Precision * cmK.Recall / (cmK.Precision + cmK.Recall)
		}
		out[models.Outcome(k).String()] = cmK
		sp += cmK.Precision
		sr += cmK.Recall
		sf += cmK.F1
	}
	n := float64(models.NumOutcomes)
	return out, sp / n, sr / n, sf / n
}

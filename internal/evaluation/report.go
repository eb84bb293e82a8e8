package evaluation

import (
	"sort"

	"github.com/yourusername/matchcast/internal/models"
)

// Confidence thresholds used by the error report.
const (
	HighConfidence = 0.6
	LowConfidence  = 0.4
	DefaultTopN    = 10
)

// MatchError is the realized error of one stored prediction.
type MatchError struct {
	MatchID    int64          `json:"match_id"`
	Season     int            `json:"season"`
	Matchday   int            `json:"matchday"`
	Actual     models.Outcome `json:"actual_outcome"`
	Predicted  models.Outcome `json:"predicted_outcome"`
	Confidence float64        `json:"confidence"`
	LogLoss    float64        `json:"log_loss_error"`
	Correct    bool           `json:"correct"`
	Version    string         `json:"model_version"`
}

// Bucket aggregates predictions within a confidence range [Min, Max).
type Bucket struct {
	Label    string  `json:"label"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Count    int     `json:"count"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// Report is the aggregate error analysis over evaluated predictions.
type Report struct {
	Total                int                  `json:"total_matches"`
	Correct              int                  `json:"correct_predictions"`
	Incorrect            int                  `json:"incorrect_predictions"`
	Accuracy             float64              `json:"overall_accuracy"`
	MeanLogLoss          float64              `json:"average_log_loss"`
	MeanConfidence       float64              `json:"average_confidence"`
	Outcomes             map[string]int       `json:"outcome_analysis"`
	Buckets              []Bucket             `json:"confidence_buckets"`
	HighConfidenceErrors int                  `json:"high_confidence_errors"`
	LowConfidenceCorrect int                  `json:"low_confidence_correct"`
	Worst                []MatchError         `json:"worst_predictions"`
	Best                 []MatchError         `json:"best_predictions"`
	Errors               map[int64]MatchError `json:"-"`
}

// Options controls report size.
type Options struct {
	TopN int
}

// ScorePrediction computes the realized error of a single evaluated prediction.
func ScorePrediction(ep *models.EvaluatedPrediction) (MatchError, error) {
	actual, err := ep.Match.Outcome()
	if err != nil {
		return MatchError{}, err
	}
	probs := ep.Prediction.Probabilities()
	predicted, confidence := ep.Prediction.Predicted()
	return MatchError{
		MatchID:    ep.Match.ID,
		Season:     ep.Match.Season,
		Matchday:   ep.Match.Matchday,
		Actual:     actual,
		Predicted:  predicted,
		Confidence: confidence,
		LogLoss:    RealizedLogLoss(probs[actual]),
		Correct:    predicted == actual,
		Version:    ep.Prediction.ModelVersion,
	}, nil
}

func newBuckets() []Bucket {
	return []Bucket{
		{Label: "<0.4", Min: 0, Max: 0.4},
		{Label: "0.4-0.5", Min: 0.4, Max: 0.5},
		{Label: "0.5-0.6", Min: 0.5, Max: 0.6},
		{Label: "0.6-0.7", Min: 0.6, Max: 0.7},
		{Label: ">=0.7", Min: 0.7, Max: 1.0000001},
	}
}

// Analyze builds an error report. Records without a usable score are
// ignored and counted in the second return value.
func Analyze(records []*models.EvaluatedPrediction, opts Options) (Report, int) {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}

	report := Report{
		Outcomes: map[string]int{
			models.OutcomeHome.String(): 0,
			models.OutcomeDraw.String(): 0,
			models.OutcomeAway.String(): 0,
		},
		Buckets: newBuckets(),
		Errors:  make(map[int64]MatchError, len(records)),
	}

	scored := make([]MatchError, 0, len(records))
	skipped := 0
	for _, rec := range records {
		me, err := ScorePrediction(rec)
		if err != nil {
			skipped++
			continue
		}
		scored = append(scored, me)
	}
	if len(scored) == 0 {
		return report, skipped
	}

	var sumLoss, sumConf float64
	for _, me := range scored {
		report.Errors[me.MatchID] = me
		report.Total++
		report.Outcomes[me.Actual.String()]++
		sumLoss += me.LogLoss
		sumConf += me.Confidence
		if me.Correct {
			report.Correct++
		}
		if !me.Correct && me.Confidence > HighConfidence {
			report.HighConfidenceErrors++
		}
		if me.Correct && me.Confidence < LowConfidence {
			report.LowConfidenceCorrect++
		}
		for i := range report.Buckets {
			b := &report.Buckets[i]
			if me.Confidence >= b.Min && me.Confidence < b.Max {
				b.Count++
				if me.Correct {
					b.Correct++
				}
				break
			}
		}
	}

	n := float64(report.Total)
	report.Incorrect = report.Total - report.Correct
	report.Accuracy = float64(report.Correct) / n
	report.MeanLogLoss = sumLoss / n
	report.MeanConfidence = sumConf / n
	for i := range report.Buckets {
		if b := &report.Buckets[i]; b.Count > 0 {
			b.Accuracy = float64(b.Correct) / float64(b.Count)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].LogLoss != scored[j].LogLoss {
			return scored[i].LogLoss > scored[j].LogLoss
		}
		return scored[i].MatchID < scored[j].MatchID
	})
	top := opts.TopN
	if top > len(scored) {
		top = len(scored)
	}
	report.Worst = append([]MatchError(nil), scored[:top]...)
	report.Best = make([]MatchError, 0, top)
	for i := len(scored) - 1; i >= len(scored)-top; i-- {
		report.Best = append(report.Best, scored[i])
	}
	return report, skipped
}

package evaluation

import "fmt"

// Weighting strategy names accepted in configuration.
const (
	WeightingLogLoss = "logloss"
	WeightingUniform = "uniform"
)

// WeightingStrategy maps the realized error of a past prediction to the
// sample weight used when the match is folded back into training.
type WeightingStrategy interface {
	Name() string
	Weight(me MatchError) float64
}

// LogLossWeighting weights a sample by 1 + its realized log-loss, so
// confidently wrong predictions count more. It is a heuristic and has not
// been shown to improve calibration.
type LogLossWeighting struct{}

// Name implements WeightingStrategy
func (LogLossWeighting) Name() string { return WeightingLogLoss }

// Weight implements WeightingStrategy
func (LogLossWeighting) Weight(me MatchError) float64 {
	return 1 + me.LogLoss
}

// UniformWeighting folds evaluated matches back with weight 1.
type UniformWeighting struct{}

// Name implements WeightingStrategy
func (UniformWeighting) Name() string { return WeightingUniform }

// Weight implements WeightingStrategy
func (UniformWeighting) Weight(MatchError) float64 { return 1 }

// NewWeightingStrategy returns the strategy registered under name.
func NewWeightingStrategy(name string) (WeightingStrategy, error) {
	switch name {
	case WeightingLogLoss, "":
		return LogLossWeighting{}, nil
	case WeightingUniform:
		return UniformWeighting{}, nil
	default:
		return nil, fmt.Errorf("unknown weighting strategy %q", name)
	}
}

// Weights applies s to every scored match in the report.
func Weights(report Report, s WeightingStrategy) map[int64]float64 {
	out := make(map[int64]float64, len(report.Errors))
	for id, me := range report.Errors {
		out[id] = s.Weight(me)
	}
	return out
}

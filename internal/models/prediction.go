package models

import (
	"math"
	"time"
)

// ProbabilityTolerance bounds how far a probability triple may drift from 1.
const ProbabilityTolerance = 1e-6

// Prediction is the current stored forecast for a match. One row per match id.
type Prediction struct {
	MatchID      int64     `db:"match_id" json:"match_id" validate:"required"`
	PHome        float64   `db:"p_home" json:"p_home" validate:"gte=0,lte=1"`
	PDraw        float64   `db:"p_draw" json:"p_draw" validate:"gte=0,lte=1"`
	PAway        float64   `db:"p_away" json:"p_away" validate:"gte=0,lte=1"`
	ModelVersion string    `db:"model_version" json:"model_version" validate:"required"`
	Calibrated   bool      `db:"calibrated" json:"calibrated"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Probabilities returns the triple indexed by Outcome.
func (p *Prediction) Probabilities() [NumOutcomes]float64 {
	return [NumOutcomes]float64{p.PAway, p.PDraw, p.PHome}
}

// Predicted returns the most likely outcome and its probability.
func (p *Prediction) Predicted() (Outcome, float64) {
	probs := p.Probabilities()
	best := OutcomeAway
	for o := OutcomeDraw; o <= OutcomeHome; o++ {
		if probs[o] > probs[best] {
			best = o
		}
	}
	return best, probs[best]
}

// IsValid checks every probability is in [0,1] and the triple sums to 1.
func (p *Prediction) IsValid() bool {
	sum := 0.0
	for _, v := range p.Probabilities() {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return false
		}
		sum += v
	}
	return math.Abs(sum-1) <= ProbabilityTolerance
}

// EvaluatedPrediction pairs a finished match with the prediction stored for it
// before kickoff.
type EvaluatedPrediction struct {
	Match      *Match
	Prediction *Prediction
}

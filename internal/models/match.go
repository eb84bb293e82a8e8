package models

import (
	"fmt"
	"time"
)

// MatchStatus mirrors the provider status vocabulary.
type MatchStatus string

const (
	StatusScheduled MatchStatus = "SCHEDULED"
	StatusTimed     MatchStatus = "TIMED"
	StatusInPlay    MatchStatus = "IN_PLAY"
	StatusPaused    MatchStatus = "PAUSED"
	StatusFinished  MatchStatus = "FINISHED"
	StatusPostponed MatchStatus = "POSTPONED"
	StatusCancelled MatchStatus = "CANCELLED"
)

// Outcome is the 3-class training label. The numeric values are part of the
// artifact contract and must not be reordered.
type Outcome int

const (
	OutcomeAway Outcome = 0
	OutcomeDraw Outcome = 1
	OutcomeHome Outcome = 2
)

// NumOutcomes is the number of classes predicted by every model.
const NumOutcomes = 3

// String returns the outcome label.
func (o Outcome) String() string {
	switch o {
	case OutcomeAway:
		return "away"
	case OutcomeDraw:
		return "draw"
	case OutcomeHome:
		return "home"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Match represents a single league fixture
type Match struct {
	ID         int64       `db:"id" json:"id" validate:"required"`
	Season     int         `db:"season" json:"season" validate:"required"`
	UTCDate    time.Time   `db:"utc_date" json:"utc_date" validate:"required"`
	Matchday   int         `db:"matchday" json:"matchday" validate:"gte=0"`
	Status     MatchStatus `db:"status" json:"status" validate:"required"`
	Stage      string      `db:"stage" json:"stage,omitempty"`
	HomeTeamID int64       `db:"home_team_id" json:"home_team_id" validate:"required"`
	AwayTeamID int64       `db:"away_team_id" json:"away_team_id" validate:"required"`
	HomeScore  *int        `db:"home_score" json:"home_score,omitempty"`
	AwayScore  *int        `db:"away_score" json:"away_score,omitempty"`
	Venue      string      `db:"venue" json:"venue,omitempty"`
	City       string      `db:"city" json:"city,omitempty"`
}

// IsFinished reports whether the match has reached its terminal state.
func (m *Match) IsFinished() bool {
	return m.Status == StatusFinished
}

// HasScore reports whether both scores are recorded.
func (m *Match) HasScore() bool {
	return m.HomeScore != nil && m.AwayScore != nil
}

// Involves reports whether the team played in the match.
func (m *Match) Involves(teamID int64) bool {
	return m.HomeTeamID == teamID || m.AwayTeamID == teamID
}

// Outcome derives the training label. It returns a DataIntegrityError when a
// score is missing.
func (m *Match) Outcome() (Outcome, error) {
	if !m.HasScore() {
		return 0, &DataIntegrityError{MatchID: m.ID, Reason: "missing score"}
	}
	switch {
	case *m.HomeScore > *m.AwayScore:
		return OutcomeHome, nil
	case *m.HomeScore < *m.AwayScore:
		return OutcomeAway, nil
	default:
		return OutcomeDraw, nil
	}
}

// GoalsFor returns the goals scored and conceded from the given team's perspective.
func (m *Match) GoalsFor(teamID int64) (scored, conceded int, err error) {
	if !m.HasScore() {
		return 0, 0, &DataIntegrityError{MatchID: m.ID, Reason: "missing score"}
	}
	if teamID == m.HomeTeamID {
		return *m.HomeScore, *m.AwayScore, nil
	}
	return *m.AwayScore, *m.HomeScore, nil
}

// IntPtr is a small helper for building scores in fixtures and scans.
func IntPtr(v int) *int {
	return &v
}

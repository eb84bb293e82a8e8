package models

import "time"

// StandingsSnapshot is a team's league table row after a given matchday.
// There is at most one snapshot per (season, matchday, team).
type StandingsSnapshot struct {
	Season       int       `db:"season" json:"season" validate:"required"`
	Matchday     int       `db:"matchday" json:"matchday" validate:"required,gte=1"`
	TeamID       int64     `db:"team_id" json:"team_id" validate:"required"`
	Position     int       `db:"position" json:"position" validate:"required,gte=1"`
	PlayedGames  int       `db:"played_games" json:"played_games" validate:"gte=0"`
	Points       int       `db:"points" json:"points" validate:"gte=0"`
	GoalsFor     int       `db:"goals_for" json:"goals_for" validate:"gte=0"`
	GoalsAgainst int       `db:"goals_against" json:"goals_against" validate:"gte=0"`
	GoalDiff     int       `db:"goal_diff" json:"goal_diff"`
	SnapshotAt   time.Time `db:"snapshot_at" json:"snapshot_at"`
}

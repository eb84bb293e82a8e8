package features

// SchemaVersion identifies the feature layout produced by DefaultSchema.
// Bump it whenever a column is added, removed, renamed or reordered.
const SchemaVersion = "v2"

// NamedValue is one feature before it is placed into a vector.
type NamedValue struct {
	Name  string
	Value float64
}

var h2hColumns = []string{
	"h2h_total_matches",
	"h2h_wins",
	"h2h_draws",
	"h2h_losses",
	"h2h_win_rate",
	"h2h_draw_rate",
	"h2h_loss_rate",
	"h2h_goal_diff",
	"h2h_avg_goals",
	"h2h_avg_goal_diff",
	"h2h_home_venue_matches",
	"h2h_home_venue_wins",
	"h2h_home_venue_win_rate",
	"h2h_away_venue_matches",
	"h2h_away_venue_wins",
	"h2h_away_venue_win_rate",
	"h2h_recent_wins",
	"h2h_recent_goal_diff",
	"h2h_recent_win_rate",
	"h2h_current_season_matches",
	"h2h_current_season_wins",
	"h2h_current_season_win_rate",
	"h2h_dominance",
	"h2h_goal_dominance",
}

var previousSeasonColumns = []string{
	"prev_season_home_position",
	"prev_season_away_position",
	"prev_season_home_points",
	"prev_season_away_points",
	"prev_season_home_goal_diff",
	"prev_season_away_goal_diff",
	"prev_season_diff_position",
	"prev_season_diff_points",
	"prev_season_diff_goal_diff",
	"prev_season_home_points_per_game",
	"prev_season_away_points_per_game",
	"prev_season_diff_points_per_game",
	"prev_season_home_quality",
	"prev_season_away_quality",
	"prev_season_diff_quality",
}

var currentColumns = []string{
	"diff_form_ppg",
	"diff_goals_for_per_match",
	"diff_goals_against_per_match",
	"diff_goal_diff_per_match",
	"diff_rest_days",
	"diff_position",
	"diff_points",
	"diff_goal_diff",
	"diff_rank_delta",
	"diff_table_strength",
}

var contextColumns = []string{
	"home_flag",
	"same_city",
}

// Schema is a versioned, ordered list of feature columns.
type Schema struct {
	Version string
	columns []string
}

// DefaultSchema returns the current feature schema.
func DefaultSchema() Schema {
	cols := make([]string, 0, len(h2hColumns)+len(previousSeasonColumns)+len(currentColumns)+len(contextColumns))
	cols = append(cols, h2hColumns...)
	cols = append(cols, previousSeasonColumns...)
	cols = append(cols, currentColumns...)
	cols = append(cols, contextColumns...)
	return Schema{Version: SchemaVersion, columns: cols}
}

// Columns returns a copy of the ordered column names.
func (s Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Len returns the number of columns.
func (s Schema) Len() int {
	return len(s.columns)
}

// Index returns the position of name, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.columns {
		if c == name {
			return i
		}
	}
	return -1
}

package features

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchcast/internal/cache"
	"github.com/yourusername/matchcast/internal/repository"
)

func h2hStore() *repository.MemoryStore {
	s := repository.NewMemoryStore()
	s.AddMatches(
		result(1, 2022, -300, arsenal, chelsea, 3, 1), // home win at home
		result(2, 2022, -150, chelsea, arsenal, 2, 2), // draw away
		result(3, 2023, 7, chelsea, arsenal, 0, 1),    // win away
		result(4, 2023, 14, arsenal, liverpool, 0, 4), // unrelated
	)
	return s
}

func TestH2HNoMeetingsIsNeutral(t *testing.T) {
	agg := NewH2HAggregator(h2hStore(), nil, 10, testFeatureLogger())

	values, err := agg.Aggregate(context.Background(), chelsea, liverpool, 2023, kickoff.AddDate(0, 0, 60))
	require.NoError(t, err)
	require.Equal(t, h2hColumns, names(values))

	expect := map[string]float64{
		"h2h_total_matches":           0,
		"h2h_win_rate":                0.5,
		"h2h_draw_rate":               0,
		"h2h_loss_rate":               0.5,
		"h2h_avg_goals":               LeagueAverageGoals,
		"h2h_home_venue_win_rate":     0.5,
		"h2h_recent_win_rate":         0.5,
		"h2h_current_season_win_rate": 0.5,
		"h2h_dominance":               0,
	}
	for name, want := range expect {
		got, ok := valueOf(values, name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
}

func TestH2HAggregatesFromHomePerspective(t *testing.T) {
	agg := NewH2HAggregator(h2hStore(), nil, 10, testFeatureLogger())

	values, err := agg.Aggregate(context.Background(), arsenal, chelsea, 2023, kickoff.AddDate(0, 0, 60))
	require.NoError(t, err)

	expect := map[string]float64{
		"h2h_total_matches":           3,
		"h2h_wins":                    2,
		"h2h_draws":                   1,
		"h2h_losses":                  0,
		"h2h_win_rate":                2.0 / 3,
		"h2h_goal_diff":               3,
		"h2h_avg_goals":               3,
		"h2h_home_venue_matches":      1,
		"h2h_home_venue_win_rate":     1,
		"h2h_away_venue_matches":      2,
		"h2h_away_venue_wins":         1,
		"h2h_away_venue_win_rate":     0.5,
		"h2h_recent_wins":             2,
		"h2h_current_season_matches":  1,
		"h2h_current_season_wins":     1,
		"h2h_current_season_win_rate": 1,
		"h2h_dominance":               2.0 / 3,
		"h2h_goal_dominance":          3.0 / 9,
	}
	for name, want := range expect {
		got, _ := valueOf(values, name)
		assert.InDelta(t, want, got, 1e-9, name)
	}
}

func TestH2HIgnoresMeetingsAtOrAfterCutoff(t *testing.T) {
	agg := NewH2HAggregator(h2hStore(), nil, 10, testFeatureLogger())

	values, err := agg.Aggregate(context.Background(), arsenal, chelsea, 2023, kickoff.AddDate(0, 0, 7))
	require.NoError(t, err)
	total, _ := valueOf(values, "h2h_total_matches")
	assert.Equal(t, 2.0, total)
}

func TestH2HCacheFreshness(t *testing.T) {
	repo := new(mockMatchRepository)
	store := h2hStore()
	d1 := kickoff.AddDate(0, 0, 8)
	d2 := kickoff.AddDate(0, 0, 60)

	meetingsD1, _ := store.GetHeadToHeadBefore(context.Background(), arsenal, chelsea, d1, 10)
	repo.On("GetHeadToHeadBefore", mock.Anything, arsenal, chelsea, d1, 10).Return(meetingsD1, nil).Once()
	repo.On("GetHeadToHeadBefore", mock.Anything, arsenal, chelsea, d2, 10).Return(meetingsD1[1:], nil).Once()

	c := NewH2HCache(cache.NewMemoryStore(0), 0)
	agg := NewH2HAggregator(repo, c, 10, testFeatureLogger())
	ctx := context.Background()

	first, err := agg.Aggregate(ctx, arsenal, chelsea, 2023, d1)
	require.NoError(t, err)
	again, err := agg.Aggregate(ctx, arsenal, chelsea, 2023, d1)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	// A different date for the same pairing and season must recompute.
	other, err := agg.Aggregate(ctx, arsenal, chelsea, 2023, d2)
	require.NoError(t, err)
	total, _ := valueOf(other, "h2h_total_matches")
	assert.Equal(t, 2.0, total)

	hits, misses, _ := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(2), misses)
	repo.AssertExpectations(t)
}

func TestH2HLimitBoundsMeetings(t *testing.T) {
	agg := NewH2HAggregator(h2hStore(), nil, 1, testFeatureLogger())

	values, err := agg.Aggregate(context.Background(), arsenal, chelsea, 2023, kickoff.AddDate(0, 0, 60))
	require.NoError(t, err)
	total, _ := valueOf(values, "h2h_total_matches")
	assert.Equal(t, 1.0, total)
	season, _ := valueOf(values, "h2h_current_season_matches")
	assert.Equal(t, 1.0, season)
}

func TestH2HLimitCountsOnlyScoredMeetings(t *testing.T) {
	store := repository.NewMemoryStore()
	unscored := result(3, 2023, 20, arsenal, chelsea, 0, 0)
	unscored.HomeScore, unscored.AwayScore = nil, nil
	store.AddMatches(
		result(1, 2023, 0, arsenal, chelsea, 2, 0),
		result(2, 2023, 10, chelsea, arsenal, 1, 1),
		unscored,
	)
	agg := NewH2HAggregator(store, nil, 2, testFeatureLogger())

	values, err := agg.Aggregate(context.Background(), arsenal, chelsea, 2023, kickoff.AddDate(0, 0, 30))
	require.NoError(t, err)
	total, _ := valueOf(values, "h2h_total_matches")
	assert.Equal(t, 2.0, total)
	wins, _ := valueOf(values, "h2h_wins")
	assert.Equal(t, 1.0, wins)
}

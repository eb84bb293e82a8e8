package features

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchcast/internal/models"
	"github.com/yourusername/matchcast/internal/repository"
)

type mockStandingsRepository struct {
	mock.Mock
}

func (m *mockStandingsRepository) Get(ctx context.Context, season, matchday int, teamID int64) (*models.StandingsSnapshot, error) {
	args := m.Called(ctx, season, matchday, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StandingsSnapshot), args.Error(1)
}

func (m *mockStandingsRepository) GetFinal(ctx context.Context, season int, teamID int64) (*models.StandingsSnapshot, error) {
	args := m.Called(ctx, season, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StandingsSnapshot), args.Error(1)
}

func standingsStore() *repository.MemoryStore {
	s := repository.NewMemoryStore()
	s.AddStandings(
		snapshot(2023, 1, arsenal, 8, 3, 1),
		snapshot(2023, 6, arsenal, 6, 10, 4),
		snapshot(2023, 11, arsenal, 2, 24, 15),
		snapshot(2023, 11, chelsea, 12, 14, -2),
		snapshot(2022, 37, arsenal, 3, 81, 40),
		snapshot(2022, 38, arsenal, 2, 84, 45),
	)
	return s
}

func TestResolveMatchdayOneIsColdStart(t *testing.T) {
	r := NewStandingsResolver(standingsStore(), testFeatureLogger())

	got, err := r.Resolve(context.Background(), arsenal, 2023, 1)
	require.NoError(t, err)
	assert.Equal(t, TeamStanding{Position: 10, Points: 0, GoalDiff: 0, ColdStart: true}, got)
}

func TestResolveReadsPreviousMatchday(t *testing.T) {
	r := NewStandingsResolver(standingsStore(), testFeatureLogger())

	got, err := r.Resolve(context.Background(), arsenal, 2023, 12)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Position)
	assert.Equal(t, 24, got.Points)
	assert.False(t, got.ColdStart)

	// Snapshot for matchday 12 itself would be future information.
	got, err = r.Resolve(context.Background(), arsenal, 2023, 11)
	require.NoError(t, err)
	assert.True(t, got.ColdStart)
}

func TestRankDelta(t *testing.T) {
	r := NewStandingsResolver(standingsStore(), testFeatureLogger())
	ctx := context.Background()

	delta, err := r.RankDelta(ctx, arsenal, 2023, 12, 5)
	require.NoError(t, err)
	assert.Equal(t, 4.0, delta, "climbed from 6th to 2nd")

	delta, err = r.RankDelta(ctx, arsenal, 2023, 5, 5)
	require.NoError(t, err)
	assert.Zero(t, delta)

	delta, err = r.RankDelta(ctx, chelsea, 2023, 12, 5)
	require.NoError(t, err)
	assert.Zero(t, delta, "missing earlier snapshot")
}

func TestPreviousSeason(t *testing.T) {
	r := NewStandingsResolver(standingsStore(), testFeatureLogger())
	ctx := context.Background()

	got, err := r.PreviousSeason(ctx, arsenal, 2023)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Position)
	assert.Equal(t, 84, got.Points)

	got, err = r.PreviousSeason(ctx, chelsea, 2023)
	require.NoError(t, err)
	assert.Equal(t, TeamStanding{Position: 10, Points: 50, GoalDiff: 0, Played: 38, ColdStart: true}, got)
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	repo := new(mockStandingsRepository)
	boom := errors.New("timeout")
	repo.On("Get", mock.Anything, 2023, 4, arsenal).Return(nil, boom)

	_, err := NewStandingsResolver(repo, testFeatureLogger()).Resolve(context.Background(), arsenal, 2023, 5)
	assert.ErrorIs(t, err, boom)
}

func TestStandingsFeatures(t *testing.T) {
	s := MatchStandings{
		Home:          TeamStanding{Position: 2, Points: 24, GoalDiff: 15},
		Away:          TeamStanding{Position: 4, Points: 20, GoalDiff: 5},
		HomeRankDelta: 3,
		AwayRankDelta: -1,
		HomePrevious:  TeamStanding{Position: 2, Points: 76, GoalDiff: 40, Played: 38},
		AwayPrevious:  TeamStanding{Position: 10, Points: 50, GoalDiff: 0, Played: 38, ColdStart: true},
	}

	diffs := s.Diffs()
	assert.Equal(t, currentColumns[5:], names(diffs))
	v, _ := valueOf(diffs, "diff_rank_delta")
	assert.Equal(t, 4.0, v)
	v, _ = valueOf(diffs, "diff_table_strength")
	assert.InDelta(t, 0.25, v, 1e-9)

	prev := s.PreviousSeasonFeatures()
	assert.Equal(t, previousSeasonColumns, names(prev))
	v, _ = valueOf(prev, "prev_season_home_points_per_game")
	assert.InDelta(t, 2.0, v, 1e-9)
	v, _ = valueOf(prev, "prev_season_diff_points_per_game")
	assert.InDelta(t, 26.0/38.0, v, 1e-9)
	v, _ = valueOf(prev, "prev_season_diff_quality")
	assert.InDelta(t, 0.4, v, 1e-9)
}

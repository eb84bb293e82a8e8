package features

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchcast/internal/models"
	"github.com/yourusername/matchcast/internal/repository"
)

type mockMatchRepository struct {
	mock.Mock
}

func (m *mockMatchRepository) GetByID(ctx context.Context, id int64) (*models.Match, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Match), args.Error(1)
}

func (m *mockMatchRepository) GetTeamMatchesBefore(ctx context.Context, teamID int64, season int, before time.Time, limit int) ([]*models.Match, error) {
	args := m.Called(ctx, teamID, season, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Match), args.Error(1)
}

func (m *mockMatchRepository) GetHeadToHeadBefore(ctx context.Context, teamA, teamB int64, before time.Time, limit int) ([]*models.Match, error) {
	args := m.Called(ctx, teamA, teamB, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Match), args.Error(1)
}

func (m *mockMatchRepository) GetFinishedBySeasons(ctx context.Context, seasons []int) ([]*models.Match, error) {
	args := m.Called(ctx, seasons)
	return args.Get(0).([]*models.Match), args.Error(1)
}

func formStore() *repository.MemoryStore {
	s := repository.NewMemoryStore()
	s.AddMatches(
		result(1, 2023, 0, arsenal, chelsea, 2, 1),    // W
		result(2, 2023, 7, liverpool, arsenal, 0, 0),  // D
		result(3, 2023, 14, arsenal, liverpool, 1, 3), // L
		result(4, 2022, -90, arsenal, chelsea, 5, 0),  // other season
	)
	return s
}

func TestFormColdStart(t *testing.T) {
	calc := NewFormCalculator(formStore(), testFeatureLogger())
	ctx := context.Background()

	form, err := calc.Form(ctx, arsenal, 2023, kickoff, 5)
	require.NoError(t, err)
	assert.Equal(t, DefaultTeamForm(0), form)

	form, err = calc.Form(ctx, arsenal, 2023, kickoff.AddDate(0, 0, 1), 5)
	require.NoError(t, err)
	assert.True(t, form.ColdStart)
	assert.Equal(t, 1, form.Samples)
	assert.Equal(t, DefaultFormPPG, form.PPG)
	assert.Equal(t, DefaultRestDays, form.RestDays)
}

func TestFormExcludesMostRecentEntry(t *testing.T) {
	calc := NewFormCalculator(formStore(), testFeatureLogger())

	form, err := calc.Form(context.Background(), arsenal, 2023, kickoff.AddDate(0, 0, 21), 5)
	require.NoError(t, err)

	assert.False(t, form.ColdStart)
	assert.Equal(t, 3, form.Samples)
	// Averaged over the win and the draw only.
	assert.InDelta(t, 2.0, form.PPG, 1e-9)
	assert.InDelta(t, 1.0, form.GoalsForPerMatch, 1e-9)
	assert.InDelta(t, 0.5, form.GoalsAgainstPerMatch, 1e-9)
	assert.InDelta(t, 0.5, form.GoalDiffPerMatch, 1e-9)
	assert.InDelta(t, 7.0, form.RestDays, 1e-9)
}

func TestFormCutoffIsStrict(t *testing.T) {
	calc := NewFormCalculator(formStore(), testFeatureLogger())

	// The loss kicks off exactly at the cutoff and must not be seen.
	form, err := calc.Form(context.Background(), arsenal, 2023, kickoff.AddDate(0, 0, 14), 5)
	require.NoError(t, err)
	assert.Equal(t, 2, form.Samples)
	assert.InDelta(t, 3.0, form.PPG, 1e-9)
	assert.InDelta(t, 2.0, form.GoalsForPerMatch, 1e-9)
}

func TestFormWindowBoundsAverage(t *testing.T) {
	calc := NewFormCalculator(formStore(), testFeatureLogger())

	form, err := calc.Form(context.Background(), arsenal, 2023, kickoff.AddDate(0, 0, 21), 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, form.PPG, 1e-9, "only the draw is inside a window of 1")
	assert.InDelta(t, 0.0, form.GoalsForPerMatch, 1e-9)
}

func TestFormSkipsUnscoredMatches(t *testing.T) {
	s := formStore()
	s.AddMatches(&models.Match{
		ID: 9, Season: 2023, UTCDate: kickoff.AddDate(0, 0, 17), Status: models.StatusFinished,
		HomeTeamID: chelsea, AwayTeamID: arsenal,
	})
	calc := NewFormCalculator(s, testFeatureLogger())

	form, err := calc.Form(context.Background(), arsenal, 2023, kickoff.AddDate(0, 0, 21), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, form.Samples)
	assert.InDelta(t, 2.0, form.PPG, 1e-9)
}

func TestFormPropagatesRepositoryErrors(t *testing.T) {
	repo := new(mockMatchRepository)
	boom := errors.New("connection reset")
	repo.On("GetTeamMatchesBefore", mock.Anything, arsenal, 2023, kickoff, 12).Return(nil, boom)

	_, err := NewFormCalculator(repo, testFeatureLogger()).Form(context.Background(), arsenal, 2023, kickoff, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	repo.AssertExpectations(t)
}

func TestMatchFormDiffs(t *testing.T) {
	f := MatchForm{
		Home: TeamForm{PPG: 2, GoalsForPerMatch: 1.5, GoalsAgainstPerMatch: 0.5, GoalDiffPerMatch: 1, RestDays: 7},
		Away: TeamForm{PPG: 1, GoalsForPerMatch: 1, GoalsAgainstPerMatch: 1, GoalDiffPerMatch: 0, RestDays: 3},
	}
	diffs := f.Diffs()
	require.Len(t, diffs, 5)
	assert.Equal(t, currentColumns[:5], names(diffs))

	v, _ := valueOf(diffs, "diff_rest_days")
	assert.Equal(t, 4.0, v)
	v, _ = valueOf(diffs, "diff_goals_against_per_match")
	assert.Equal(t, -0.5, v)
}

func names(values []NamedValue) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.Name
	}
	return out
}

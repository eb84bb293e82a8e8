package features

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchcast/internal/cache"
	"github.com/yourusername/matchcast/internal/models"
	"github.com/yourusername/matchcast/internal/repository"
)

// countingBuilder wraps a Builder and counts invocations.
type countingBuilder struct {
	inner Builder
	calls atomic.Int32
	err   error
}

func (b *countingBuilder) Build(ctx context.Context, m *models.Match) (*models.FeatureVector, error) {
	b.calls.Add(1)
	if b.err != nil {
		return nil, b.err
	}
	return b.inner.Build(ctx, m)
}

func seasonStore() *repository.MemoryStore {
	s := repository.NewMemoryStore()
	s.AddMatches(
		result(1, 2022, -200, arsenal, chelsea, 2, 0),
		result(2, 2023, 0, arsenal, liverpool, 1, 1),
		result(3, 2023, 7, chelsea, arsenal, 0, 2),
		result(4, 2023, 14, liverpool, chelsea, 3, 2),
		result(5, 2023, 21, arsenal, chelsea, 1, 0),
		result(6, 2023, 21, chelsea, liverpool, 2, 2),
		fixture(10, 2023, 35, arsenal, chelsea),
	)
	s.AddStandings(
		snapshot(2023, 5, arsenal, 1, 10, 4),
		snapshot(2023, 5, chelsea, 15, 3, -3),
		snapshot(2022, 38, arsenal, 2, 84, 45),
	)
	return s
}

func TestDefaultSchemaIsStable(t *testing.T) {
	s := DefaultSchema()
	assert.Equal(t, SchemaVersion, s.Version)
	assert.Equal(t, 51, s.Len())
	assert.Equal(t, "h2h_total_matches", s.Columns()[0])
	assert.Equal(t, "same_city", s.Columns()[50])
	assert.Equal(t, 24, s.Index("prev_season_home_position"))
	assert.Equal(t, -1, s.Index("odds_home"))

	cols := s.Columns()
	cols[0] = "mutated"
	assert.Equal(t, "h2h_total_matches", DefaultSchema().Columns()[0])
	assert.Equal(t, "h2h_total_matches", s.Columns()[0])
}

func TestComposerBuildsFullVector(t *testing.T) {
	e := newTestEngine(seasonStore())

	fv, err := e.composer.GetFeaturesForMatch(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, int64(10), fv.MatchID)
	assert.Equal(t, SchemaVersion, fv.SchemaVersion)
	assert.Equal(t, e.composer.GetFeatureColumns(), fv.Names)

	m := fv.Map()
	assert.Equal(t, 1.0, m["home_flag"])
	assert.Equal(t, 1.0, m["same_city"])
	assert.Equal(t, 3.0, m["h2h_total_matches"])
	assert.Equal(t, -14.0, m["diff_position"])
	assert.Equal(t, 2.0, m["prev_season_home_position"])
	assert.Equal(t, float64(DefaultPrevPosition), m["prev_season_away_position"])

	assert.Equal(t, 3, fv.Quality.HomeFormSamples)
	assert.Equal(t, 4, fv.Quality.AwayFormSamples)
	assert.Equal(t, 3, fv.Quality.H2HMeetings)
	assert.False(t, fv.Quality.ColdStart)
}

func TestComposerIsIdempotentAndCaches(t *testing.T) {
	e := newTestEngine(seasonStore())
	spy := &countingBuilder{inner: e.builder}
	composer := NewComposer(DefaultSchema(), e.store, spy, testFeatureLogger(),
		WithVectorCache(NewVectorCache(cache.NewMemoryStore(0), 0)))
	ctx := context.Background()

	first, err := composer.GetFeaturesForMatch(ctx, 10)
	require.NoError(t, err)
	second, err := composer.GetFeaturesForMatch(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, first.Values, second.Values)
	assert.Equal(t, int32(1), spy.calls.Load())

	// Callers get independent copies.
	second.Values[0] = 99
	third, err := composer.GetFeaturesForMatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, first.Values[0], third.Values[0])
}

func TestComposerConcurrentCallersShareOneBuild(t *testing.T) {
	e := newTestEngine(seasonStore())
	spy := &countingBuilder{inner: e.builder}
	composer := NewComposer(DefaultSchema(), e.store, spy, testFeatureLogger(),
		WithVectorCache(NewVectorCache(cache.NewMemoryStore(0), 0)))

	var wg sync.WaitGroup
	results := make([]*models.FeatureVector, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fv, err := composer.GetFeaturesForMatch(context.Background(), 10)
			assert.NoError(t, err)
			results[i] = fv
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), spy.calls.Load())
	for _, fv := range results[1:] {
		assert.Equal(t, results[0].Values, fv.Values)
	}
}

func TestComposerUsesDurableStore(t *testing.T) {
	e := newTestEngine(seasonStore())
	ctx := context.Background()

	built, err := e.composer.GetFeaturesForMatch(ctx, 10)
	require.NoError(t, err)

	stored, err := e.store.Features().Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, built.Values, stored.Values)

	// A cold cache in front of the same table reads instead of rebuilding.
	spy := &countingBuilder{inner: e.builder}
	composer := NewComposer(DefaultSchema(), e.store, spy, testFeatureLogger(),
		WithVectorCache(NewVectorCache(cache.NewMemoryStore(0), 0)),
		WithFeatureRepository(e.store.Features()))
	got, err := composer.GetFeaturesForMatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, built.Values, got.Values)
	assert.Zero(t, spy.calls.Load())
}

func TestComposerRebuildsOutdatedSchema(t *testing.T) {
	e := newTestEngine(seasonStore())
	ctx := context.Background()
	require.NoError(t, e.store.Features().Upsert(ctx, &models.FeatureVector{
		MatchID: 10, SchemaVersion: "v1", Names: []string{"old"}, Values: []float64{1},
	}))

	spy := &countingBuilder{inner: e.builder}
	composer := NewComposer(DefaultSchema(), e.store, spy, testFeatureLogger(),
		WithFeatureRepository(e.store.Features()))
	fv, err := composer.GetFeaturesForMatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, fv.SchemaVersion)
	assert.Equal(t, int32(1), spy.calls.Load())
}

func TestBuilderDoesNotLeakFutureMatches(t *testing.T) {
	store := seasonStore()
	ctx := context.Background()
	m, err := store.GetByID(ctx, 10)
	require.NoError(t, err)

	before, err := newTestEngine(store).builder.Build(ctx, m)
	require.NoError(t, err)

	// Results after kickoff, including at the same instant, must not move the vector.
	store.AddMatches(
		result(20, 2023, 35, chelsea, arsenal, 7, 0),
		result(21, 2023, 42, arsenal, chelsea, 0, 5),
		result(22, 2023, 49, liverpool, arsenal, 6, 0),
	)
	store.AddStandings(snapshot(2023, 6, arsenal, 20, 10, -30))

	after, err := newTestEngine(store).builder.Build(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, before.Names, after.Names)
	assert.Equal(t, before.Values, after.Values)
}

func TestComposerInvalidate(t *testing.T) {
	e := newTestEngine(seasonStore())
	spy := &countingBuilder{inner: e.builder}
	composer := NewComposer(DefaultSchema(), e.store, spy, testFeatureLogger(),
		WithVectorCache(NewVectorCache(cache.NewMemoryStore(0), 0)),
		WithFeatureRepository(e.store.Features()))
	ctx := context.Background()

	_, err := composer.GetFeaturesForMatch(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, composer.Invalidate(ctx, 10))
	_, err = composer.GetFeaturesForMatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), spy.calls.Load())
}

func TestComposerWrapsErrors(t *testing.T) {
	e := newTestEngine(seasonStore())
	boom := errors.New("standings unavailable")
	composer := NewComposer(DefaultSchema(), e.store, &countingBuilder{err: boom}, testFeatureLogger())

	_, err := composer.GetFeaturesForMatch(context.Background(), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "match 10")

	_, err = composer.GetFeaturesForMatch(context.Background(), 404)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// gatedBuilder blocks every build until release is closed or the build
// context ends.
type gatedBuilder struct {
	inner   Builder
	calls   atomic.Int32
	started chan struct{}
	once    sync.Once
	release chan struct{}
}

func (b *gatedBuilder) Build(ctx context.Context, m *models.Match) (*models.FeatureVector, error) {
	b.calls.Add(1)
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return b.inner.Build(ctx, m)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestComposerSharedBuildSurvivesCancelledCaller(t *testing.T) {
	e := newTestEngine(seasonStore())
	gate := &gatedBuilder{inner: e.builder, started: make(chan struct{}), release: make(chan struct{})}
	composer := NewComposer(DefaultSchema(), e.store, gate, testFeatureLogger(),
		WithVectorCache(NewVectorCache(cache.NewMemoryStore(0), 0)))
	m, err := e.store.GetByID(context.Background(), 10)
	require.NoError(t, err)

	first, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := composer.FeaturesFor(first, m)
		firstErr <- err
	}()
	<-gate.started

	type outcome struct {
		fv  *models.FeatureVector
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		fv, err := composer.FeaturesFor(context.Background(), m)
		second <- outcome{fv, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller kept waiting on the shared build")
	}

	close(gate.release)
	select {
	case got := <-second:
		require.NoError(t, got.err)
		assert.Equal(t, int64(10), got.fv.MatchID)
		assert.Equal(t, DefaultSchema().Len(), got.fv.Len())
	case <-time.After(2 * time.Second):
		t.Fatal("live caller never received the shared build")
	}
	assert.Equal(t, int32(1), gate.calls.Load())
}

func TestComposerRejectsCancelledCaller(t *testing.T) {
	e := newTestEngine(seasonStore())
	spy := &countingBuilder{inner: e.builder}
	composer := NewComposer(DefaultSchema(), e.store, spy, testFeatureLogger())
	m, err := e.store.GetByID(context.Background(), 10)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = composer.FeaturesFor(ctx, m)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, spy.calls.Load())
}

package features

import (
	"io"
	"time"

	"github.com/yourusername/matchcast/internal/cache"
	"github.com/yourusername/matchcast/internal/logger"
	"github.com/yourusername/matchcast/internal/models"
	"github.com/yourusername/matchcast/internal/repository"
)

var kickoff = time.Date(2023, 8, 12, 15, 0, 0, 0, time.UTC)

const (
	arsenal   int64 = 57
	chelsea   int64 = 61
	liverpool int64 = 64
)

func testFeatureLogger() *logger.FeatureLogger {
	return logger.NewFeatureLogger(logger.New(io.Discard, "error", "test"))
}

func result(id int64, season, day int, home, away int64, hs, as int) *models.Match {
	return &models.Match{
		ID:         id,
		Season:     season,
		UTCDate:    kickoff.AddDate(0, 0, day),
		Matchday:   day/7 + 1,
		Status:     models.StatusFinished,
		HomeTeamID: home,
		AwayTeamID: away,
		HomeScore:  models.IntPtr(hs),
		AwayScore:  models.IntPtr(as),
	}
}

func fixture(id int64, season, day int, home, away int64) *models.Match {
	return &models.Match{
		ID:         id,
		Season:     season,
		UTCDate:    kickoff.AddDate(0, 0, day),
		Matchday:   day/7 + 1,
		Status:     models.StatusScheduled,
		HomeTeamID: home,
		AwayTeamID: away,
		City:       "London",
	}
}

func snapshot(season, matchday int, team int64, position, points, goalDiff int) *models.StandingsSnapshot {
	return &models.StandingsSnapshot{
		Season:      season,
		Matchday:    matchday,
		TeamID:      team,
		Position:    position,
		PlayedGames: matchday,
		Points:      points,
		GoalDiff:    goalDiff,
	}
}

type testEngine struct {
	store     *repository.MemoryStore
	cacheData *cache.MemoryStore
	h2h       *H2HAggregator
	builder   *PointInTimeBuilder
	composer  *Composer
}

func newTestEngine(store *repository.MemoryStore) *testEngine {
	log := testFeatureLogger()
	backing := cache.NewMemoryStore(0)
	h2h := NewH2HAggregator(store, NewH2HCache(backing, 0), DefaultH2HLimit, log)
	builder := NewPointInTimeBuilder(
		DefaultSchema(),
		NewFormCalculator(store, log),
		NewStandingsResolver(store, log),
		h2h,
		BuilderOptions{},
	)
	composer := NewComposer(DefaultSchema(), store, builder, log,
		WithVectorCache(NewVectorCache(backing, 0)),
		WithFeatureRepository(store.Features()),
	)
	return &testEngine{store: store, cacheData: backing, h2h: h2h, builder: builder, composer: composer}
}

func valueOf(values []NamedValue, name string) (float64, bool) {
	for _, v := range values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}

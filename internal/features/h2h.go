package features

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/matchcast/internal/cache"
	"github.com/yourusername/matchcast/internal/logger"
	"github.com/yourusername/matchcast/internal/models"
	"github.com/yourusername/matchcast/internal/repository"
)

const (
	// DefaultH2HLimit bounds how many past meetings are aggregated.
	DefaultH2HLimit = 10
	// LeagueAverageGoals stands in for avg goals when two teams never met.
	LeagueAverageGoals = 2.5

	recentMeetings = 3
)

// H2HEntry is the cached aggregate for one pairing and season.
type H2HEntry struct {
	ComputedFor time.Time `json:"computed_for"`
	Values      []float64 `json:"values"`
}

// H2HAggregator summarizes past meetings between two teams from the home
// team's perspective.
type H2HAggregator struct {
	matches repository.MatchRepository
	cache   *cache.Keyed[H2HEntry]
	limit   int
	log     *logger.FeatureLogger
}

// NewH2HAggregator creates an aggregator. cache may be nil to disable caching.
func NewH2HAggregator(matches repository.MatchRepository, c *cache.Keyed[H2HEntry], limit int, log *logger.FeatureLogger) *H2HAggregator {
	if limit <= 0 {
		limit = DefaultH2HLimit
	}
	return &H2HAggregator{matches: matches, cache: c, limit: limit, log: log}
}

// NewH2HCache creates the keyed cache used by H2HAggregator.
func NewH2HCache(store cache.Store, ttl time.Duration) *cache.Keyed[H2HEntry] {
	return cache.NewKeyed[H2HEntry]("h2h", store, ttl)
}

// Aggregate returns the h2h features for home vs away using meetings strictly
// before asOf. season is the season of the match being featurized.
func (a *H2HAggregator) Aggregate(ctx context.Context, homeID, awayID int64, season int, asOf time.Time) ([]NamedValue, error) {
	key := fmt.Sprintf("%d:%d:%d", homeID, awayID, season)

	if a.cache != nil {
		entry, hit, err := a.cache.Lookup(ctx, key, func(e H2HEntry) bool {
			return e.ComputedFor.Equal(asOf) && len(e.Values) == len(h2hColumns)
		})
		if err != nil {
			return nil, fmt.Errorf("h2h cache lookup %s: %w", key, err)
		}
		a.log.LogCacheLookup(a.cache.Name(), key, hit)
		if hit {
			return zipColumns(h2hColumns, entry.Values), nil
		}
	}

	meetings, err := a.matches.GetHeadToHeadBefore(ctx, homeID, awayID, asOf, a.limit)
	if err != nil {
		return nil, fmt.Errorf("load h2h for %d vs %d: %w", homeID, awayID, err)
	}

	values := a.compute(homeID, season, meetings)

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, H2HEntry{ComputedFor: asOf, Values: values}); err != nil {
			return nil, fmt.Errorf("h2h cache store %s: %w", key, err)
		}
	}
	return zipColumns(h2hColumns, values), nil
}

// h2hResult is one meeting seen from the home team's side.
type h2hResult struct {
	scored   int
	conceded int
	atHome   bool
	season   int
}

func (a *H2HAggregator) compute(homeID int64, season int, meetings []*models.Match) []float64 {
	results := make([]h2hResult, 0, len(meetings))
	for _, m := range meetings {
		scored, conceded, err := m.GoalsFor(homeID)
		if err != nil {
			a.log.LogSkippedRecord(m.ID, err.Error())
			continue
		}
		results = append(results, h2hResult{
			scored:   scored,
			conceded: conceded,
			atHome:   m.HomeTeamID == homeID,
			season:   m.Season,
		})
	}

	if len(results) == 0 {
		return defaultH2HValues()
	}

	var wins, draws, losses, goalDiff, totalGoals int
	var homeVenue, homeVenueWins, awayVenue, awayVenueWins int
	var seasonMatches, seasonWins int
	for _, r := range results {
		switch {
		case r.scored > r.conceded:
			wins++
		case r.scored == r.conceded:
			draws++
		default:
			losses++
		}
		won := r.scored > r.conceded
		goalDiff += r.scored - r.conceded
		totalGoals += r.scored + r.conceded

		if r.atHome {
			homeVenue++
			if won {
				homeVenueWins++
			}
		} else {
			awayVenue++
			if won {
				awayVenueWins++
			}
		}
		if r.season == season {
			seasonMatches++
			if won {
				seasonWins++
			}
		}
	}

	// Meetings are newest first.
	recent := results
	if len(recent) > recentMeetings {
		recent = recent[:recentMeetings]
	}
	var recentWins, recentGoalDiff int
	for _, r := range recent {
		if r.scored > r.conceded {
			recentWins++
		}
		recentGoalDiff += r.scored - r.conceded
	}

	n := float64(len(results))
	return []float64{
		n,
		float64(wins),
		float64(draws),
		float64(losses),
		float64(wins) / n,
		float64(draws) / n,
		float64(losses) / n,
		float64(goalDiff),
		float64(totalGoals) / n,
		float64(goalDiff) / n,
		float64(homeVenue),
		float64(homeVenueWins),
		float64(homeVenueWins) / float64(max(homeVenue, 1)),
		float64(awayVenue),
		float64(awayVenueWins),
		float64(awayVenueWins) / float64(max(awayVenue, 1)),
		float64(recentWins),
		float64(recentGoalDiff),
		float64(recentWins) / float64(len(recent)),
		float64(seasonMatches),
		float64(seasonWins),
		float64(seasonWins) / float64(max(seasonMatches, 1)),
		float64(wins-losses) / n,
		float64(goalDiff) / float64(max(totalGoals, 1)),
	}
}

func defaultH2HValues() []float64 {
	return []float64{
		0, 0, 0, 0, // total, wins, draws, losses
		0.5, 0.0, 0.5, // win, draw, loss rate
		0, LeagueAverageGoals, 0, // goal diff, avg goals, avg goal diff
		0, 0, 0.5, // home venue
		0, 0, 0.5, // away venue
		0, 0, 0.5, // recent
		0, 0, 0.5, // current season
		0, 0, // dominance
	}
}

func zipColumns(names []string, values []float64) []NamedValue {
	out := make([]NamedValue, len(names))
	for i, n := range names {
		out[i] = NamedValue{Name: n, Value: values[i]}
	}
	return out
}

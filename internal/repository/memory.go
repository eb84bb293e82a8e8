package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yourusername/matchcast/internal/models"
)

type standingsKey struct {
	season   int
	matchday int
	teamID   int64
}

// MemoryStore is an in-process implementation of every repository. It backs
// offline fixtures and tests and is safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	matches     map[int64]*models.Match
	standings   map[standingsKey]*models.StandingsSnapshot
	features    map[int64]*models.FeatureVector
	predictions map[int64]*models.Prediction
	artifacts   map[string]*models.ArtifactMetadata
	current     string
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches:     make(map[int64]*models.Match),
		standings:   make(map[standingsKey]*models.StandingsSnapshot),
		features:    make(map[int64]*models.FeatureVector),
		predictions: make(map[int64]*models.Prediction),
		artifacts:   make(map[string]*models.ArtifactMetadata),
	}
}

// AddMatches inserts or replaces matches
func (s *MemoryStore) AddMatches(matches ...*models.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range matches {
		s.matches[m.ID] = cloneMatch(m)
	}
}

// AddStandings inserts or replaces standings snapshots
func (s *MemoryStore) AddStandings(snapshots ...*models.StandingsSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range snapshots {
		cp := *snap
		s.standings[standingsKey{snap.Season, snap.Matchday, snap.TeamID}] = &cp
	}
}

// GetByID implements MatchRepository
func (s *MemoryStore) GetByID(_ context.Context, id int64) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneMatch(m), nil
}

// GetTeamMatchesBefore implements MatchRepository
func (s *MemoryStore) GetTeamMatchesBefore(_ context.Context, teamID int64, season int, before time.Time, limit int) ([]*models.Match, error) {
	return s.selectMatches(func(m *models.Match) bool {
		return m.Season == season && m.Involves(teamID) && m.UTCDate.Before(before) && m.IsFinished()
	}, true, limit), nil
}

// GetHeadToHeadBefore implements MatchRepository
func (s *MemoryStore) GetHeadToHeadBefore(_ context.Context, teamA, teamB int64, before time.Time, limit int) ([]*models.Match, error) {
	return s.selectMatches(func(m *models.Match) bool {
		return m.Involves(teamA) && m.Involves(teamB) && teamA != teamB && m.UTCDate.Before(before) && m.IsFinished() && m.HasScore()
	}, true, limit), nil
}

// GetFinishedBySeasons implements MatchRepository
func (s *MemoryStore) GetFinishedBySeasons(_ context.Context, seasons []int) ([]*models.Match, error) {
	wanted := make(map[int]bool, len(seasons))
	for _, season := range seasons {
		wanted[season] = true
	}
	return s.selectMatches(func(m *models.Match) bool {
		return wanted[m.Season] && m.IsFinished()
	}, false, 0), nil
}

func (s *MemoryStore) selectMatches(keep func(*models.Match) bool, newestFirst bool, limit int) []*models.Match {
	s.mu.RLock()
	var out []*models.Match
	for _, m := range s.matches {
		if keep(m) {
			out = append(out, cloneMatch(m))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.UTCDate.Equal(b.UTCDate) {
			if newestFirst {
				return a.UTCDate.After(b.UTCDate)
			}
			return a.UTCDate.Before(b.UTCDate)
		}
		if newestFirst {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Get implements StandingsRepository
func (s *MemoryStore) Get(_ context.Context, season, matchday int, teamID int64) (*models.StandingsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.standings[standingsKey{season, matchday, teamID}]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

// GetFinal implements StandingsRepository
func (s *MemoryStore) GetFinal(_ context.Context, season int, teamID int64) (*models.StandingsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *models.StandingsSnapshot
	for k, snap := range s.standings {
		if k.season == season && k.teamID == teamID && (best == nil || snap.Matchday > best.Matchday) {
			best = snap
		}
	}
	if best == nil {
		return nil, models.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

// Features returns the FeatureRepository view of the store
func (s *MemoryStore) Features() *MemoryFeatureStore {
	return &MemoryFeatureStore{s: s}
}

// Predictions returns the PredictionRepository view of the store
func (s *MemoryStore) Predictions() *MemoryPredictionStore {
	return &MemoryPredictionStore{s: s}
}

// Artifacts returns the ArtifactRepository view of the store
func (s *MemoryStore) Artifacts() *MemoryArtifactStore {
	return &MemoryArtifactStore{s: s}
}

// MemoryFeatureStore implements FeatureRepository over a MemoryStore
type MemoryFeatureStore struct {
	s *MemoryStore
}

// Get implements FeatureRepository
func (f *MemoryFeatureStore) Get(_ context.Context, matchID int64) (*models.FeatureVector, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()
	fv, ok := f.s.features[matchID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneFeatures(fv), nil
}

// Upsert implements FeatureRepository
func (f *MemoryFeatureStore) Upsert(_ context.Context, fv *models.FeatureVector) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.features[fv.MatchID] = cloneFeatures(fv)
	return nil
}

// Delete implements FeatureRepository
func (f *MemoryFeatureStore) Delete(_ context.Context, matchID int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	delete(f.s.features, matchID)
	return nil
}

// MemoryPredictionStore implements PredictionRepository over a MemoryStore
type MemoryPredictionStore struct {
	s *MemoryStore
}

// Upsert implements PredictionRepository
func (p *MemoryPredictionStore) Upsert(_ context.Context, prediction *models.Prediction) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	cp := *prediction
	p.s.predictions[prediction.MatchID] = &cp
	return nil
}

// GetByMatchID implements PredictionRepository
func (p *MemoryPredictionStore) GetByMatchID(_ context.Context, matchID int64) (*models.Prediction, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	pred, ok := p.s.predictions[matchID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *pred
	return &cp, nil
}

// ListEvaluated implements PredictionRepository
func (p *MemoryPredictionStore) ListEvaluated(_ context.Context, filter EvaluationFilter) ([]*models.EvaluatedPrediction, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	var out []*models.EvaluatedPrediction
	for id, pred := range p.s.predictions {
		m, ok := p.s.matches[id]
		if !ok || !m.IsFinished() || !m.HasScore() {
			continue
		}
		if filter.Season != nil && m.Season != *filter.Season {
			continue
		}
		if filter.Matchday != nil && m.Matchday != *filter.Matchday {
			continue
		}
		if filter.Since != nil && m.UTCDate.Before(*filter.Since) {
			continue
		}
		cp := *pred
		out = append(out, &models.EvaluatedPrediction{Match: cloneMatch(m), Prediction: &cp})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Match, out[j].Match
		if !a.UTCDate.Equal(b.UTCDate) {
			return a.UTCDate.Before(b.UTCDate)
		}
		return a.ID < b.ID
	})
	return out, nil
}

// MemoryArtifactStore implements ArtifactRepository over a MemoryStore
type MemoryArtifactStore struct {
	s *MemoryStore
}

// Record implements ArtifactRepository
func (a *MemoryArtifactStore) Record(_ context.Context, meta *models.ArtifactMetadata) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, exists := a.s.artifacts[meta.Version]; !exists {
		cp := *meta
		a.s.artifacts[meta.Version] = &cp
	}
	return nil
}

// SetCurrent implements ArtifactRepository
func (a *MemoryArtifactStore) SetCurrent(_ context.Context, version string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.artifacts[version]; !ok {
		return models.ErrNotFound
	}
	a.s.current = version
	return nil
}

// GetCurrent implements ArtifactRepository
func (a *MemoryArtifactStore) GetCurrent(_ context.Context) (*models.ArtifactMetadata, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	meta, ok := a.s.artifacts[a.s.current]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *meta
	return &cp, nil
}

// List implements ArtifactRepository
func (a *MemoryArtifactStore) List(_ context.Context, limit int) ([]*models.ArtifactMetadata, error) {
	a.s.mu.RLock()
	out := make([]*models.ArtifactMetadata, 0, len(a.s.artifacts))
	for _, meta := range a.s.artifacts {
		cp := *meta
		out = append(out, &cp)
	}
	a.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TrainedAt.After(out[j].TrainedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneMatch(m *models.Match) *models.Match {
	cp := *m
	if m.HomeScore != nil {
		cp.HomeScore = models.IntPtr(*m.HomeScore)
	}
	if m.AwayScore != nil {
		cp.AwayScore = models.IntPtr(*m.AwayScore)
	}
	return &cp
}

func cloneFeatures(fv *models.FeatureVector) *models.FeatureVector {
	cp := *fv
	cp.Names = append([]string(nil), fv.Names...)
	cp.Values = append([]float64(nil), fv.Values...)
	return &cp
}

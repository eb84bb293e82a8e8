package features

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yourusername/matchcast/internal/cache"
	"github.com/yourusername/matchcast/internal/logger"
	"github.com/yourusername/matchcast/internal/metrics"
	"github.com/yourusername/matchcast/internal/models"
	"github.com/yourusername/matchcast/internal/repository"
)

// Composer is the feature store front door. Lookups go to the keyed cache,
// then the durable feature table, and only then to the builder.
type Composer struct {
	schema  Schema
	matches repository.MatchRepository
	builder Builder
	cache   *cache.Keyed[models.FeatureVector]
	store   repository.FeatureRepository
	group   singleflight.Group
	log     *logger.FeatureLogger
}

// ComposerOption configures optional storage layers.
type ComposerOption func(*Composer)

// WithVectorCache enables the keyed vector cache.
func WithVectorCache(c *cache.Keyed[models.FeatureVector]) ComposerOption {
	return func(cp *Composer) { cp.cache = c }
}

// WithFeatureRepository enables durable persistence of built vectors.
func WithFeatureRepository(store repository.FeatureRepository) ComposerOption {
	return func(cp *Composer) { cp.store = store }
}

// NewComposer creates a composer.
func NewComposer(schema Schema, matches repository.MatchRepository, builder Builder, log *logger.FeatureLogger, opts ...ComposerOption) *Composer {
	c := &Composer{
		schema:  schema,
		matches: matches,
		builder: builder,
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewVectorCache creates the keyed cache used by WithVectorCache.
func NewVectorCache(store cache.Store, ttl time.Duration) *cache.Keyed[models.FeatureVector] {
	return cache.NewKeyed[models.FeatureVector]("features", store, ttl)
}

// Schema returns the schema vectors are built against.
func (c *Composer) Schema() Schema {
	return c.schema
}

// GetFeatureColumns returns the ordered feature names.
func (c *Composer) GetFeatureColumns() []string {
	return c.schema.Columns()
}

// GetFeaturesForMatch loads the match and returns its feature vector.
func (c *Composer) GetFeaturesForMatch(ctx context.Context, matchID int64) (*models.FeatureVector, error) {
	m, err := c.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("load match %d: %w", matchID, err)
	}
	return c.FeaturesFor(ctx, m)
}

// FeaturesFor returns the feature vector for an already loaded match.
// Concurrent callers for one match share a single build and each receive
// their own copy. The shared build is detached from any one caller's
// cancellation; a caller whose context ends stops waiting and gets ctx.Err().
func (c *Composer) FeaturesFor(ctx context.Context, m *models.Match) (*models.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := strconv.FormatInt(m.ID, 10)
	shared := context.WithoutCancel(ctx)

	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.load(shared, key, m)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneVector(res.Val.(*models.FeatureVector)), nil
	}
}

func (c *Composer) load(ctx context.Context, key string, m *models.Match) (*models.FeatureVector, error) {
	current := func(fv models.FeatureVector) bool {
		return fv.SchemaVersion == c.schema.Version && fv.Len() == c.schema.Len()
	}

	if c.cache != nil {
		fv, hit, err := c.cache.Lookup(ctx, key, current)
		if err != nil {
			return nil, fmt.Errorf("feature cache lookup for match %d: %w", m.ID, err)
		}
		c.log.LogCacheLookup(c.cache.Name(), key, hit)
		if hit {
			return &fv, nil
		}
	}

	if c.store != nil {
		fv, err := c.store.Get(ctx, m.ID)
		switch {
		case err == nil && current(*fv):
			c.fill(ctx, key, fv)
			return fv, nil
		case err != nil && !errors.Is(err, models.ErrNotFound):
			return nil, fmt.Errorf("load stored features for match %d: %w", m.ID, err)
		}
	}

	start := time.Now()
	fv, err := c.builder.Build(ctx, m)
	if err != nil {
		metrics.RecordFeatureBuild("error", time.Since(start).Seconds())
		c.log.LogFeatureBuildError(m.ID, err)
		return nil, fmt.Errorf("build features for match %d: %w", m.ID, err)
	}
	elapsed := time.Since(start)
	metrics.RecordFeatureBuild("success", elapsed.Seconds())
	c.log.LogFeatureBuild(m.ID, fv.SchemaVersion, fv.Len(), elapsed)

	if c.store != nil {
		if err := c.store.Upsert(ctx, fv); err != nil {
			return nil, fmt.Errorf("persist features for match %d: %w", m.ID, err)
		}
	}
	c.fill(ctx, key, fv)
	return fv, nil
}

// fill writes through to the cache. A failed cache write only costs a rebuild.
func (c *Composer) fill(ctx context.Context, key string, fv *models.FeatureVector) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, *fv); err != nil {
		c.log.WithError(err).WithField("match_id", fv.MatchID).Warn("Failed to cache feature vector")
	}
}

// Invalidate drops any stored vector for the match.
func (c *Composer) Invalidate(ctx context.Context, matchID int64) error {
	key := strconv.FormatInt(matchID, 10)
	c.group.Forget(key)
	if c.cache != nil {
		if err := c.cache.Invalidate(ctx, key); err != nil {
			return fmt.Errorf("invalidate cached features for match %d: %w", matchID, err)
		}
	}
	if c.store != nil {
		if err := c.store.Delete(ctx, matchID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("delete stored features for match %d: %w", matchID, err)
		}
	}
	return nil
}

func cloneVector(fv *models.FeatureVector) *models.FeatureVector {
	out := *fv
	out.Names = append([]string(nil), fv.Names...)
	out.Values = append([]float64(nil), fv.Values...)
	return &out
}

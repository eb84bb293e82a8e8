// Package app wires configuration into the feature engine, services and
// stores shared by the command line tools.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/matchcast/internal/artifact"
	"github.com/yourusername/matchcast/internal/cache"
	"github.com/yourusername/matchcast/internal/config"
	"github.com/yourusername/matchcast/internal/database"
	"github.com/yourusername/matchcast/internal/dataset"
	"github.com/yourusername/matchcast/internal/evaluation"
	"github.com/yourusername/matchcast/internal/features"
	"github.com/yourusername/matchcast/internal/logger"
	"github.com/yourusername/matchcast/internal/repository"
	"github.com/yourusername/matchcast/internal/service"
)

// App holds every long-lived dependency of a process.
type App struct {
	Config      *config.Config
	Logger      *logrus.Logger
	DB          *database.DB
	Repos       *repository.Repositories
	CacheStore  cache.Store
	Composer    *features.Composer
	Datasets    *dataset.Builder
	Artifacts   *artifact.Store
	Registry    *artifact.Registry
	Training    *service.TrainingService
	Retraining  *service.RetrainingService
	Predictions *service.PredictionService

	closers []func()
}

// LoadConfig reads configuration and overlays AWS secrets when
// MATCHCAST_AWS_SECRET_NAME is set.
func LoadConfig(ctx context.Context, path string) (*config.Config, error) {
	cfg, err := config.LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if secret := os.Getenv("MATCHCAST_AWS_SECRET_NAME"); secret != "" {
		region := os.Getenv("AWS_REGION")
		if region == "" {
			region = "eu-west-2"
		}
		if err := config.LoadSecretsFromAWS(ctx, cfg, region, secret); err != nil {
			return nil, fmt.Errorf("failed to load secrets: %w", err)
		}
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New connects to Postgres and wires the application.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	db, err := database.Initialize(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	repos, err := repository.NewRepositories(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	a, err := Wire(ctx, cfg, repos, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	return a, nil
}

// Wire builds the application on top of the given repositories.
func Wire(ctx context.Context, cfg *config.Config, repos *repository.Repositories, log *logrus.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log, Repos: repos}

	store, err := a.cacheStore(ctx)
	if err != nil {
		return nil, err
	}
	a.CacheStore = store

	featureLog := logger.NewFeatureLogger(log)
	schema := features.DefaultSchema()
	if cfg.Features.SchemaVersion != "" && cfg.Features.SchemaVersion != schema.Version {
		return nil, fmt.Errorf("configured feature schema %s is not supported, this build provides %s", cfg.Features.SchemaVersion, schema.Version)
	}

	ttl := cfg.Features.CacheTTL()
	builder := features.NewPointInTimeBuilder(
		schema,
		features.NewFormCalculator(repos.Match, featureLog),
		features.NewStandingsResolver(repos.Standings, featureLog),
		features.NewH2HAggregator(repos.Match, features.NewH2HCache(store, ttl), cfg.Features.H2HLimit, featureLog),
		features.BuilderOptions{FormWindow: cfg.Features.FormWindow, RankDeltaWindow: cfg.Features.RankDeltaWindow},
	)
	opts := []features.ComposerOption{features.WithVectorCache(features.NewVectorCache(store, ttl))}
	if cfg.Features.PersistFeatures {
		opts = append(opts, features.WithFeatureRepository(repos.Feature))
	}
	a.Composer = features.NewComposer(schema, repos.Match, builder, featureLog, opts...)

	a.Datasets = dataset.NewBuilder(repos.Match, a.Composer, schema.Version,
		dataset.Options{SkipColdStart: cfg.Training.SkipColdStart}, logger.NewMLLogger(log))

	a.Artifacts, err = artifact.NewStore(cfg.Training.ArtifactDir)
	if err != nil {
		return nil, err
	}
	a.Registry = artifact.NewRegistry(a.Artifacts, log)

	a.Training = service.NewTrainingService(a.Datasets, a.Artifacts, service.ParamsFromConfig(cfg.Training), cfg.Training.CVFolds, log,
		service.WithCatalog(repos.Artifact),
		service.WithRegistry(a.Registry),
		service.WithTimeout(time.Duration(cfg.Training.TimeoutMinutes)*time.Minute),
	)

	weighting, err := evaluation.NewWeightingStrategy(cfg.Retraining.Weighting)
	if err != nil {
		return nil, err
	}
	a.Retraining = service.NewRetrainingService(a.Training, repos.Prediction, weighting, cfg.Retraining.MinEvaluated, log)

	a.Predictions = service.NewPredictionService(a.Registry, repos.Match, a.Composer, repos.Prediction, log,
		service.WithTopFeatures(cfg.Serving.TopFeatures),
		service.WithBatchLimit(cfg.Serving.BatchLimit),
	)
	return a, nil
}

func (a *App) cacheStore(ctx context.Context) (cache.Store, error) {
	if a.Config.Features.CacheBackend != "redis" {
		return cache.NewMemoryStore(0), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	store := cache.NewRedisStore(client, a.Config.Redis.KeyPrefix)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", a.Config.Redis.Addr, err)
	}
	a.closers = append(a.closers, func() { client.Close() })
	return store, nil
}

// TrainingOptions maps configuration defaults onto a training request.
func (a *App) TrainingOptions() service.TrainingOptions {
	return service.TrainingOptions{
		Algorithm: a.Config.Training.Algorithm,
		Seasons:   a.Config.Training.Seasons,
		Split: dataset.SplitOptions{
			ValidSeason:   a.Config.ValidSeasonPtr(),
			ValidFraction: a.Config.Training.ValidFraction,
		},
	}
}

// RetrainingOptions maps configuration defaults onto a retraining request.
func (a *App) RetrainingOptions() service.RetrainingOptions {
	opts := a.TrainingOptions()
	return service.RetrainingOptions{
		Algorithm: opts.Algorithm,
		Seasons:   opts.Seasons,
		Split:     opts.Split,
		Evaluation: service.EvaluationRequest{
			DaysBack: a.Config.Retraining.DaysBack,
			TopN:     a.Config.Retraining.WorstN,
		},
	}
}

// Close releases connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

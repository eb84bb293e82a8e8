// Package config provides configuration management for the matchcast forecasting engine.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Features   FeaturesConfig   `mapstructure:"features" validate:"required"`
	Training   TrainingConfig   `mapstructure:"training" validate:"required"`
	Serving    ServingConfig    `mapstructure:"serving" validate:"required"`
	Retraining RetrainingConfig `mapstructure:"retraining" validate:"required"`
	Metrics    MetricsConfig    `mapstructure:"metrics" validate:"required"`
	Health     HealthConfig     `mapstructure:"health" validate:"required"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// RedisConfig configures the shared cache backend
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db" validate:"gte=0"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// FeaturesConfig controls the point-in-time feature engine
type FeaturesConfig struct {
	FormWindow      int    `mapstructure:"form_window" validate:"required,gt=0"`
	RankDeltaWindow int    `mapstructure:"rank_delta_window" validate:"required,gt=0"`
	H2HLimit        int    `mapstructure:"h2h_limit" validate:"required,gt=0,lte=50"`
	SchemaVersion   string `mapstructure:"schema_version" validate:"required"`
	CacheBackend    string `mapstructure:"cache_backend" validate:"required,cachebackend"`
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes" validate:"gte=0"`
	PersistFeatures bool   `mapstructure:"persist_features"`
}

// CacheTTL returns the keyed cache expiry. Zero means entries never expire.
func (f FeaturesConfig) CacheTTL() time.Duration {
	return time.Duration(f.CacheTTLMinutes) * time.Minute
}

// TrainingConfig controls model fitting and artifact storage
type TrainingConfig struct {
	Algorithm      string         `mapstructure:"algorithm" validate:"required,algorithm"`
	Seasons        []int          `mapstructure:"seasons" validate:"required,min=1"`
	ValidSeason    int            `mapstructure:"valid_season" validate:"gte=0"`
	ValidFraction  float64        `mapstructure:"valid_fraction" validate:"gt=0,lt=1"`
	CVFolds        int            `mapstructure:"cv_folds" validate:"required,gte=2,lte=20"`
	RandomSeed     int64          `mapstructure:"random_seed"`
	ArtifactDir    string         `mapstructure:"artifact_dir" validate:"required"`
	TimeoutMinutes int            `mapstructure:"timeout_minutes" validate:"required,gt=0"`
	SkipColdStart  bool           `mapstructure:"skip_cold_start"`
	Logistic       LogisticConfig `mapstructure:"logistic"`
	Forest         ForestConfig   `mapstructure:"forest"`
	Boosting       BoostingConfig `mapstructure:"boosting"`
}

// LogisticConfig holds softmax regression hyper-parameters
type LogisticConfig struct {
	LearningRate float64 `mapstructure:"learning_rate" validate:"gte=0"`
	Epochs       int     `mapstructure:"epochs" validate:"gte=0"`
	L2           float64 `mapstructure:"l2" validate:"gte=0"`
}

// ForestConfig holds bagged tree hyper-parameters
type ForestConfig struct {
	Trees          int `mapstructure:"trees" validate:"gte=0"`
	MaxDepth       int `mapstructure:"max_depth" validate:"gte=0"`
	MinSamplesLeaf int `mapstructure:"min_samples_leaf" validate:"gte=0"`
}

// BoostingConfig holds boosted tree hyper-parameters
type BoostingConfig struct {
	Rounds       int     `mapstructure:"rounds" validate:"gte=0"`
	MaxDepth     int     `mapstructure:"max_depth" validate:"gte=0"`
	LearningRate float64 `mapstructure:"learning_rate" validate:"gte=0"`
}

// ServingConfig controls the prediction adapter
type ServingConfig struct {
	TopFeatures           int `mapstructure:"top_features" validate:"required,gt=0"`
	BatchLimit            int `mapstructure:"batch_limit" validate:"required,gt=0"`
	ReloadIntervalSeconds int `mapstructure:"reload_interval_seconds" validate:"gte=0"`
}

// RetrainingConfig controls the error-driven feedback loop
type RetrainingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Schedule     string `mapstructure:"schedule" validate:"required_if=Enabled true"`
	MinEvaluated int    `mapstructure:"min_evaluated" validate:"required,gt=0"`
	DaysBack     int    `mapstructure:"days_back" validate:"gte=0"`
	Weighting    string `mapstructure:"weighting" validate:"required,weighting"`
	WorstN       int    `mapstructure:"worst_n" validate:"required,gt=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// HealthConfig configures the liveness/readiness server
type HealthConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// ValidSeasonPtr returns the held-out season, or nil when a fractional split is configured.
func (c *Config) ValidSeasonPtr() *int {
	if c.Training.ValidSeason <= 0 {
		return nil
	}
	season := c.Training.ValidSeason
	return &season
}

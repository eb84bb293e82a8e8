package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix         = "MATCHCAST"
	defaultConfigPath = "config/config.yaml"
)

// Load reads and parses the configuration from file and environment variables.
// A .env file in the working directory is loaded first if present, then
// ${VAR} placeholders in the YAML are expanded.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing file is not an error; defaults and environment variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	_ = godotenv.Load()

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// ReloadFromEnv reloads the configuration when MATCHCAST_CONFIG_PATH is set
func ReloadFromEnv(cfg *Config) error {
	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		newCfg, err := Load(envPath)
		if err != nil {
			return err
		}
		*cfg = *newCfg
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "matchcast")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "matchcast")
	v.SetDefault("database.user", "matchcast")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.key_prefix", "matchcast:")

	v.SetDefault("features.form_window", 5)
	v.SetDefault("features.rank_delta_window", 5)
	v.SetDefault("features.h2h_limit", 10)
	v.SetDefault("features.schema_version", "v2")
	v.SetDefault("features.cache_backend", "memory")
	v.SetDefault("features.cache_ttl_minutes", 0)
	v.SetDefault("features.persist_features", true)

	v.SetDefault("training.algorithm", "auto")
	v.SetDefault("training.valid_fraction", 0.2)
	v.SetDefault("training.cv_folds", 5)
	v.SetDefault("training.random_seed", 42)
	v.SetDefault("training.artifact_dir", "artifacts")
	v.SetDefault("training.timeout_minutes", 60)
	v.SetDefault("training.skip_cold_start", true)
	v.SetDefault("training.logistic.learning_rate", 0.1)
	v.SetDefault("training.logistic.epochs", 300)
	v.SetDefault("training.logistic.l2", 0.001)
	v.SetDefault("training.forest.trees", 100)
	v.SetDefault("training.forest.max_depth", 8)
	v.SetDefault("training.forest.min_samples_leaf", 5)
	v.SetDefault("training.boosting.rounds", 100)
	v.SetDefault("training.boosting.max_depth", 3)
	v.SetDefault("training.boosting.learning_rate", 0.1)

	v.SetDefault("serving.top_features", 5)
	v.SetDefault("serving.batch_limit", 500)
	v.SetDefault("serving.reload_interval_seconds", 60)

	v.SetDefault("retraining.enabled", false)
	v.SetDefault("retraining.schedule", "0 4 * * 1")
	v.SetDefault("retraining.min_evaluated", 20)
	v.SetDefault("retraining.days_back", 0)
	v.SetDefault("retraining.weighting", "logloss")
	v.SetDefault("retraining.worst_n", 10)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("health.port", 8080)
}

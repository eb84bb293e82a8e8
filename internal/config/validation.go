package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// Algorithms accepted by the trainer. "auto" cross-validates every family.
var Algorithms = []string{"auto", "logistic", "random_forest", "gradient_boosting"}

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("algorithm", validateAlgorithm)
	_ = v.RegisterValidation("cachebackend", validateCacheBackend)
	_ = v.RegisterValidation("weighting", validateWeighting)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	if err := cv.validator.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	return validateCrossField(cfg)
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateAlgorithm(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	for _, a := range Algorithms {
		if a == name {
			return true
		}
	}
	return false
}

func validateCacheBackend(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "memory", "redis":
		return true
	default:
		return false
	}
}

func validateWeighting(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "logloss", "uniform":
		return true
	default:
		return false
	}
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	if cfg.Features.CacheBackend == "redis" && !cfg.Redis.Enabled {
		return fmt.Errorf("features.cache_backend 'redis' requires redis.enabled")
	}

	if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
		return fmt.Errorf("max_idle_connections cannot exceed max_connections")
	}

	if cfg.Training.ValidSeason > 0 {
		for _, s := range cfg.Training.Seasons {
			if s == cfg.Training.ValidSeason {
				return fmt.Errorf("valid_season %d must not also be a training season", s)
			}
		}
	}

	if cfg.Retraining.Enabled {
		if _, err := cron.ParseStandard(cfg.Retraining.Schedule); err != nil {
			return fmt.Errorf("invalid retraining schedule %q: %w", cfg.Retraining.Schedule, err)
		}
	}

	if cfg.IsProduction() && cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var b strings.Builder
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required", "required_if":
			fmt.Fprintf(&b, "- Field '%s' is required\n", field)
		case "min", "max":
			fmt.Fprintf(&b, "- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			fmt.Fprintf(&b, "- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			fmt.Fprintf(&b, "- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			fmt.Fprintf(&b, "- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "algorithm":
			fmt.Fprintf(&b, "- Field '%s' must be one of: %s\n", field, strings.Join(Algorithms, ", "))
		case "cachebackend":
			fmt.Fprintf(&b, "- Field '%s' must be one of: memory, redis\n", field)
		case "weighting":
			fmt.Fprintf(&b, "- Field '%s' must be one of: logloss, uniform\n", field)
		case "oneof":
			fmt.Fprintf(&b, "- Field '%s' has invalid value '%v'\n", field, value)
		default:
			fmt.Fprintf(&b, "- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", b.String())
}

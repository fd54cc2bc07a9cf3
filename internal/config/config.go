package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"github.com/Simplici0/kalkia/internal/pricing"
)

const (
	defaultDBPath = "./dev.db"
	defaultPort   = "8080"
)

// Config holds application configuration sourced from a .env file and
// environment variables. Environment variables win over the file.
type Config struct {
	Env              string
	Port             string
	DBPath           string
	LogLevel         string
	Currency         string
	Workers          int
	MarginConvention string
	MinDBPerHour     float64
	Defaults         pricing.Settings
}

// IsDev reports whether the app runs in development mode.
func (c Config) IsDev() bool {
	return IsDevEnv(c.Env)
}

// IsDevEnv reports whether an APP_ENV value names a development environment.
// Unset counts as development.
func IsDevEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "dev", "development", "local":
		return true
	}
	return false
}

// Thresholds returns the classifier thresholds with the configured DB per hour floor.
func (c Config) Thresholds() pricing.Thresholds {
	t := pricing.DefaultThresholds()
	t.MinDBPerHour = c.MinDBPerHour
	return t
}

// Load reads .env from the working directory, if present, then the environment.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an error.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg := Config{
		Env:              v.GetString("APP_ENV"),
		Port:             v.GetString("PORT"),
		DBPath:           v.GetString("DB_PATH"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		Currency:         v.GetString("CURRENCY"),
		Workers:          v.GetInt("KALKIA_WORKERS"),
		MarginConvention: v.GetString("KALKIA_MARGIN_CONVENTION"),
		MinDBPerHour:     v.GetFloat64("KALKIA_DB_HOUR_MIN"),
		Defaults: pricing.Settings{
			HourlyRate:             v.GetFloat64("KALKIA_HOURLY_RATE"),
			MarginPercentage:       v.GetFloat64("KALKIA_MARGIN_PERCENT"),
			DiscountPercentage:     v.GetFloat64("KALKIA_DISCOUNT_PERCENT"),
			VATPercentage:          v.GetFloat64("KALKIA_VAT_PERCENT"),
			OverheadPercentage:     v.GetFloat64("KALKIA_OVERHEAD_PERCENT"),
			RiskPercentage:         v.GetFloat64("KALKIA_RISK_PERCENT"),
			IndirectTimePercentage: v.GetFloat64("KALKIA_INDIRECT_TIME_PERCENT"),
			PersonalTimePercentage: v.GetFloat64("KALKIA_PERSONAL_TIME_PERCENT"),
		},
	}

	var err error
	if cfg.Defaults.LaborType, err = pricing.ParseLaborType(strings.TrimSpace(v.GetString("KALKIA_LABOR_TYPE"))); err != nil {
		return Config{}, fmt.Errorf("KALKIA_LABOR_TYPE: %w", err)
	}
	if cfg.Defaults.TimeAdjustment, err = pricing.ParseTimeAdjustment(strings.TrimSpace(v.GetString("KALKIA_TIME_ADJUSTMENT"))); err != nil {
		return Config{}, fmt.Errorf("KALKIA_TIME_ADJUSTMENT: %w", err)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("DB_PATH", defaultDBPath)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CURRENCY", "DKK")
	v.SetDefault("KALKIA_WORKERS", 4)
	v.SetDefault("KALKIA_MARGIN_CONVENTION", pricing.MarginConvention)
	v.SetDefault("KALKIA_DB_HOUR_MIN", pricing.DefaultThresholds().MinDBPerHour)
	v.SetDefault("KALKIA_HOURLY_RATE", 450)
	v.SetDefault("KALKIA_MARGIN_PERCENT", 25)
	v.SetDefault("KALKIA_DISCOUNT_PERCENT", 0)
	v.SetDefault("KALKIA_VAT_PERCENT", 25)
	v.SetDefault("KALKIA_OVERHEAD_PERCENT", 12)
	v.SetDefault("KALKIA_RISK_PERCENT", 2)
	v.SetDefault("KALKIA_INDIRECT_TIME_PERCENT", 0)
	v.SetDefault("KALKIA_PERSONAL_TIME_PERCENT", 0)
	v.SetDefault("KALKIA_LABOR_TYPE", string(pricing.LaborElectrician))
	v.SetDefault("KALKIA_TIME_ADJUSTMENT", string(pricing.TimeNormal))
}

func validate(cfg Config) error {
	if cfg.MarginConvention != pricing.MarginConvention {
		return fmt.Errorf("KALKIA_MARGIN_CONVENTION %q is not supported, use %q", cfg.MarginConvention, pricing.MarginConvention)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("KALKIA_WORKERS must be >= 1, got %d", cfg.Workers)
	}
	if cfg.MinDBPerHour < 0 {
		return fmt.Errorf("KALKIA_DB_HOUR_MIN must be >= 0, got %v", cfg.MinDBPerHour)
	}
	if err := cfg.Defaults.Validate(); err != nil {
		return fmt.Errorf("default settings: %w", err)
	}
	return nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Package config loads server configuration from a config file, the
// environment and defaults, in that order of precedence: environment
// variables override the file, the file overrides defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CRAFT_DATABASE_PATH.
const EnvPrefix = "CRAFT"

// Config is the full server configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// LoggingConfig selects the log level and handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// ResolverConfig bounds crafting resolution.
type ResolverConfig struct {
	MaxCraftAmount    uint32 `mapstructure:"max_craft_amount" validate:"gte=1"`
	DefaultMaxStack   uint32 `mapstructure:"default_max_stack" validate:"gte=1"`
	MaxRecursionDepth int    `mapstructure:"max_recursion_depth" validate:"gte=1,lte=1024"`
	RecursionEnabled  bool   `mapstructure:"recursion_enabled"`
}

// CacheConfig sizes the per-storage result caches. Prewarm publishes the
// available recipe set of every storage at startup.
type CacheConfig struct {
	Size    int           `mapstructure:"size" validate:"gte=1"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Prewarm bool          `mapstructure:"prewarm"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// Load reads configuration. An empty path searches for config.yaml in the
// working directory and ./configs; a missing file is not an error.
func Load(path string) (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// SetDefaults registers the default for every key, which also makes each key
// visible to AutomaticEnv during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "data/crafting/crafting.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("resolver.max_craft_amount", 9999)
	v.SetDefault("resolver.default_max_stack", 9999)
	v.SetDefault("resolver.max_recursion_depth", 64)
	v.SetDefault("resolver.recursion_enabled", true)

	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.prewarm", true)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks cfg against its validation tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		messages := make([]string, 0, len(verrs))
		for _, e := range verrs {
			messages = append(messages, fmt.Sprintf(
				"field '%s' failed validation: %s (value: '%v')",
				e.Namespace(),
				e.Tag(),
				e.Value(),
			))
		}
		return fmt.Errorf("validation failed:\n  %s", strings.Join(messages, "\n  "))
	}
	return nil
}

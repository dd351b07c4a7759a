// Package config loads the hermes command configuration from a file, the environment and a .env
// file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables, e.g. HERMES_DATABASE_URI.
const EnvPrefix = "HERMES"

// Config is the complete hermes command configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// DatabaseConfig describes the connection.
type DatabaseConfig struct {
	// URI is a PostgreSQL connection string or URL.
	URI string `mapstructure:"uri"`

	// ConnectTimeout bounds every dial, including reconnects.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// Markers are extra error messages that mean the connection was lost.
	Markers []string `mapstructure:"markers"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig configures the Prometheus endpoint.  Blank Addr means no endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Read loads the configuration from the file at configPath, if given, overridden by environment
// variables with the prefix.  Variables in a .env file in the working directory are loaded into
// the environment first, without replacing variables that are already set.  Read doesn't
// validate; see Load.
func Read(configPath, envPrefix string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Load reads and validates the configuration.
func Load(configPath, envPrefix string) (*Config, error) {
	cfg, err := Read(configPath, envPrefix)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Every key needs a default so AutomaticEnv can find it when unmarshalling.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.uri", "")
	v.SetDefault("database.connect_timeout", 5*time.Second)
	v.SetDefault("database.markers", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("metrics.addr", "")
}

// Validate returns an error if any required fields are missing or have invalid values.
func Validate(cfg *Config) error {
	if cfg.Database.URI == "" {
		return fmt.Errorf("database.uri is required")
	}

	if cfg.Database.ConnectTimeout < 0 {
		return fmt.Errorf("database.connect_timeout must not be negative")
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, not %q", cfg.Log.Format)
	}

	switch strings.ToLower(cfg.Log.Output) {
	case "stdout", "stderr":
	default:
		return fmt.Errorf("log.output must be stdout or stderr, not %q", cfg.Log.Output)
	}

	return nil
}

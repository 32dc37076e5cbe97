package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the demo server settings.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Shapefile ShapefileConfig `mapstructure:"shapefile"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type ShapefileConfig struct {
	Path     string `mapstructure:"path"`
	Encoding string `mapstructure:"encoding"` // overrides the .cpg file
	Name     string `mapstructure:"name"`     // FlatGeobuf layer name
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// loadConfig reads config.yaml when present and applies SHPSERVE_ environment overrides.
func loadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("shapefile.path", "")
	v.SetDefault("shapefile.encoding", "")
	v.SetDefault("shapefile.name", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional

	// SHPSERVE_SHAPEFILE_PATH → shapefile.path
	v.SetEnvPrefix("SHPSERVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every missing or malformed setting at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if c.Shapefile.Path == "" {
		errs = append(errs, "shapefile.path is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

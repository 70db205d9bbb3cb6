// Package config loads Reflow's ambient configuration with layered
// precedence: built-in defaults, then an optional YAML file, then
// environment variables — the same shape C360Studio-semspec's config
// loader and anasdox-workline's Viper-bound CLI flags both use.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds everything the CLI and server layers need beyond the
// core's pure inputs.
type Config struct {
	LogLevel      string        `yaml:"logLevel"`
	LogFormat     string        `yaml:"logFormat"`
	ServerAddr    string        `yaml:"serverAddr"`
	JWTSecret     string        `yaml:"jwtSecret"`
	APIKey        string        `yaml:"apiKey"`
	WatchDebounce time.Duration `yaml:"watchDebounce"`
	CentersPath   string        `yaml:"centersPath"`
	OrdersPath    string        `yaml:"ordersPath"`
}

// DefaultConfig returns the built-in configuration baseline.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "text",
		ServerAddr:    ":8080",
		WatchDebounce: 500 * time.Millisecond,
	}
}

// Load builds a Config starting from DefaultConfig(), merging a YAML file at
// path if one exists, then letting REFLOW_-prefixed environment variables
// override the result. path may be empty, in which case only defaults
// and environment variables apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else {
			var fromFile Config
			if err := yaml.Unmarshal(data, &fromFile); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", path, err)
			}
			cfg.merge(&fromFile)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("REFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	applyEnvOverrides(cfg, v)

	return cfg, nil
}

func (c *Config) merge(other *Config) {
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.ServerAddr != "" {
		c.ServerAddr = other.ServerAddr
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.APIKey != "" {
		c.APIKey = other.APIKey
	}
	if other.WatchDebounce != 0 {
		c.WatchDebounce = other.WatchDebounce
	}
	if other.CentersPath != "" {
		c.CentersPath = other.CentersPath
	}
	if other.OrdersPath != "" {
		c.OrdersPath = other.OrdersPath
	}
}

func applyEnvOverrides(c *Config, v *viper.Viper) {
	for _, key := range []string{"log_level", "log_format", "server_addr", "jwt_secret", "api_key", "centers_path", "orders_path"} {
		if !v.IsSet(key) {
			continue
		}
		val := v.GetString(key)
		switch key {
		case "log_level":
			c.LogLevel = val
		case "log_format":
			c.LogFormat = val
		case "server_addr":
			c.ServerAddr = val
		case "jwt_secret":
			c.JWTSecret = val
		case "api_key":
			c.APIKey = val
		case "centers_path":
			c.CentersPath = val
		case "orders_path":
			c.OrdersPath = val
		}
	}
	if v.IsSet("watch_debounce") {
		if d := v.GetDuration("watch_debounce"); d > 0 {
			c.WatchDebounce = d
		}
	}
}

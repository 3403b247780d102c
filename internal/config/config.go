// Package config loads the pollagent CLI configuration from a JSON file and POLLAGENT_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultEndpoint        = "http://localhost:4000"
	DefaultPollLimit       = 10
	DefaultPollWaitSeconds = 20
	DefaultMaxConcurrency  = 10
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
)

type Config struct {
	Endpoint          string    `json:"endpoint"`
	APISecret         string    `json:"apiSecret"`
	MachineID         string    `json:"machineId,omitempty"`
	ClusterID         string    `json:"clusterId,omitempty"`
	RetryAfterSeconds int       `json:"retryAfterSeconds"`
	PollLimit         int       `json:"pollLimit"`
	PollWaitSeconds   int       `json:"pollWaitSeconds"`
	MaxConcurrency    int       `json:"maxConcurrency"`
	Log               LogConfig `json:"log"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

func Default() *Config {
	return &Config{
		Endpoint:        DefaultEndpoint,
		PollLimit:       DefaultPollLimit,
		PollWaitSeconds: DefaultPollWaitSeconds,
		MaxConcurrency:  DefaultMaxConcurrency,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Dir is ~/.pollagent.
func Dir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".pollagent")
}

// Path returns POLLAGENT_CONFIG if set, otherwise ~/.pollagent/config.json.
func Path() string {
	if p := os.Getenv("POLLAGENT_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(Dir(), "config.json")
}

// Load reads path (a missing file is not an error), applies environment overrides and fills defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("POLLAGENT_API_SECRET"); v != "" {
		cfg.APISecret = v
	}
	if v := os.Getenv("POLLAGENT_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("POLLAGENT_MACHINE_ID"); v != "" {
		cfg.MachineID = v
	}
	if v := os.Getenv("POLLAGENT_CLUSTER_ID"); v != "" {
		cfg.ClusterID = v
	}
	if err := envInt("POLLAGENT_RETRY_AFTER", &cfg.RetryAfterSeconds); err != nil {
		return nil, err
	}
	if err := envInt("POLLAGENT_POLL_LIMIT", &cfg.PollLimit); err != nil {
		return nil, err
	}
	if err := envInt("POLLAGENT_POLL_WAIT", &cfg.PollWaitSeconds); err != nil {
		return nil, err
	}
	if err := envInt("POLLAGENT_MAX_CONCURRENCY", &cfg.MaxConcurrency); err != nil {
		return nil, err
	}
	if v := os.Getenv("POLLAGENT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("POLLAGENT_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.PollLimit <= 0 {
		cfg.PollLimit = DefaultPollLimit
	}
	if cfg.PollWaitSeconds < 0 {
		cfg.PollWaitSeconds = DefaultPollWaitSeconds
	}
	if cfg.RetryAfterSeconds < 0 {
		cfg.RetryAfterSeconds = 0
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	return cfg, nil
}

// Save writes cfg to path, creating the parent directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *Config) RetryAfter() time.Duration {
	return time.Duration(c.RetryAfterSeconds) * time.Second
}

func (c *Config) PollWait() time.Duration {
	return time.Duration(c.PollWaitSeconds) * time.Second
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = n
	return nil
}

// Package config loads the engine's optional YAML configuration file.
// Security- and environment-sensitive values (database DSN, API auth
// token) are never read from YAML; they come from the environment only,
// following the requireEnv convention used across this repo's binaries.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config holds the settings that are safe to check into a YAML file:
// detection defaults, worker pool sizing, API bind address. Secrets are
// deliberately absent from this struct.
type Config struct {
	Detection struct {
		PfxPeakMinValue   float64 `yaml:"pfx_peak_min_value"`
		CflPeakMinValue   float64 `yaml:"cfl_peak_min_value"`
		MaxNbPeaks        float64 `yaml:"max_nb_peaks"`
		PercentSimilarity float64 `yaml:"percent_similarity"`
		PercentStd        float64 `yaml:"percent_std"`
	} `yaml:"detection"`
	Fitter struct {
		WorkerCount int `yaml:"worker_count"` // 0 means max(1, NumCPU()/2)
	} `yaml:"fitter"`
	API struct {
		ListenAddr     string `yaml:"listen_addr"`
		RateLimitPerIP int    `yaml:"rate_limit_per_ip"`
	} `yaml:"api"`
	Logging struct {
		Level   string `yaml:"level"`
		RunFile string `yaml:"run_file"`
	} `yaml:"logging"`
}

// SetDefaults fills in zero-valued fields with the engine's defaults.
func (c *Config) SetDefaults() {
	if c.Detection.PfxPeakMinValue == 0 {
		c.Detection.PfxPeakMinValue = 10
	}
	if c.Detection.CflPeakMinValue == 0 {
		c.Detection.CflPeakMinValue = 5
	}
	if c.Detection.MaxNbPeaks == 0 {
		c.Detection.MaxNbPeaks = 2
	}
	if c.Detection.PercentSimilarity == 0 {
		c.Detection.PercentSimilarity = 0.9
	}
	if c.Detection.PercentStd == 0 {
		c.Detection.PercentStd = 0.9
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":5339"
	}
	if c.API.RateLimitPerIP == 0 {
		c.API.RateLimitPerIP = 60
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Load reads and parses a YAML config file, applying defaults for
// anything left unset. A missing path is not an error — callers that
// don't pass one run on defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	cfg.SetDefaults()
	return &cfg, nil
}

// RequireEnv reads a required environment variable and exits the process
// if it is not set — database DSNs and API tokens must never silently
// default.
func RequireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		fmt.Fprintf(os.Stderr, "FATAL: required environment variable %s is not set\n", key)
		os.Exit(1)
	}
	return val
}

// GetEnvOrDefault returns the env var value, or fallback if unset.
func GetEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

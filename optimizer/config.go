// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package optimizer

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/go-highway/hyperopt/hwy"
	"github.com/go-highway/hyperopt/hwy/contrib/align"
)

// Config holds the tunable settings of an Optimizer.
//
// Settings are resolved in order: DefaultConfig, then a YAML file
// (LoadConfigFile), then HYPEROPT_* environment variables (ApplyEnv).
//
// Example YAML:
//
//	workers: 8
//	default_strategy: adaptive
//	small_threshold: 1000
//	large_threshold: 100000
//	auto_tune: true
//	min_samples: 5
//	alignment: 64
//	max_tier: avx2
//	profiling: true
//	log_level: info
type Config struct {
	// Workers is the size of the worker pool. 0 means one per logical core.
	Workers int `yaml:"workers"`

	// DefaultStrategy is used by calls that pass no strategy.
	DefaultStrategy Strategy `yaml:"default_strategy"`

	// SmallThreshold is the element count below which Adaptive picks
	// Vectorized: thread dispatch costs more than it saves.
	SmallThreshold int `yaml:"small_threshold"`

	// LargeThreshold is the element count from which Adaptive picks the
	// bandwidth-oriented strategies.
	LargeThreshold int `yaml:"large_threshold"`

	// AutoTune lets Adaptive pick by measured timings per operation and
	// size bucket once every candidate has MinSamples samples.
	AutoTune bool `yaml:"auto_tune"`

	// MinSamples is how many samples a candidate needs before its
	// measured average is trusted.
	MinSamples int `yaml:"min_samples"`

	// Alignment is the byte alignment of buffers from Optimizer.Alloc and
	// the scratch pool.
	Alignment int `yaml:"alignment"`

	// MaxTier caps dispatch at a tier ("scalar", "sse4", "neon", "avx2",
	// "avx512"). Empty means no cap.
	MaxTier string `yaml:"max_tier"`

	// Profiling records a sample for every call.
	Profiling bool `yaml:"profiling"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Workers:         runtime.NumCPU(),
		DefaultStrategy: Adaptive,
		SmallThreshold:  1000,
		LargeThreshold:  100000,
		AutoTune:        true,
		MinSamples:      5,
		Alignment:       align.DefaultAlignment,
		MaxTier:         "",
		Profiling:       true,
		LogLevel:        "info",
	}
}

// LoadConfigFile reads a YAML file over DefaultConfig. A missing file is
// not an error: the defaults are returned.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadConfig is LoadConfigFile followed by ApplyEnv and Validate. An empty
// path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadConfigFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from HYPEROPT_* environment variables:
// HYPEROPT_WORKERS, HYPEROPT_STRATEGY, HYPEROPT_SMALL_THRESHOLD,
// HYPEROPT_LARGE_THRESHOLD, HYPEROPT_AUTO_TUNE, HYPEROPT_MIN_SAMPLES,
// HYPEROPT_ALIGNMENT, HYPEROPT_MAX_TIER, HYPEROPT_PROFILING and
// HYPEROPT_LOG_LEVEL.
func (c *Config) ApplyEnv() error {
	c.Workers = getEnvInt("HYPEROPT_WORKERS", c.Workers)
	if name := getEnv("HYPEROPT_STRATEGY", ""); name != "" {
		s, err := ParseStrategy(name)
		if err != nil {
			return fmt.Errorf("HYPEROPT_STRATEGY: %w", err)
		}
		c.DefaultStrategy = s
	}
	c.SmallThreshold = getEnvInt("HYPEROPT_SMALL_THRESHOLD", c.SmallThreshold)
	c.LargeThreshold = getEnvInt("HYPEROPT_LARGE_THRESHOLD", c.LargeThreshold)
	c.AutoTune = getEnvBool("HYPEROPT_AUTO_TUNE", c.AutoTune)
	c.MinSamples = getEnvInt("HYPEROPT_MIN_SAMPLES", c.MinSamples)
	c.Alignment = getEnvInt("HYPEROPT_ALIGNMENT", c.Alignment)
	c.MaxTier = getEnv("HYPEROPT_MAX_TIER", c.MaxTier)
	c.Profiling = getEnvBool("HYPEROPT_PROFILING", c.Profiling)
	c.LogLevel = getEnv("HYPEROPT_LOG_LEVEL", c.LogLevel)
	return nil
}

// Validate checks the configuration. Every error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: negative workers: %d", ErrInvalidConfig, c.Workers)
	}
	if !c.DefaultStrategy.Valid() {
		return fmt.Errorf("%w: default strategy %d", ErrInvalidConfig, int(c.DefaultStrategy))
	}
	if c.SmallThreshold <= 0 {
		return fmt.Errorf("%w: small threshold must be positive: %d", ErrInvalidConfig, c.SmallThreshold)
	}
	if c.LargeThreshold <= c.SmallThreshold {
		return fmt.Errorf("%w: large threshold %d must exceed small threshold %d",
			ErrInvalidConfig, c.LargeThreshold, c.SmallThreshold)
	}
	if c.AutoTune && !c.Profiling {
		return fmt.Errorf("%w: auto tune reads profiles and needs profiling on", ErrInvalidConfig)
	}
	if c.AutoTune && c.MinSamples <= 0 {
		return fmt.Errorf("%w: min samples must be positive: %d", ErrInvalidConfig, c.MinSamples)
	}
	if c.Alignment < align.MinAlignment || c.Alignment&(c.Alignment-1) != 0 {
		return fmt.Errorf("%w: alignment %d is not a power of two >= %d", ErrInvalidConfig, c.Alignment, align.MinAlignment)
	}
	if c.MaxTier != "" {
		if _, err := hwy.ParseLevel(c.MaxTier); err != nil {
			return fmt.Errorf("%w: max tier: %v", ErrInvalidConfig, err)
		}
	}
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// SlogLevel converts LogLevel for a slog handler.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// workers resolves the pool size.
func (c *Config) workers() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// String returns a compact summary suitable for logging.
func (c *Config) String() string {
	tier := c.MaxTier
	if tier == "" {
		tier = "none"
	}
	return fmt.Sprintf("Config{Workers: %d, Strategy: %s, Thresholds: %d/%d, AutoTune: %v, Alignment: %d, MaxTier: %s}",
		c.workers(), c.DefaultStrategy, c.SmallThreshold, c.LargeThreshold, c.AutoTune, c.Alignment, tier)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

// Package config loads the YAML settings of the agent core. Values left out
// of a file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables of every subsystem.
type Config struct {
	Provider  string `yaml:"provider,omitempty"`
	Model     string `yaml:"model,omitempty"`
	LogLevel  string `yaml:"log_level,omitempty"`
	LogFormat string `yaml:"log_format,omitempty"`

	LoopLimit int `yaml:"loop_limit,omitempty"`
	MaxDepth  int `yaml:"max_depth,omitempty"`

	CriticalFraction     float64        `yaml:"critical_fraction,omitempty"`
	DefaultContextWindow int            `yaml:"default_context_window,omitempty"`
	ContextWindows       map[string]int `yaml:"context_windows,omitempty"`

	KeepRecent   int `yaml:"keep_recent,omitempty"`
	FallbackKeep int `yaml:"fallback_keep,omitempty"`

	FanoutLimit      int `yaml:"fanout_limit,omitempty"`
	MaxResultChars   int `yaml:"max_result_chars,omitempty"`
	MaxParallelTools int `yaml:"max_parallel_tools,omitempty"`

	ReasoningTimeout  time.Duration `yaml:"reasoning_timeout,omitempty"`
	ActionTimeout     time.Duration `yaml:"action_timeout,omitempty"`
	CompactionTimeout time.Duration `yaml:"compaction_timeout,omitempty"`

	RetryAttempts   int           `yaml:"retry_attempts,omitempty"`
	RetryBackoff    time.Duration `yaml:"retry_backoff,omitempty"`
	RetryMaxBackoff time.Duration `yaml:"retry_max_backoff,omitempty"`
}

// Default returns a Config with the built-in defaults.
func Default() Config {
	return Config{
		Provider:             "openai",
		Model:                "gpt-4o-mini",
		LogLevel:             "info",
		LogFormat:            "text",
		LoopLimit:            25,
		MaxDepth:             5,
		CriticalFraction:     0.95,
		DefaultContextWindow: 128_000,
		KeepRecent:           10,
		FallbackKeep:         100,
		FanoutLimit:          10,
		MaxResultChars:       16_000,
		MaxParallelTools:     8,
		ReasoningTimeout:     2 * time.Minute,
		ActionTimeout:        time.Minute,
		CompactionTimeout:    2 * time.Minute,
		RetryAttempts:        3,
		RetryBackoff:         500 * time.Millisecond,
		RetryMaxBackoff:      10 * time.Second,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source == nil {
		return
	}
	mergeString(&c.Provider, source.Provider)
	mergeString(&c.Model, source.Model)
	mergeString(&c.LogLevel, source.LogLevel)
	mergeString(&c.LogFormat, source.LogFormat)

	mergeInt(&c.LoopLimit, source.LoopLimit)
	mergeInt(&c.MaxDepth, source.MaxDepth)
	if source.CriticalFraction > 0 {
		c.CriticalFraction = source.CriticalFraction
	}
	mergeInt(&c.DefaultContextWindow, source.DefaultContextWindow)
	if len(source.ContextWindows) > 0 {
		if c.ContextWindows == nil {
			c.ContextWindows = make(map[string]int, len(source.ContextWindows))
		}
		for k, v := range source.ContextWindows {
			c.ContextWindows[k] = v
		}
	}
	mergeInt(&c.KeepRecent, source.KeepRecent)
	mergeInt(&c.FallbackKeep, source.FallbackKeep)
	mergeInt(&c.FanoutLimit, source.FanoutLimit)
	mergeInt(&c.MaxResultChars, source.MaxResultChars)
	mergeInt(&c.MaxParallelTools, source.MaxParallelTools)

	mergeDuration(&c.ReasoningTimeout, source.ReasoningTimeout)
	mergeDuration(&c.ActionTimeout, source.ActionTimeout)
	mergeDuration(&c.CompactionTimeout, source.CompactionTimeout)

	mergeInt(&c.RetryAttempts, source.RetryAttempts)
	mergeDuration(&c.RetryBackoff, source.RetryBackoff)
	mergeDuration(&c.RetryMaxBackoff, source.RetryMaxBackoff)
}

// Validate reports every out-of-range value.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("provider %q is not supported", c.Provider))
	}
	if c.LoopLimit < 1 {
		errs = append(errs, fmt.Errorf("loop_limit must be at least 1, got %d", c.LoopLimit))
	}
	if c.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("max_depth must be at least 1, got %d", c.MaxDepth))
	}
	if c.CriticalFraction <= 0 || c.CriticalFraction > 1 {
		errs = append(errs, fmt.Errorf("critical_fraction must be in (0, 1], got %g", c.CriticalFraction))
	}
	for id, w := range c.ContextWindows {
		if w <= 0 {
			errs = append(errs, fmt.Errorf("context window of %q must be positive, got %d", id, w))
		}
	}
	if c.KeepRecent < 1 {
		errs = append(errs, fmt.Errorf("keep_recent must be at least 1, got %d", c.KeepRecent))
	}
	if c.FallbackKeep < 1 {
		errs = append(errs, fmt.Errorf("fallback_keep must be at least 1, got %d", c.FallbackKeep))
	}
	if c.RetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("retry_attempts must not be negative, got %d", c.RetryAttempts))
	}
	if c.RetryMaxBackoff > 0 && c.RetryMaxBackoff < c.RetryBackoff {
		errs = append(errs, errors.New("retry_max_backoff must not be below retry_backoff"))
	}
	return errors.Join(errs...)
}

// Load reads a YAML file, merges it over the defaults and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for in-memory YAML.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func mergeDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

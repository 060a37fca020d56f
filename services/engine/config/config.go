// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the engine's runtime settings.
//
// Settings come from a YAML file; any field omitted in the file keeps
// its default. Validation runs after merging so a partial file cannot
// produce an inconsistent configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can spell values like
// "30s" or "1h".
type Duration time.Duration

// UnmarshalYAML parses Go duration syntax.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders Go duration syntax.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds every tunable of the execution engine.
type Config struct {
	// Security limits enforced by the monitor and interpreter.
	ViolationThreshold int64 `yaml:"violation_threshold" validate:"gt=0"`
	InstructionCeiling int64 `yaml:"instruction_ceiling" validate:"gt=0"`
	MemoryLimit        int   `yaml:"memory_limit" validate:"gt=0"`

	// Trust policy knobs.
	TrustThreshold      float64 `yaml:"trust_threshold" validate:"gte=0"`
	OptimizationEnabled bool    `yaml:"optimization_enabled"`
	TrustStorePath      string  `yaml:"trust_store_path"`

	// Code cache sizing.
	CacheMaxSize int      `yaml:"cache_max_size" validate:"gt=0"`
	CacheMaxAge  Duration `yaml:"cache_max_age" validate:"gt=0"`

	// Rollback behavior.
	RollbackEnabled     bool `yaml:"rollback_enabled"`
	AutoTrustRevocation bool `yaml:"auto_trust_revocation"`

	// HTTP surface.
	ListenAddr string `yaml:"listen_addr" validate:"required"`

	// Logging. One of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// Default returns the engine's built-in settings.
func Default() Config {
	return Config{
		ViolationThreshold:  1_000,
		InstructionCeiling:  10_000,
		MemoryLimit:         100,
		TrustThreshold:      1.0,
		OptimizationEnabled: true,
		TrustStorePath:      "",
		CacheMaxSize:        100,
		CacheMaxAge:         Duration(time.Hour),
		RollbackEnabled:     true,
		AutoTrustRevocation: true,
		ListenAddr:          ":8089",
		LogLevel:            "info",
	}
}

// Load reads path, merges it over the defaults, and validates the
// result. An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	return validator.New().Struct(c)
}

// SlogLevel maps LogLevel to its slog equivalent. Unknown values fall
// back to info; Validate rejects them earlier in normal operation.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

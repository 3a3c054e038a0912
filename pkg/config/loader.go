// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	werrors "github.com/stints-app/cache-worker/pkg/errors"
)

const (
	// EnvPrefix is the prefix for all environment variables.
	EnvPrefix = "CACHE_WORKER"
	// ConfigPathEnv overrides the project config file location.
	ConfigPathEnv = EnvPrefix + "_CONFIG"
	// ProjectConfigFile is the project-level config file name.
	ProjectConfigFile = ".cache-worker.yaml"
	// GlobalConfigDir is the global config directory name.
	GlobalConfigDir = ".cache-worker"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
)

// Loader loads configuration from files and environment.
type Loader struct {
	projectRoot string
	configPath  string
	skipGlobal  bool
	environ     map[string]string
}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// WithProjectRoot sets the project root directory.
func (l *Loader) WithProjectRoot(root string) *Loader {
	l.projectRoot = root
	return l
}

// WithConfigPath sets an explicit project config file, which must exist.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvironment replaces the process environment used for overrides.
func (l *Loader) WithEnvironment(environ map[string]string) *Loader {
	l.environ = environ
	return l
}

// SkipGlobal skips loading global config.
func (l *Loader) SkipGlobal() *Loader {
	l.skipGlobal = true
	return l
}

// Load loads configuration with full precedence order:
// 1. Defaults
// 2. Global Config ($HOME/.cache-worker/config.yaml)
// 3. Project Config (./.cache-worker.yaml or the explicit path)
// 4. Environment Variables (CACHE_WORKER_*)
//
// Missing global and project files are ignored; unreadable or malformed
// ones are errors. The result is validated.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if !l.skipGlobal {
		if err := loadInto(cfg, GetDefaultConfigPath(), true); err != nil {
			return nil, err
		}
	}

	if l.configPath != "" {
		if err := loadInto(cfg, l.configPath, false); err != nil {
			return nil, err
		}
	} else if err := loadInto(cfg, GetProjectConfigPath(l.projectRoot), true); err != nil {
		return nil, err
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := NewValidator().Validate(cfg); err != nil {
		return nil, werrors.ConfigError("config validation failed", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path on top of defaults.
func (l *Loader) LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadInto(cfg, path, false); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load loads and validates the config file at path, with env overrides.
func Load(path string) (*Config, error) {
	return NewLoader().SkipGlobal().WithConfigPath(path).Load()
}

// LoadFromEnv loads config from the path in CACHE_WORKER_CONFIG when set,
// otherwise from the default locations.
func LoadFromEnv() (*Config, error) {
	l := NewLoader()
	if path := os.Getenv(ConfigPathEnv); path != "" {
		l.WithConfigPath(path)
	}
	return l.Load()
}

// loadInto decodes the YAML file at path over cfg. Keys absent from the file
// keep their current values.
func loadInto(cfg *Config, path string, optional bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &ConfigError{Path: path, Err: err}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return &ConfigError{Path: path, Err: err}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
// Format: CACHE_WORKER_SECTION__KEY=value
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	environ := l.environ
	if environ == nil {
		environ = GetEnvConfig()
	}
	opts := env.Options{Prefix: EnvPrefix + "_", Environment: environ}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return &ConfigError{Field: "env", Err: err}
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Path  string
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return "config error in " + e.Path + ": " + e.Err.Error()
	}
	if e.Field != "" {
		return "config error for " + e.Field + ": " + e.Err.Error()
	}
	return "config error: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// FindConfigPaths returns all config file paths in precedence order.
func FindConfigPaths(projectRoot string) []string {
	paths := []string{}

	if global := GetDefaultConfigPath(); global != "" {
		if _, err := os.Stat(global); err == nil {
			paths = append(paths, global)
		}
	}

	projectPath := GetProjectConfigPath(projectRoot)
	if _, err := os.Stat(projectPath); err == nil {
		paths = append(paths, projectPath)
	}

	return paths
}

// GetEnvConfig returns all environment variables that start with CACHE_WORKER_.
func GetEnvConfig() map[string]string {
	result := make(map[string]string)

	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, EnvPrefix+"_") {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) == 2 {
				result[parts[0]] = parts[1]
			}
		}
	}

	return result
}

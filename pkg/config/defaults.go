// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
)

const (
	// DefaultCacheName is the cache generation shipped with this release.
	DefaultCacheName = "muslim-stints-v1"
	// DefaultControlPrefix is the path prefix of the control endpoints.
	DefaultControlPrefix = "/__worker"
)

// DefaultConfig returns the default configuration.
// These values are used when no config file is present.
func DefaultConfig() *Config {
	return &Config{
		Worker: DefaultWorkerConfig(),
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   GetDefaultStorePath(),
		},
		Proxy: ProxyConfig{
			Listen:        ":8080",
			Upstream:      "http://localhost:3000",
			ControlPrefix: DefaultControlPrefix,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "cache-worker",
		},
		Global: GlobalConfig{
			LogLevel: "info",
		},
	}
}

// DefaultWorkerConfig returns the default caching policy.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		CacheName:        DefaultCacheName,
		DevMode:          false,
		PassthroughHosts: []string{"localhost"},
		StaticSuffixes:   []string{".js", ".css", ".html"},
	}
}

// GetDefaultStorePath returns the default SQLite database path.
func GetDefaultStorePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, GlobalConfigDir, "cache.db")
}

// GetDefaultConfigPath returns the default global config file path, or ""
// when the home directory is unknown.
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, GlobalConfigDir, GlobalConfigFile)
}

// GetProjectConfigPath returns the project config file path.
func GetProjectConfigPath(projectRoot string) string {
	if projectRoot == "" {
		projectRoot = "."
	}
	return filepath.Join(projectRoot, ProjectConfigFile)
}

// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package config provides configuration management for cache-worker.
//
// Configuration Loading Order (later overrides earlier):
// 1. Defaults (hardcoded)
// 2. Global Config: $HOME/.cache-worker/config.yaml
// 3. Project Config: ./.cache-worker.yaml
// 4. Environment Variables: CACHE_WORKER_*
package config

import (
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Worker    WorkerConfig    `yaml:"worker" envPrefix:"WORKER__"`
	Store     StoreConfig     `yaml:"store" envPrefix:"STORE__"`
	Proxy     ProxyConfig     `yaml:"proxy" envPrefix:"PROXY__"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY__"`
	Global    GlobalConfig    `yaml:"global" envPrefix:"GLOBAL__"`
}

// WorkerConfig contains the caching policy.
type WorkerConfig struct {
	// CacheName is the current cache generation; every other is stale.
	CacheName string `yaml:"cache_name" env:"CACHE_NAME"`
	// DevMode forces network-first passthrough for every request and
	// skips the waiting phase on install.
	DevMode bool `yaml:"dev_mode" env:"DEV_MODE"`
	// PassthroughHosts are host substrings that always go network first.
	PassthroughHosts []string `yaml:"passthrough_hosts" env:"PASSTHROUGH_HOSTS" envSeparator:","`
	// StaticSuffixes are URL substrings marking cacheable static assets.
	StaticSuffixes []string `yaml:"static_suffixes" env:"STATIC_SUFFIXES" envSeparator:","`
	// Precache lists URLs stored in the current generation during install.
	Precache []string `yaml:"precache,omitempty" env:"PRECACHE" envSeparator:","`
}

// StoreConfig selects the cache storage backend.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"` // memory, sqlite
	Path   string `yaml:"path" env:"PATH"`     // SQLite database file
}

// ProxyConfig contains the HTTP host settings.
type ProxyConfig struct {
	Listen        string        `yaml:"listen" env:"LISTEN"`
	Upstream      string        `yaml:"upstream" env:"UPSTREAM"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT"`
	ControlPrefix string        `yaml:"control_prefix" env:"CONTROL_PREFIX"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	TracingEnabled bool   `yaml:"tracing_enabled" env:"TRACING_ENABLED"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName    string `yaml:"service_name" env:"SERVICE_NAME"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"` // debug, info, warn, error
}

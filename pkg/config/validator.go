// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validator validates configuration.
type Validator struct{}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates a configuration.
func (v *Validator) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := v.ValidateWorker(&cfg.Worker); err != nil {
		return err
	}
	if err := v.ValidateStore(&cfg.Store); err != nil {
		return err
	}
	if err := v.ValidateProxy(&cfg.Proxy); err != nil {
		return err
	}
	if err := v.ValidateGlobal(&cfg.Global); err != nil {
		return err
	}
	return nil
}

// ValidateWorker validates the caching policy.
func (v *Validator) ValidateWorker(cfg *WorkerConfig) error {
	if strings.TrimSpace(cfg.CacheName) == "" {
		return &ValidationError{
			Field:   "worker.cache_name",
			Message: "must not be empty",
		}
	}
	for i, s := range cfg.StaticSuffixes {
		if s == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("worker.static_suffixes[%d]", i),
				Message: "must not be empty",
			}
		}
	}
	for i, h := range cfg.PassthroughHosts {
		if h == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("worker.passthrough_hosts[%d]", i),
				Message: "must not be empty",
			}
		}
	}
	for i, raw := range cfg.Precache {
		if _, err := url.Parse(raw); err != nil || raw == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("worker.precache[%d]", i),
				Value:   raw,
				Message: "must be a valid URL",
			}
		}
	}
	return nil
}

// ValidateStore validates the storage backend selection.
func (v *Validator) ValidateStore(cfg *StoreConfig) error {
	validDrivers := []string{"memory", "sqlite"}
	if !containsFold(validDrivers, cfg.Driver) {
		return &ValidationError{
			Field:   "store.driver",
			Value:   cfg.Driver,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validDrivers, ", ")),
		}
	}
	if strings.EqualFold(cfg.Driver, "sqlite") && strings.TrimSpace(cfg.Path) == "" {
		return &ValidationError{
			Field:   "store.path",
			Message: "is required for the sqlite driver",
		}
	}
	return nil
}

// ValidateProxy validates the HTTP host settings.
func (v *Validator) ValidateProxy(cfg *ProxyConfig) error {
	u, err := url.Parse(cfg.Upstream)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{
			Field:   "proxy.upstream",
			Value:   cfg.Upstream,
			Message: "must be an absolute http or https URL",
		}
	}
	if cfg.FetchTimeout < 0 {
		return &ValidationError{
			Field:   "proxy.fetch_timeout",
			Value:   cfg.FetchTimeout,
			Message: "must be non-negative",
		}
	}
	if !strings.HasPrefix(cfg.ControlPrefix, "/") {
		return &ValidationError{
			Field:   "proxy.control_prefix",
			Value:   cfg.ControlPrefix,
			Message: "must start with /",
		}
	}
	return nil
}

// ValidateGlobal validates global configuration.
func (v *Validator) ValidateGlobal(cfg *GlobalConfig) error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if cfg.LogLevel != "" && !containsFold(validLogLevels, cfg.LogLevel) {
		return &ValidationError{
			Field:   "global.log_level",
			Value:   cfg.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLogLevels, ", ")),
		}
	}
	return nil
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation error for %s: %s (got: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

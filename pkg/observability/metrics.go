// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package observability

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records worker counters. Every counter is reported to the
// OpenTelemetry meter and mirrored locally for Snapshot.
type Metrics struct {
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
	networkFailures  metric.Int64Counter
	cacheWrites      metric.Int64Counter
	writeFailures    metric.Int64Counter
	generationsFreed metric.Int64Counter

	hits, misses, failures, writes, writeErrs, freed atomic.Int64
}

// Snapshot is a point-in-time copy of the local counters.
type Snapshot struct {
	CacheHits        int64 `json:"cache_hits"`
	CacheMisses      int64 `json:"cache_misses"`
	NetworkFailures  int64 `json:"network_failures"`
	CacheWrites      int64 `json:"cache_writes"`
	WriteFailures    int64 `json:"write_failures"`
	GenerationsFreed int64 `json:"generations_freed"`
}

// NewMetrics creates a metrics collector on the global meter provider.
func NewMetrics() *Metrics {
	return NewMetricsWithMeter(otel.Meter(InstrumentationName))
}

// NewMetricsWithMeter creates a metrics collector on the given meter.
// Instrument creation errors leave that counter local-only.
func NewMetricsWithMeter(meter metric.Meter) *Metrics {
	m := &Metrics{}
	m.cacheHits, _ = meter.Int64Counter("cache_worker.cache.hits",
		metric.WithDescription("Fallback lookups that found a stored response"))
	m.cacheMisses, _ = meter.Int64Counter("cache_worker.cache.misses",
		metric.WithDescription("Fallback lookups that found nothing"))
	m.networkFailures, _ = meter.Int64Counter("cache_worker.network.failures",
		metric.WithDescription("Fetches that failed at the transport level"))
	m.cacheWrites, _ = meter.Int64Counter("cache_worker.cache.writes",
		metric.WithDescription("Responses written to the current generation"))
	m.writeFailures, _ = meter.Int64Counter("cache_worker.cache.write_failures",
		metric.WithDescription("Detached cache writes that failed"))
	m.generationsFreed, _ = meter.Int64Counter("cache_worker.generations.deleted",
		metric.WithDescription("Cache generations deleted"))
	return m
}

// RecordCacheHit records the outcome of a cache lookup.
func (m *Metrics) RecordCacheHit(ctx context.Context, hit bool, route string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("route", route))
	if hit {
		m.hits.Add(1)
		add(ctx, m.cacheHits, attrs)
		return
	}
	m.misses.Add(1)
	add(ctx, m.cacheMisses, attrs)
}

// RecordNetworkFailure records a failed fetch.
func (m *Metrics) RecordNetworkFailure(ctx context.Context, route string) {
	if m == nil {
		return
	}
	m.failures.Add(1)
	add(ctx, m.networkFailures, metric.WithAttributes(attribute.String("route", route)))
}

// RecordCacheWrite records a detached write outcome.
func (m *Metrics) RecordCacheWrite(ctx context.Context, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.writeErrs.Add(1)
		add(ctx, m.writeFailures)
		return
	}
	m.writes.Add(1)
	add(ctx, m.cacheWrites)
}

// RecordGenerationsDeleted records n deleted generations.
func (m *Metrics) RecordGenerationsDeleted(ctx context.Context, n int, reason string) {
	if m == nil || n <= 0 {
		return
	}
	m.freed.Add(int64(n))
	if m.generationsFreed != nil {
		m.generationsFreed.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", reason)))
	}
}

// Snapshot returns the local counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		CacheHits:        m.hits.Load(),
		CacheMisses:      m.misses.Load(),
		NetworkFailures:  m.failures.Load(),
		CacheWrites:      m.writes.Load(),
		WriteFailures:    m.writeErrs.Load(),
		GenerationsFreed: m.freed.Load(),
	}
}

func add(ctx context.Context, c metric.Int64Counter, opts ...metric.AddOption) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, opts...)
}

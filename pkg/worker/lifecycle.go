// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stints-app/cache-worker/pkg/cache"
	"github.com/stints-app/cache-worker/pkg/errors"
	"github.com/stints-app/cache-worker/pkg/fetch"
	"github.com/stints-app/cache-worker/pkg/observability"
)

// State represents the worker lifecycle state.
type State int

const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	default:
		return "unknown"
	}
}

// Lifecycle installs and activates one worker version.
type Lifecycle struct {
	mu          sync.Mutex
	state       State
	skipWaiting bool

	id        string
	cacheName string
	devMode   bool
	precache  []string

	storage cache.Storage
	fetcher fetch.Fetcher
	clients ClientRegistry

	logger  observability.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// LifecycleOptions configures a Lifecycle.
type LifecycleOptions struct {
	// ID identifies this worker version as a client controller.
	ID        string
	CacheName string
	DevMode   bool
	// Precache URLs are fetched and stored during install.
	Precache []string
	Storage  cache.Storage
	Fetcher  fetch.Fetcher
	Clients  ClientRegistry
	Logger   observability.Logger
	Metrics  *observability.Metrics
}

// NewLifecycle creates a Lifecycle in the parsed state.
func NewLifecycle(opts LifecycleOptions) *Lifecycle {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Lifecycle{
		state:     StateParsed,
		id:        opts.ID,
		cacheName: opts.CacheName,
		devMode:   opts.DevMode,
		precache:  opts.Precache,
		storage:   opts.Storage,
		fetcher:   opts.Fetcher,
		clients:   opts.Clients,
		logger:    logger.With(observability.String("component", "lifecycle")),
		metrics:   opts.Metrics,
		tracer:    observability.Tracer(),
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Install runs the install handler. In dev mode, or when SkipWaiting was
// requested while installing, the worker activates before Install returns;
// otherwise it is left waiting in StateInstalled.
func (l *Lifecycle) Install(ctx context.Context) error {
	l.mu.Lock()
	if l.state != StateParsed {
		state := l.state
		l.mu.Unlock()
		return errors.LifecycleError(fmt.Sprintf("cannot install from state %s", state), nil)
	}
	l.state = StateInstalling
	l.mu.Unlock()

	l.logger.Info("Service Worker installing...", observability.String("cache", l.cacheName))

	ctx, span := l.tracer.Start(ctx, "worker.install")
	defer span.End()

	if err := l.precacheAll(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "precache failed")
		l.setState(StateRedundant)
		return err
	}

	l.mu.Lock()
	l.state = StateInstalled
	skip := l.devMode || l.skipWaiting
	l.mu.Unlock()

	if skip {
		return l.Activate(ctx)
	}
	return nil
}

func (l *Lifecycle) precacheAll(ctx context.Context) error {
	if len(l.precache) == 0 {
		return nil
	}
	gen, err := l.storage.Open(ctx, l.cacheName)
	if err != nil {
		return errors.StorageError("open current generation", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, raw := range l.precache {
		raw := raw
		g.Go(func() error {
			req, err := fetch.NewRequest(raw)
			if err != nil {
				return errors.ValidationError("precache url "+raw, err)
			}
			resp, err := l.fetcher.Fetch(gctx, req.Clone())
			if err != nil {
				return err
			}
			if !Cacheable(resp) {
				return errors.NetworkError(fmt.Sprintf("precache %s: %s response with status %d is not cacheable", raw, resp.Type, resp.Status), nil).
					WithContext("url", raw).
					WithContext("status", resp.Status).
					WithContext("type", string(resp.Type))
			}
			if err := gen.Put(gctx, req, resp.Clone()); err != nil {
				return errors.StorageError("precache "+raw, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Activate runs the activate handler: every generation other than the
// current one is deleted concurrently, then all open clients are claimed.
//
// A deletion that fails or finds nothing is treated as already absent.
// Only a failure to list generations fails the handler; the worker is still
// considered active in that case, but no clients are claimed.
func (l *Lifecycle) Activate(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case StateActivating, StateActivated:
		l.mu.Unlock()
		return nil
	case StateInstalled:
		l.state = StateActivating
		l.mu.Unlock()
	default:
		state := l.state
		l.mu.Unlock()
		return errors.LifecycleError(fmt.Sprintf("cannot activate from state %s", state), nil)
	}
	defer l.setState(StateActivated)

	l.logger.Info("Service Worker activating...")

	ctx, span := l.tracer.Start(ctx, "worker.activate",
		trace.WithAttributes(attribute.String("cache.current", l.cacheName)))
	defer span.End()

	names, err := l.storage.Keys(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list generations")
		return errors.StorageError("list cache generations", err)
	}

	var (
		g       errgroup.Group
		deleted atomic.Int32
	)
	for _, name := range names {
		if name == l.cacheName {
			continue
		}
		name := name
		g.Go(func() error {
			l.logger.Info("Deleting cache", observability.String("cache", name))
			ok, err := l.storage.Delete(ctx, name)
			if err != nil || !ok {
				l.logger.Debug("stale generation treated as absent",
					observability.String("cache", name),
					observability.Err(err))
				return nil
			}
			deleted.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	n := int(deleted.Load())
	l.metrics.RecordGenerationsDeleted(ctx, n, "activate")
	span.SetAttributes(attribute.Int("cache.deleted", n))

	if l.clients == nil {
		return nil
	}
	claimed, err := l.clients.Claim(ctx, l.id)
	if err != nil {
		return fmt.Errorf("claim clients: %w", err)
	}
	l.logger.Info("clients claimed", observability.Int("clients", claimed))
	return nil
}

// SkipWaiting moves a waiting worker to activation now. While installing,
// the request is remembered and honoured once install completes. Once
// activating or active it does nothing.
func (l *Lifecycle) SkipWaiting(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case StateParsed, StateInstalling:
		l.skipWaiting = true
		l.mu.Unlock()
		return nil
	case StateInstalled:
		l.mu.Unlock()
		return l.Activate(ctx)
	default:
		l.mu.Unlock()
		return nil
	}
}

func (l *Lifecycle) setState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
}

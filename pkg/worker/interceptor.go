// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package worker

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stints-app/cache-worker/pkg/cache"
	"github.com/stints-app/cache-worker/pkg/errors"
	"github.com/stints-app/cache-worker/pkg/fetch"
	"github.com/stints-app/cache-worker/pkg/observability"
)

// Result is the interceptor's answer to one fetch event.
type Result struct {
	// Handled is false when the interceptor declined; the host must then
	// send the request down its default network path.
	Handled bool
	Route   Route
	Action  Action
	// Response is what the client receives. With Action ActionServeCache it
	// may be nil, meaning the cache had nothing.
	Response *fetch.Response
	// WriteBack reports that a cache write was started in the background.
	WriteBack bool
}

// Interceptor applies the routing policy to fetch events.
type Interceptor struct {
	policy    Policy
	cacheName string
	storage   cache.Storage
	fetcher   fetch.Fetcher
	tasks     *Detached
	logger    observability.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer
}

// InterceptorOptions configures an Interceptor.
type InterceptorOptions struct {
	Policy    Policy
	CacheName string
	Storage   cache.Storage
	Fetcher   fetch.Fetcher
	// Tasks runs cache writes. A private runner is created when nil.
	Tasks   *Detached
	Logger  observability.Logger
	Metrics *observability.Metrics
}

// NewInterceptor creates an Interceptor.
func NewInterceptor(opts InterceptorOptions) *Interceptor {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	tasks := opts.Tasks
	if tasks == nil {
		tasks = NewDetached(0, logger)
	}
	return &Interceptor{
		policy:    opts.Policy,
		cacheName: opts.CacheName,
		storage:   opts.Storage,
		fetcher:   opts.Fetcher,
		tasks:     tasks,
		logger:    logger.With(observability.String("component", "interceptor")),
		metrics:   opts.Metrics,
		tracer:    observability.Tracer(),
	}
}

// Policy returns the routing policy in use.
func (i *Interceptor) Policy() Policy {
	return i.policy
}

// HandleFetch routes one request.
//
// The returned error is a failed load for the client: on passthrough it is
// the network error when the cache fallback also missed; on either route it
// is a storage error from the fallback lookup. A static-asset miss after a
// network failure is not an error: the Result carries a nil Response.
func (i *Interceptor) HandleFetch(ctx context.Context, req *fetch.Request) (Result, error) {
	route := i.policy.Route(req)
	if route == RouteIgnore {
		return Result{Route: route, Action: ActionIgnore}, nil
	}

	ctx, span := i.tracer.Start(ctx, "worker.fetch",
		trace.WithAttributes(
			attribute.String("route", route.String()),
			attribute.String("url.full", req.String()),
		))
	defer span.End()

	resp, netErr := i.fetcher.Fetch(ctx, req.Clone())
	if netErr == nil && resp == nil {
		netErr = errors.NetworkError("fetch returned no response", nil)
	}
	if netErr != nil {
		i.metrics.RecordNetworkFailure(ctx, route.String())
		span.RecordError(netErr)
	}

	d := Decide(route, resp, netErr)
	res := Result{Handled: true, Route: route, Action: d.Action}
	span.SetAttributes(attribute.String("action", d.Action.String()))

	switch d.Action {
	case ActionServeNetwork:
		res.Response = resp
		// Only GET requests can be cache keys.
		if d.WriteBack && cache.Cacheable(req) {
			res.WriteBack = i.writeBack(ctx, req, resp)
		}
		return res, nil

	case ActionServeCache:
		cached, err := i.lookup(ctx, req)
		if err != nil {
			return res, err
		}
		i.metrics.RecordCacheHit(ctx, cached != nil, route.String())
		res.Response = cached
		if cached == nil && route == RoutePassthrough {
			i.logger.Debug("network and cache both missed",
				observability.String("url", req.String()),
				observability.Err(netErr))
			return res, netErr
		}
		return res, nil
	}
	return res, nil
}

func (i *Interceptor) lookup(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	gen, err := i.storage.Open(ctx, i.cacheName)
	if err != nil {
		return nil, errors.StorageError("open "+i.cacheName, err)
	}
	resp, err := gen.Match(ctx, req)
	if err != nil {
		return nil, errors.StorageError("match "+req.String(), err)
	}
	return resp, nil
}

// writeBack stores a copy of resp in the current generation without
// waiting for the write. The copy is taken before returning so the caller
// may hand resp to the client straight away.
func (i *Interceptor) writeBack(ctx context.Context, req *fetch.Request, resp *fetch.Response) bool {
	key := req.Clone()
	toCache := resp.Clone()
	return i.tasks.Go(ctx, "cache-put", func(ctx context.Context) error {
		gen, err := i.storage.Open(ctx, i.cacheName)
		if err == nil {
			err = gen.Put(ctx, key, toCache)
		}
		i.metrics.RecordCacheWrite(ctx, err)
		if err != nil {
			return errors.StorageError("put "+key.String(), err)
		}
		return nil
	})
}

// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package worker implements the cache controller: the request routing
// policy, the install/activate lifecycle and the control channel, behind a
// single event dispatcher.
package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/stints-app/cache-worker/pkg/cache"
	"github.com/stints-app/cache-worker/pkg/errors"
	"github.com/stints-app/cache-worker/pkg/fetch"
	"github.com/stints-app/cache-worker/pkg/observability"
)

// EventKind names an event delivered by the host.
type EventKind string

const (
	EventInstall  EventKind = "install"
	EventActivate EventKind = "activate"
	EventFetch    EventKind = "fetch"
	EventMessage  EventKind = "message"
)

// Event is one host event. Request is set for fetch events, Message for
// message events. ClientID names the client a fetch or message came from;
// it is empty for navigations.
type Event struct {
	Kind     EventKind
	Request  *fetch.Request
	Message  *Message
	ClientID string
}

// Options configures a Worker.
type Options struct {
	CacheName string
	Policy    Policy
	Precache  []string

	Storage cache.Storage
	Fetcher fetch.Fetcher
	// Clients is the registry shared with the host. A private one is
	// created when nil.
	Clients *Clients
	// Tasks runs detached cache writes. A private runner is created when nil.
	Tasks *Detached

	Logger  observability.Logger
	Metrics *observability.Metrics
}

// Worker is one version of the cache controller.
type Worker struct {
	id          string
	cacheName   string
	clients     *Clients
	tasks       *Detached
	lifecycle   *Lifecycle
	interceptor *Interceptor
	control     *ControlChannel
	logger      observability.Logger
}

// New creates a worker in the parsed state.
func New(opts Options) (*Worker, error) {
	if opts.CacheName == "" {
		return nil, errors.ValidationError("cache name is required", nil)
	}
	if opts.Storage == nil {
		return nil, errors.ValidationError("cache storage is required", nil)
	}
	if opts.Fetcher == nil {
		return nil, errors.ValidationError("fetcher is required", nil)
	}

	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	clients := opts.Clients
	if clients == nil {
		clients = NewClients()
	}
	tasks := opts.Tasks
	if tasks == nil {
		tasks = NewDetached(0, logger)
	}

	id := uuid.New().String()
	logger = logger.With(observability.String("worker", id))

	lifecycle := NewLifecycle(LifecycleOptions{
		ID:        id,
		CacheName: opts.CacheName,
		DevMode:   opts.Policy.DevMode,
		Precache:  opts.Precache,
		Storage:   opts.Storage,
		Fetcher:   opts.Fetcher,
		Clients:   clients,
		Logger:    logger,
		Metrics:   opts.Metrics,
	})

	return &Worker{
		id:        id,
		cacheName: opts.CacheName,
		clients:   clients,
		tasks:     tasks,
		lifecycle: lifecycle,
		interceptor: NewInterceptor(InterceptorOptions{
			Policy:    opts.Policy,
			CacheName: opts.CacheName,
			Storage:   opts.Storage,
			Fetcher:   opts.Fetcher,
			Tasks:     tasks,
			Logger:    logger,
			Metrics:   opts.Metrics,
		}),
		control: NewControlChannel(lifecycle, opts.Storage, logger, opts.Metrics),
		logger:  logger,
	}, nil
}

// ID returns the controller ID of this worker version.
func (w *Worker) ID() string { return w.id }

// CacheName returns the current generation name.
func (w *Worker) CacheName() string { return w.cacheName }

// State returns the lifecycle state.
func (w *Worker) State() State { return w.lifecycle.State() }

// Clients returns the client registry.
func (w *Worker) Clients() *Clients { return w.clients }

// Tasks returns the detached task runner.
func (w *Worker) Tasks() *Detached { return w.tasks }

// Dispatch delivers one event. The Result is meaningful for fetch events
// only.
//
// Fetch events reach the interceptor only once the worker is active and,
// for requests from a known client, only if this worker controls it.
func (w *Worker) Dispatch(ctx context.Context, ev Event) (Result, error) {
	switch ev.Kind {
	case EventInstall:
		return Result{}, w.lifecycle.Install(ctx)
	case EventActivate:
		return Result{}, w.lifecycle.Activate(ctx)
	case EventFetch:
		if !w.controls(ev.ClientID) {
			return Result{Route: RouteIgnore, Action: ActionIgnore}, nil
		}
		return w.interceptor.HandleFetch(ctx, ev.Request)
	case EventMessage:
		return Result{}, w.control.HandleMessage(ctx, ev.Message)
	default:
		return Result{}, errors.ValidationError(fmt.Sprintf("unknown event kind %q", ev.Kind), nil)
	}
}

func (w *Worker) controls(clientID string) bool {
	if w.lifecycle.State() != StateActivated {
		return false
	}
	if clientID == "" {
		return true
	}
	cl, ok := w.clients.Get(clientID)
	if !ok {
		return true
	}
	return cl.Controller == w.id
}

// Close waits for pending detached writes and stops accepting new ones.
func (w *Worker) Close() {
	w.tasks.Close()
}

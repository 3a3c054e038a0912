// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package cache provides named cache generations of request/response pairs.
package cache

import (
	"context"
	"time"

	"github.com/stints-app/cache-worker/pkg/fetch"
)

// Storage holds every cache generation known to the worker.
// A generation comes into existence on its first Put; Open never creates
// anything by itself.
type Storage interface {
	// Keys lists generation names in creation order.
	Keys(ctx context.Context) ([]string, error)
	// Open returns a handle on the named generation.
	Open(ctx context.Context, name string) (Generation, error)
	// Delete removes the generation and all its entries. It reports false
	// when the generation did not exist.
	Delete(ctx context.Context, name string) (bool, error)
	// Close releases the backend.
	Close() error
}

// Generation is one named, versioned request → response store.
type Generation interface {
	Name() string
	// Match returns a copy of the stored response, or nil on a miss.
	Match(ctx context.Context, req *fetch.Request) (*fetch.Response, error)
	// Put stores a copy of resp keyed by req, replacing any previous entry.
	Put(ctx context.Context, req *fetch.Request, resp *fetch.Response) error
	// Delete removes the entry for req and reports whether one existed.
	Delete(ctx context.Context, req *fetch.Request) (bool, error)
	// Keys lists the stored requests in insertion order.
	Keys(ctx context.Context) ([]*fetch.Request, error)
}

// Entry represents a cache entry.
type Entry struct {
	Key      string
	Request  *fetch.Request
	Response *fetch.Response
	StoredAt time.Time
}

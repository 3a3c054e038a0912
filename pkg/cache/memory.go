// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/stints-app/cache-worker/pkg/fetch"
)

// MemoryStorage is an in-memory Storage.
type MemoryStorage struct {
	mu     sync.RWMutex
	gens   map[string]*memoryEntries
	order  []string
	keys   *KeyGenerator
	closed bool
}

type memoryEntries struct {
	items map[string]*Entry
	order []string
}

// NewMemoryStorage creates a new memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		gens: make(map[string]*memoryEntries),
		keys: NewKeyGenerator(),
	}
}

// Keys lists generation names in creation order.
func (m *MemoryStorage) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	names := make([]string, len(m.order))
	copy(names, m.order)
	return names, nil
}

// Open returns a handle on the named generation.
func (m *MemoryStorage) Open(ctx context.Context, name string) (Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryGeneration{storage: m, name: name}, nil
}

// Delete removes a generation.
func (m *MemoryStorage) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}

	if _, ok := m.gens[name]; !ok {
		return false, nil
	}
	delete(m.gens, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Close drops all generations.
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.gens = make(map[string]*memoryEntries)
	m.order = nil
	return nil
}

type memoryGeneration struct {
	storage *MemoryStorage
	name    string
}

func (g *memoryGeneration) Name() string {
	return g.name
}

func (g *memoryGeneration) Match(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !Cacheable(req) {
		return nil, nil
	}
	m := g.storage
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	gen, ok := m.gens[g.name]
	if !ok {
		return nil, nil
	}
	entry, ok := gen.items[m.keys.Generate(req)]
	if !ok {
		return nil, nil
	}
	return entry.Response.Clone(), nil
}

func (g *memoryGeneration) Put(ctx context.Context, req *fetch.Request, resp *fetch.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !Cacheable(req) {
		return ErrMethodNotCacheable
	}
	if resp == nil {
		return ErrNilResponse
	}
	m := g.storage
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	gen, ok := m.gens[g.name]
	if !ok {
		gen = &memoryEntries{items: make(map[string]*Entry)}
		m.gens[g.name] = gen
		m.order = append(m.order, g.name)
	}

	key := m.keys.Generate(req)
	if _, exists := gen.items[key]; !exists {
		gen.order = append(gen.order, key)
	}
	gen.items[key] = &Entry{
		Key:      key,
		Request:  req.Clone(),
		Response: resp.Clone(),
		StoredAt: time.Now(),
	}
	return nil
}

func (g *memoryGeneration) Delete(ctx context.Context, req *fetch.Request) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !Cacheable(req) {
		return false, nil
	}
	m := g.storage
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}

	gen, ok := m.gens[g.name]
	if !ok {
		return false, nil
	}
	key := m.keys.Generate(req)
	if _, exists := gen.items[key]; !exists {
		return false, nil
	}
	delete(gen.items, key)
	for i, k := range gen.order {
		if k == key {
			gen.order = append(gen.order[:i], gen.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (g *memoryGeneration) Keys(ctx context.Context) ([]*fetch.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := g.storage
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	gen, ok := m.gens[g.name]
	if !ok {
		return nil, nil
	}
	reqs := make([]*fetch.Request, 0, len(gen.order))
	for _, k := range gen.order {
		reqs = append(reqs, gen.items[k].Request.Clone())
	}
	return reqs, nil
}

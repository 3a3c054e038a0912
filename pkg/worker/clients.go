// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client is a page connected to the worker host.
type Client struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Controller string    `json:"controller,omitempty"`
	OpenedAt   time.Time `json:"opened_at"`
}

// ClientRegistry is the set of open clients and their controlling worker.
type ClientRegistry interface {
	// Claim makes controller the controller of every open client and returns
	// how many changed hands.
	Claim(ctx context.Context, controller string) (int, error)
	// Get returns a client by ID.
	Get(id string) (Client, bool)
	// List returns all open clients.
	List() []Client
}

// Clients is the in-process ClientRegistry.
type Clients struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewClients creates an empty registry.
func NewClients() *Clients {
	return &Clients{clients: make(map[string]*Client)}
}

// Open registers a new client for url. New clients start uncontrolled
// unless a controller is given.
func (c *Clients) Open(url, controller string) Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl := &Client{
		ID:         uuid.New().String(),
		URL:        url,
		Controller: controller,
		OpenedAt:   time.Now().UTC(),
	}
	c.clients[cl.ID] = cl
	return *cl
}

// Close removes a client. It reports whether the client was open.
func (c *Clients) Close(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.clients[id]; !ok {
		return false
	}
	delete(c.clients, id)
	return true
}

// Claim sets controller on every open client.
func (c *Clients) Claim(ctx context.Context, controller string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, cl := range c.clients {
		if cl.Controller != controller {
			cl.Controller = controller
			n++
		}
	}
	return n, nil
}

// Get returns a client by ID.
func (c *Clients) Get(id string) (Client, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.clients[id]
	if !ok {
		return Client{}, false
	}
	return *cl, true
}

// List returns all open clients, oldest first.
func (c *Clients) List() []Client {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Client, 0, len(c.clients))
	for _, cl := range c.clients {
		out = append(out, *cl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/stints-app/cache-worker/pkg/cache"
	"github.com/stints-app/cache-worker/pkg/errors"
	"github.com/stints-app/cache-worker/pkg/observability"
)

// Control message types.
const (
	MessageSkipWaiting = "SKIP_WAITING"
	MessageClearCache  = "CLEAR_CACHE"
)

// ReplyPort is a one-shot endpoint a message sender supplies for the reply.
type ReplyPort interface {
	PostMessage(ctx context.Context, v any) error
}

// ReplyFunc adapts a function to the ReplyPort interface.
type ReplyFunc func(ctx context.Context, v any) error

// PostMessage calls f(ctx, v).
func (f ReplyFunc) PostMessage(ctx context.Context, v any) error {
	return f(ctx, v)
}

// Message is a command sent by a controlled client.
type Message struct {
	Type  string      `json:"type"`
	Ports []ReplyPort `json:"-"`
}

// ParseMessage decodes a JSON message payload such as {"type":"CLEAR_CACHE"}.
func ParseMessage(data []byte, ports ...ReplyPort) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.MessageError("malformed message", err)
	}
	msg.Ports = ports
	return &msg, nil
}

// Ack is the reply to CLEAR_CACHE.
type Ack struct {
	Success bool `json:"success"`
}

// ErrNoReplyPort is returned when CLEAR_CACHE arrives without a reply port.
var ErrNoReplyPort = errors.MessageError("no reply port to acknowledge on", nil)

// ControlChannel handles messages from controlled clients.
type ControlChannel struct {
	lifecycle *Lifecycle
	storage   cache.Storage
	logger    observability.Logger
	metrics   *observability.Metrics
}

// NewControlChannel creates a ControlChannel.
func NewControlChannel(lifecycle *Lifecycle, storage cache.Storage, logger observability.Logger, metrics *observability.Metrics) *ControlChannel {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ControlChannel{
		lifecycle: lifecycle,
		storage:   storage,
		logger:    logger.With(observability.String("component", "control")),
		metrics:   metrics,
	}
}

// HandleMessage executes one command. Unknown types and nil messages are
// ignored. Errors concern this message only.
func (c *ControlChannel) HandleMessage(ctx context.Context, msg *Message) error {
	if msg == nil {
		return nil
	}
	switch msg.Type {
	case MessageSkipWaiting:
		return c.lifecycle.SkipWaiting(ctx)
	case MessageClearCache:
		return c.clearCache(ctx, msg.Ports)
	default:
		c.logger.Debug("ignoring message", observability.String("type", msg.Type))
		return nil
	}
}

// clearCache deletes every generation, the current one included, then
// acknowledges on the first reply port.
func (c *ControlChannel) clearCache(ctx context.Context, ports []ReplyPort) error {
	names, err := c.storage.Keys(ctx)
	if err != nil {
		return errors.StorageError("list cache generations", err)
	}

	var deleted atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			ok, err := c.storage.Delete(gctx, name)
			if err != nil {
				return fmt.Errorf("delete %s: %w", name, err)
			}
			if ok {
				deleted.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.StorageError("clear caches", err)
	}
	c.metrics.RecordGenerationsDeleted(ctx, int(deleted.Load()), "clear")
	c.logger.Info("All caches cleared", observability.Int("deleted", int(deleted.Load())))

	if len(ports) == 0 || ports[0] == nil {
		return ErrNoReplyPort
	}
	return ports[0].PostMessage(ctx, Ack{Success: true})
}

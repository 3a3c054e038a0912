// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/stints-app/cache-worker/pkg/observability"
)

// taskHook observes the completion of a detached task.
type taskHook func(name string, err error)

// Detached runs tasks whose completion the caller does not wait for.
//
// Each submitted task runs at most once and is best-effort: a failure is
// logged and reported to the hook, never to the submitter. Tasks run on a
// context that keeps the submitter's values but not its cancellation.
type Detached struct {
	mu         sync.Mutex
	wg         sync.WaitGroup
	sem        chan struct{}
	stopped    bool
	activeJobs atomic.Int32
	logger     observability.Logger
	hook       taskHook
}

// NewDetached creates a task runner allowing at most maxConcurrent tasks to
// run at once. Zero or less means unbounded.
func NewDetached(maxConcurrent int, logger observability.Logger) *Detached {
	if logger == nil {
		logger = observability.NopLogger()
	}
	d := &Detached{logger: logger}
	if maxConcurrent > 0 {
		d.sem = make(chan struct{}, maxConcurrent)
	}
	return d
}

// onDone installs a hook called after every task finishes.
func (d *Detached) onDone(hook taskHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hook = hook
}

// Go starts fn in the background. It returns false if the runner is closed
// or fn is nil; the task is then dropped.
func (d *Detached) Go(ctx context.Context, name string, fn func(context.Context) error) bool {
	if fn == nil {
		return false
	}
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		d.logger.Warn("detached task dropped", observability.String("task", name))
		return false
	}
	d.wg.Add(1)
	hook := d.hook
	d.mu.Unlock()

	taskCtx := context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()
		if d.sem != nil {
			d.sem <- struct{}{}
			defer func() { <-d.sem }()
		}

		d.activeJobs.Add(1)
		defer d.activeJobs.Add(-1)

		err := d.run(taskCtx, fn)
		if err != nil {
			d.logger.Warn("detached task failed",
				observability.String("task", name),
				observability.Err(err))
		}
		if hook != nil {
			hook(name, err)
		}
	}()
	return true
}

func (d *Detached) run(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Active returns the number of tasks currently running.
func (d *Detached) Active() int {
	return int(d.activeJobs.Load())
}

// Wait blocks until every task started so far has finished.
// It must not race with Go; use Close during shutdown.
func (d *Detached) Wait() {
	d.wg.Wait()
}

// Close stops accepting tasks and waits for the running ones.
// Safe to call multiple times.
func (d *Detached) Close() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.wg.Wait()
}

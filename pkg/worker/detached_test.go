package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDetachedRunsTasks(t *testing.T) {
	d := NewDetached(0, nil)

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		if !d.Go(context.Background(), "count", func(ctx context.Context) error {
			count.Add(1)
			return nil
		}) {
			t.Fatal("Go rejected a task on an open runner")
		}
	}
	d.Wait()

	if count.Load() != 10 {
		t.Errorf("Expected 10 tasks to run, got %d", count.Load())
	}
	if d.Active() != 0 {
		t.Errorf("Expected no active tasks after Wait, got %d", d.Active())
	}
}

func TestDetachedHookReportsFailures(t *testing.T) {
	d := NewDetached(0, nil)

	var mu sync.Mutex
	results := make(map[string]error)
	d.onDone(func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		results[name] = err
	})

	d.Go(context.Background(), "ok", func(ctx context.Context) error { return nil })
	d.Go(context.Background(), "fail", func(ctx context.Context) error { return errors.New("disk full") })
	d.Go(context.Background(), "panic", func(ctx context.Context) error { panic("boom") })
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 3 {
		t.Fatalf("Expected 3 hook calls, got %d", len(results))
	}
	if results["ok"] != nil {
		t.Errorf("ok: unexpected error %v", results["ok"])
	}
	if results["fail"] == nil || results["fail"].Error() != "disk full" {
		t.Errorf("fail: got %v", results["fail"])
	}
	if results["panic"] == nil || !strings.Contains(results["panic"].Error(), "boom") {
		t.Errorf("panic: expected recovered panic, got %v", results["panic"])
	}
}

func TestDetachedIgnoresCancellation(t *testing.T) {
	d := NewDetached(0, nil)
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	var taskErr atomic.Value
	d.Go(ctx, "write", func(ctx context.Context) error {
		<-release
		if err := ctx.Err(); err != nil {
			taskErr.Store(err)
		}
		return nil
	})

	cancel()
	close(release)
	d.Wait()

	if v := taskErr.Load(); v != nil {
		t.Errorf("Task context was cancelled with its submitter: %v", v)
	}
}

func TestDetachedConcurrencyLimit(t *testing.T) {
	d := NewDetached(2, nil)

	var (
		running atomic.Int32
		peak    atomic.Int32
	)
	for i := 0; i < 8; i++ {
		d.Go(context.Background(), "limited", func(ctx context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		})
	}
	d.Wait()

	if peak.Load() > 2 {
		t.Errorf("Expected at most 2 concurrent tasks, saw %d", peak.Load())
	}
}

func TestDetachedClose(t *testing.T) {
	d := NewDetached(0, nil)

	done := make(chan struct{})
	d.Go(context.Background(), "slow", func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		close(done)
		return nil
	})
	d.Close()

	select {
	case <-done:
	default:
		t.Error("Close returned before the running task finished")
	}

	if d.Go(context.Background(), "late", func(ctx context.Context) error { return nil }) {
		t.Error("Expected closed runner to reject tasks")
	}
	if d.Go(context.Background(), "nil", nil) {
		t.Error("Expected nil task to be rejected")
	}
	d.Close()
}

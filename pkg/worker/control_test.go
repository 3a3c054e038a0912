package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stints-app/cache-worker/pkg/cache"
	werrors "github.com/stints-app/cache-worker/pkg/errors"
)

// recordingPort collects every reply posted to it.
type recordingPort struct {
	mu      sync.Mutex
	replies []any
}

func (p *recordingPort) PostMessage(ctx context.Context, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, v)
	return nil
}

func (p *recordingPort) acks() []Ack {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Ack
	for _, r := range p.replies {
		if ack, ok := r.(Ack); ok {
			out = append(out, ack)
		}
	}
	return out
}

func newTestControl(s cache.Storage) (*ControlChannel, *Lifecycle) {
	l := newTestLifecycle(s, NewClients(), false)
	return NewControlChannel(l, s, nil, nil), l
}

func TestClearCacheTwice(t *testing.T) {
	s := cache.NewMemoryStorage()
	for _, name := range []string{"v1", "v2"} {
		seed(t, s, name, "https://example.com/app.js", name)
	}
	cc, _ := newTestControl(s)
	port := &recordingPort{}

	for i := 0; i < 2; i++ {
		if err := cc.HandleMessage(context.Background(), &Message{Type: MessageClearCache, Ports: []ReplyPort{port}}); err != nil {
			t.Fatalf("CLEAR_CACHE #%d failed: %v", i+1, err)
		}
		if names, _ := s.Keys(context.Background()); len(names) != 0 {
			t.Errorf("CLEAR_CACHE #%d left generations %v", i+1, names)
		}
	}

	acks := port.acks()
	if len(acks) != 2 {
		t.Fatalf("Expected 2 acknowledgments, got %d", len(acks))
	}
	for i, ack := range acks {
		if !ack.Success {
			t.Errorf("Ack %d reported failure", i+1)
		}
	}
}

func TestClearCacheRepliesOnFirstPortOnly(t *testing.T) {
	s := cache.NewMemoryStorage()
	cc, _ := newTestControl(s)
	first, second := &recordingPort{}, &recordingPort{}

	msg := &Message{Type: MessageClearCache, Ports: []ReplyPort{first, second}}
	if err := cc.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("CLEAR_CACHE failed: %v", err)
	}
	if len(first.acks()) != 1 || len(second.acks()) != 0 {
		t.Errorf("Expected exactly one ack on the first port, got %d and %d", len(first.acks()), len(second.acks()))
	}
}

func TestClearCacheWithoutPort(t *testing.T) {
	s := cache.NewMemoryStorage()
	seed(t, s, "v2", "https://example.com/app.js", "x")
	cc, _ := newTestControl(s)

	err := cc.HandleMessage(context.Background(), &Message{Type: MessageClearCache})
	if !errors.Is(err, ErrNoReplyPort) {
		t.Errorf("Expected ErrNoReplyPort, got %v", err)
	}
	if names, _ := s.Keys(context.Background()); len(names) != 0 {
		t.Errorf("Caches must be cleared even without a reply port, got %v", names)
	}
}

func TestClearCacheDeleteFailure(t *testing.T) {
	s := newGatedStorage()
	seed(t, s, "v1", "https://example.com/app.js", "x")
	seed(t, s, "v2", "https://example.com/app.js", "y")
	s.deleteErr["v1"] = errors.New("locked")
	cc, _ := newTestControl(s)
	port := &recordingPort{}

	err := cc.HandleMessage(context.Background(), &Message{Type: MessageClearCache, Ports: []ReplyPort{port}})
	if !werrors.IsType(err, werrors.ErrStorage) {
		t.Errorf("Expected storage error, got %v", err)
	}
	if len(port.acks()) != 0 {
		t.Error("No acknowledgment may be sent when clearing fails")
	}
}

func TestClearCacheReplyFunc(t *testing.T) {
	cc, _ := newTestControl(cache.NewMemoryStorage())

	var got any
	reply := ReplyFunc(func(ctx context.Context, v any) error {
		got = v
		return nil
	})
	if err := cc.HandleMessage(context.Background(), &Message{Type: MessageClearCache, Ports: []ReplyPort{reply}}); err != nil {
		t.Fatalf("CLEAR_CACHE failed: %v", err)
	}
	if ack, ok := got.(Ack); !ok || !ack.Success {
		t.Errorf("Expected Ack{Success: true}, got %#v", got)
	}
}

func TestSkipWaitingMessage(t *testing.T) {
	cc, l := newTestControl(cache.NewMemoryStorage())
	if err := l.Install(context.Background()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	if err := cc.HandleMessage(context.Background(), &Message{Type: MessageSkipWaiting}); err != nil {
		t.Fatalf("SKIP_WAITING failed: %v", err)
	}
	if l.State() != StateActivated {
		t.Errorf("Expected activated, got %s", l.State())
	}
}

func TestUnknownMessagesIgnored(t *testing.T) {
	s := cache.NewMemoryStorage()
	seed(t, s, "v2", "https://example.com/app.js", "x")
	cc, l := newTestControl(s)
	port := &recordingPort{}

	for _, msg := range []*Message{nil, {Type: "PING", Ports: []ReplyPort{port}}, {Type: ""}} {
		if err := cc.HandleMessage(context.Background(), msg); err != nil {
			t.Errorf("HandleMessage(%v) returned %v", msg, err)
		}
	}
	if names, _ := s.Keys(context.Background()); len(names) != 1 {
		t.Errorf("Unknown messages must not touch caches, got %v", names)
	}
	if len(port.replies) != 0 {
		t.Error("Unknown messages must not be answered")
	}
	if l.State() != StateParsed {
		t.Errorf("Unknown messages must not change state, got %s", l.State())
	}
}

func TestParseMessage(t *testing.T) {
	port := &recordingPort{}

	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{"clear", `{"type":"CLEAR_CACHE"}`, MessageClearCache, false},
		{"skip", `{"type":"SKIP_WAITING"}`, MessageSkipWaiting, false},
		{"extra fields", `{"type":"PING","payload":1}`, "PING", false},
		{"no type", `{}`, "", false},
		{"malformed", `{"type":`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.data), port)
			if tt.wantErr {
				if !werrors.IsType(err, werrors.ErrMessage) {
					t.Errorf("Expected message error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMessage failed: %v", err)
			}
			if msg.Type != tt.want {
				t.Errorf("Type = %q, want %q", msg.Type, tt.want)
			}
			if len(msg.Ports) != 1 {
				t.Errorf("Expected reply port to be attached, got %d", len(msg.Ports))
			}
		})
	}
}

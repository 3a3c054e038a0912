package worker

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stints-app/cache-worker/pkg/cache"
	"github.com/stints-app/cache-worker/pkg/fetch"
)

var errOffline = errors.New("network offline")

// fakeFetcher serves canned responses by URL and records every call.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*fetch.Response
	failAll   bool
	calls     []string
	onFetch   func(req *fetch.Request)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{responses: make(map[string]*fetch.Response)}
}

func (f *fakeFetcher) respond(rawURL string, resp *fetch.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[rawURL] = resp
}

func (f *fakeFetcher) Fetch(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.String())
	failAll := f.failAll
	resp, ok := f.responses[req.String()]
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if failAll || !ok {
		return nil, errOffline
	}
	return resp.Clone(), nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// gatedStorage wraps a MemoryStorage, optionally blocking Put until the gate
// is released and injecting failures.
type gatedStorage struct {
	*cache.MemoryStorage

	mu        sync.Mutex
	gate      chan struct{}
	putDone   chan struct{}
	keysErr   error
	deleteErr map[string]error
	deleted   []string
}

func newGatedStorage() *gatedStorage {
	return &gatedStorage{
		MemoryStorage: cache.NewMemoryStorage(),
		deleteErr:     make(map[string]error),
	}
}

func (s *gatedStorage) Keys(ctx context.Context) ([]string, error) {
	if s.keysErr != nil {
		return nil, s.keysErr
	}
	return s.MemoryStorage.Keys(ctx)
}

func (s *gatedStorage) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	err := s.deleteErr[name]
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	ok, err := s.MemoryStorage.Delete(ctx, name)
	s.mu.Lock()
	s.deleted = append(s.deleted, name)
	s.mu.Unlock()
	return ok, err
}

func (s *gatedStorage) deletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deleted)
}

func (s *gatedStorage) Open(ctx context.Context, name string) (cache.Generation, error) {
	gen, err := s.MemoryStorage.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &gatedGeneration{Generation: gen, storage: s}, nil
}

type gatedGeneration struct {
	cache.Generation
	storage *gatedStorage
}

func (g *gatedGeneration) Put(ctx context.Context, req *fetch.Request, resp *fetch.Response) error {
	if g.storage.gate != nil {
		<-g.storage.gate
	}
	err := g.Generation.Put(ctx, req, resp)
	if g.storage.putDone != nil {
		g.storage.putDone <- struct{}{}
	}
	return err
}

func mustRequest(t *testing.T, rawURL string) *fetch.Request {
	t.Helper()
	req, err := fetch.NewRequest(rawURL)
	if err != nil {
		t.Fatalf("NewRequest(%q) failed: %v", rawURL, err)
	}
	return req
}

func response(status int, typ fetch.ResponseType, body string) *fetch.Response {
	return &fetch.Response{
		Status: status,
		Header: http.Header{"Content-Type": []string{"text/plain"}},
		Body:   []byte(body),
		Type:   typ,
	}
}

func errorResponse() *fetch.Response {
	return &fetch.Response{Header: make(http.Header), Type: fetch.TypeError}
}

func seed(t *testing.T, s cache.Storage, generation, rawURL, body string) {
	t.Helper()
	gen, err := s.Open(context.Background(), generation)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", generation, err)
	}
	if err := gen.Put(context.Background(), mustRequest(t, rawURL), response(200, fetch.TypeBasic, body)); err != nil {
		t.Fatalf("Put into %s failed: %v", generation, err)
	}
}

func cached(t *testing.T, s cache.Storage, generation, rawURL string) *fetch.Response {
	t.Helper()
	gen, _ := s.Open(context.Background(), generation)
	resp, err := gen.Match(context.Background(), mustRequest(t, rawURL))
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	return resp
}

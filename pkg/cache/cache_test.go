package cache

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stints-app/cache-worker/pkg/fetch"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()

	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sq,
	}
}

func mustRequest(t *testing.T, rawURL string) *fetch.Request {
	t.Helper()
	req, err := fetch.NewRequest(rawURL)
	if err != nil {
		t.Fatalf("NewRequest(%q) failed: %v", rawURL, err)
	}
	return req
}

func basicResponse(body string) *fetch.Response {
	return &fetch.Response{
		Status:     200,
		StatusText: "OK",
		Header:     http.Header{"Content-Type": []string{"text/javascript"}},
		Body:       []byte(body),
		Type:       fetch.TypeBasic,
	}
}

func TestGenerationPutMatch(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			gen, err := s.Open(ctx, "v1")
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}

			req := mustRequest(t, "https://example.com/app.js")
			if resp, err := gen.Match(ctx, req); err != nil || resp != nil {
				t.Fatalf("Expected miss before put, got %v, %v", resp, err)
			}

			if err := gen.Put(ctx, req, basicResponse("console.log(1)")); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			got, err := gen.Match(ctx, mustRequest(t, "https://example.com/app.js#main"))
			if err != nil {
				t.Fatalf("Match failed: %v", err)
			}
			if got == nil {
				t.Fatal("Expected hit after put (fragment ignored)")
			}
			if string(got.Body) != "console.log(1)" {
				t.Errorf("Unexpected body %q", got.Body)
			}
			if got.Header.Get("Content-Type") != "text/javascript" {
				t.Errorf("Unexpected content type %q", got.Header.Get("Content-Type"))
			}
			if got.Type != fetch.TypeBasic {
				t.Errorf("Expected basic type, got %s", got.Type)
			}

			if err := gen.Put(ctx, req, basicResponse("console.log(2)")); err != nil {
				t.Fatalf("second Put failed: %v", err)
			}
			got, _ = gen.Match(ctx, req)
			if string(got.Body) != "console.log(2)" {
				t.Errorf("Expected replaced body, got %q", got.Body)
			}

			keys, err := gen.Keys(ctx)
			if err != nil {
				t.Fatalf("Keys failed: %v", err)
			}
			if len(keys) != 1 || keys[0].URL.Path != "/app.js" {
				t.Errorf("Expected one key /app.js, got %v", keys)
			}
		})
	}
}

func TestGenerationCreatedOnFirstWrite(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			gen, _ := s.Open(ctx, "v1")

			names, _ := s.Keys(ctx)
			if len(names) != 0 {
				t.Fatalf("Open must not create a generation, got %v", names)
			}

			if err := gen.Put(ctx, mustRequest(t, "https://example.com/a.css"), basicResponse("a{}")); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			names, _ = s.Keys(ctx)
			if len(names) != 1 || names[0] != "v1" {
				t.Errorf("Expected [v1], got %v", names)
			}
		})
	}
}

func TestStorageDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			req := mustRequest(t, "https://example.com/index.html")
			for _, n := range []string{"v0", "v1", "v2"} {
				gen, _ := s.Open(ctx, n)
				if err := gen.Put(ctx, req, basicResponse(n)); err != nil {
					t.Fatalf("Put into %s failed: %v", n, err)
				}
			}

			names, _ := s.Keys(ctx)
			if len(names) != 3 || names[0] != "v0" || names[2] != "v2" {
				t.Fatalf("Expected [v0 v1 v2] in creation order, got %v", names)
			}

			ok, err := s.Delete(ctx, "v1")
			if err != nil || !ok {
				t.Fatalf("Delete(v1) = %v, %v", ok, err)
			}
			ok, err = s.Delete(ctx, "v1")
			if err != nil || ok {
				t.Errorf("Second Delete(v1) = %v, %v; want false, nil", ok, err)
			}

			names, _ = s.Keys(ctx)
			if len(names) != 2 || names[0] != "v0" || names[1] != "v2" {
				t.Errorf("Expected [v0 v2], got %v", names)
			}

			gen, _ := s.Open(ctx, "v1")
			if resp, _ := gen.Match(ctx, req); resp != nil {
				t.Error("Entries of a deleted generation must be gone")
			}
		})
	}
}

func TestGenerationDeleteEntry(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			gen, _ := s.Open(ctx, "v1")
			req := mustRequest(t, "https://example.com/app.js")
			gen.Put(ctx, req, basicResponse("x"))

			ok, err := gen.Delete(ctx, req)
			if err != nil || !ok {
				t.Fatalf("Delete = %v, %v", ok, err)
			}
			if resp, _ := gen.Match(ctx, req); resp != nil {
				t.Error("Expected miss after delete")
			}
		})
	}
}

func TestPutRejectsNonGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			gen, _ := s.Open(ctx, "v1")
			req, _ := fetch.NewRequestWithMethod(http.MethodPost, "https://example.com/app.js")

			if err := gen.Put(ctx, req, basicResponse("x")); err != ErrMethodNotCacheable {
				t.Errorf("Expected ErrMethodNotCacheable, got %v", err)
			}
			if err := gen.Put(ctx, mustRequest(t, "https://example.com/app.js"), nil); err != ErrNilResponse {
				t.Errorf("Expected ErrNilResponse, got %v", err)
			}
		})
	}
}

func TestMatchReturnsCopy(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	gen, _ := s.Open(ctx, "v1")
	req := mustRequest(t, "https://example.com/app.js")
	gen.Put(ctx, req, basicResponse("abc"))

	first, _ := gen.Match(ctx, req)
	first.Body[0] = 'X'

	second, _ := gen.Match(ctx, req)
	if string(second.Body) != "abc" {
		t.Errorf("Stored body was mutated through a match result: %q", second.Body)
	}
}

func TestKeyGenerator(t *testing.T) {
	kg := NewKeyGenerator()

	a := kg.Generate(mustRequest(t, "https://example.com/app.js?v=1"))
	b := kg.Generate(mustRequest(t, "https://example.com/app.js?v=1#frag"))
	c := kg.Generate(mustRequest(t, "https://example.com/app.js?v=2"))

	if a != b {
		t.Error("Fragment must not affect the key")
	}
	if a == c {
		t.Error("Query must affect the key")
	}
	if got := kg.Canonical(mustRequest(t, "https://example.com/x.css#y")); got != "GET https://example.com/x.css" {
		t.Errorf("Unexpected canonical form %q", got)
	}
}

func TestClosedMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	s.Close()

	if _, err := s.Keys(context.Background()); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

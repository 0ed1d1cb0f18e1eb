package di

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/uxkjaer/cds-caching/caching"
	"github.com/uxkjaer/cds-caching/readthrough"
)

// book is the test model for the end-to-end flows.
type book struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// mockCatalog is a fake upstream service. Call counts are tracked per method
// so tests can verify which requests the cache absorbed.
type mockCatalog struct {
	mu        sync.RWMutex
	books     map[int]book
	callCount map[string]int
	fail      error
}

func newMockCatalog() *mockCatalog {
	m := &mockCatalog{
		books:     make(map[int]book),
		callCount: make(map[string]int),
	}
	m.books[1] = book{ID: 1, Title: "Emma", Author: "Austen"}
	m.books[2] = book{ID: 2, Title: "Dracula", Author: "Stoker"}
	return m
}

func (m *mockCatalog) trackCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount[method]++
}

func (m *mockCatalog) getCallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount[method]
}

// Send implements readthrough.ServiceOrigin.
func (m *mockCatalog) Send(ctx context.Context, call caching.ServiceCall) (any, error) {
	m.trackCall(call.Method + " " + call.Path)

	m.mu.RLock()
	fail := m.fail
	m.mu.RUnlock()
	if fail != nil {
		return nil, fail
	}

	switch call.Method {
	case "GET":
		m.mu.RLock()
		defer m.mu.RUnlock()
		out := make([]book, 0, len(m.books))
		for _, b := range m.books {
			out = append(out, b)
		}
		return out, nil
	case "POST":
		m.mu.Lock()
		defer m.mu.Unlock()
		id := len(m.books) + 1
		m.books[id] = book{ID: id, Title: fmt.Sprintf("Book %d", id)}
		return m.books[id], nil
	default:
		return nil, fmt.Errorf("unsupported method %s", call.Method)
	}
}

var _ readthrough.ServiceOrigin = (*mockCatalog)(nil)

// TestEndToEndServiceFlow exercises the complete read-through flow wired
// through the container: miss, hit, and key separation between paths.
func TestEndToEndServiceFlow(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("Failed to create DI container: %v", err)
	}

	catalog := newMockCatalog()
	coordinator := container.Coordinator()
	ctx := context.Background()
	rc := caching.RequestContext{Tenant: "acme", User: "alice"}

	books := caching.ServiceCall{Service: "catalog", Method: "GET", Path: "/Books"}

	res1, err := coordinator.Send(ctx, rc, books, catalog, nil)
	if err != nil {
		t.Fatalf("First Send failed: %v", err)
	}
	if res1.Metadata.Hit {
		t.Error("First Send should be a miss")
	}
	if catalog.getCallCount("GET /Books") != 1 {
		t.Errorf("Expected origin to be called once, got %d calls", catalog.getCallCount("GET /Books"))
	}

	res2, err := coordinator.Send(ctx, rc, books, catalog, nil)
	if err != nil {
		t.Fatalf("Second Send failed: %v", err)
	}
	if !res2.Metadata.Hit {
		t.Error("Second Send should be a hit")
	}
	if catalog.getCallCount("GET /Books") != 1 {
		t.Errorf("Expected origin to still be called once (cache hit), got %d calls", catalog.getCallCount("GET /Books"))
	}
	if res1.CacheKey != res2.CacheKey {
		t.Errorf("Keys differ across identical requests: %q vs %q", res1.CacheKey, res2.CacheKey)
	}

	// A different path must produce a different key and its own miss.
	authors := caching.ServiceCall{Service: "catalog", Method: "GET", Path: "/Authors"}
	res3, err := coordinator.Send(ctx, rc, authors, catalog, nil)
	if err != nil {
		t.Fatalf("Send for /Authors failed: %v", err)
	}
	if res3.Metadata.Hit {
		t.Error("Send for a new path should be a miss")
	}
	if res3.CacheKey == res1.CacheKey {
		t.Error("Different paths must not share a cache key")
	}
}

// TestTTLExpiryIntegration verifies per-call TTLs expire entries end to end.
func TestTTLExpiryIntegration(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("Failed to create DI container: %v", err)
	}

	catalog := newMockCatalog()
	coordinator := container.Coordinator()
	ctx := context.Background()
	rc := caching.RequestContext{Tenant: "acme"}
	call := caching.ServiceCall{Service: "catalog", Method: "GET", Path: "/Books"}
	opts := &caching.Options{TTL: 100 * time.Millisecond}

	if _, err := coordinator.Send(ctx, rc, call, catalog, opts); err != nil {
		t.Fatalf("Initial Send failed: %v", err)
	}
	if _, err := coordinator.Send(ctx, rc, call, catalog, opts); err != nil {
		t.Fatalf("Cached Send failed: %v", err)
	}
	if got := catalog.getCallCount("GET /Books"); got != 1 {
		t.Errorf("Expected 1 origin call before expiry, got %d", got)
	}

	time.Sleep(200 * time.Millisecond)

	res, err := coordinator.Send(ctx, rc, call, catalog, opts)
	if err != nil {
		t.Fatalf("Post-expiry Send failed: %v", err)
	}
	if res.Metadata.Hit {
		t.Error("Send after TTL expiry should be a miss")
	}
	if got := catalog.getCallCount("GET /Books"); got != 2 {
		t.Errorf("Expected 2 origin calls after expiry, got %d", got)
	}
}

// TestMutationBypassIntegration verifies that write requests pass through to
// the origin on every call and never produce cache entries.
func TestMutationBypassIntegration(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("Failed to create DI container: %v", err)
	}

	catalog := newMockCatalog()
	coordinator := container.Coordinator()
	ctx := context.Background()
	rc := caching.RequestContext{Tenant: "acme"}
	create := caching.ServiceCall{Service: "catalog", Method: "POST", Path: "/Books"}

	for i := 1; i <= 3; i++ {
		res, err := coordinator.Send(ctx, rc, create, catalog, nil)
		if err != nil {
			t.Fatalf("POST %d failed: %v", i, err)
		}
		if res.CacheKey != "" {
			t.Errorf("POST %d produced cache key %q, want empty", i, res.CacheKey)
		}
		if res.Metadata.Hit {
			t.Errorf("POST %d reported a hit", i)
		}
		if got := catalog.getCallCount("POST /Books"); got != i {
			t.Errorf("Expected %d origin calls, got %d", i, got)
		}
	}

	stats := container.Recorder().Snapshot()
	if stats.Requests != 0 {
		t.Errorf("Mutations must not be recorded, got %d requests", stats.Requests)
	}
}

// TestErrorPropagationIntegration verifies origin errors reach the caller
// unchanged and are never cached: the next call consults the origin again.
func TestErrorPropagationIntegration(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("Failed to create DI container: %v", err)
	}

	catalog := newMockCatalog()
	boom := errors.New("catalog unavailable")
	catalog.fail = boom

	coordinator := container.Coordinator()
	ctx := context.Background()
	rc := caching.RequestContext{Tenant: "acme"}
	call := caching.ServiceCall{Service: "catalog", Method: "GET", Path: "/Books"}

	if _, err := coordinator.Send(ctx, rc, call, catalog, nil); !errors.Is(err, boom) {
		t.Fatalf("Send error = %v, want %v", err, boom)
	}
	if _, err := coordinator.Send(ctx, rc, call, catalog, nil); !errors.Is(err, boom) {
		t.Fatalf("Second Send error = %v, want %v", err, boom)
	}
	if got := catalog.getCallCount("GET /Books"); got != 2 {
		t.Errorf("Failed responses must not be cached: origin called %d times, want 2", got)
	}

	// Once the origin recovers, the flow caches normally again.
	catalog.mu.Lock()
	catalog.fail = nil
	catalog.mu.Unlock()

	res, err := coordinator.Send(ctx, rc, call, catalog, nil)
	if err != nil {
		t.Fatalf("Send after recovery failed: %v", err)
	}
	if res.Metadata.Hit {
		t.Error("First successful Send should be a miss")
	}
}

// TestTagInvalidationFlow caches a query under a tag, invalidates the tag,
// and verifies the next call misses.
func TestTagInvalidationFlow(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("Failed to create DI container: %v", err)
	}

	coordinator := container.Coordinator()
	ctx := context.Background()
	rc := caching.RequestContext{Tenant: "acme"}
	query := caching.Query{Kind: caching.QuerySelect, Entity: "Books"}
	opts := &caching.Options{Tags: caching.TagList{"books"}}

	calls := 0
	runner := readthrough.QueryRunnerFunc(func(ctx context.Context, q caching.Query) (any, error) {
		calls++
		return []map[string]any{{"title": "Emma"}}, nil
	})

	if _, err := coordinator.Run(ctx, rc, query, runner, opts); err != nil {
		t.Fatalf("First Run failed: %v", err)
	}
	res, err := coordinator.Run(ctx, rc, query, runner, opts)
	if err != nil {
		t.Fatalf("Second Run failed: %v", err)
	}
	if !res.Metadata.Hit || calls != 1 {
		t.Fatalf("Second Run hit=%v calls=%d, want hit with 1 call", res.Metadata.Hit, calls)
	}

	if err := coordinator.DeleteByTag(ctx, "books"); err != nil {
		t.Fatalf("DeleteByTag failed: %v", err)
	}

	res, err = coordinator.Run(ctx, rc, query, runner, opts)
	if err != nil {
		t.Fatalf("Run after invalidation failed: %v", err)
	}
	if res.Metadata.Hit || calls != 2 {
		t.Errorf("Run after invalidation hit=%v calls=%d, want miss with 2 calls", res.Metadata.Hit, calls)
	}
}

// TestDescriptorShapeIsolation verifies the three request shapes produce
// independent cache entries even for similar-looking requests.
func TestDescriptorShapeIsolation(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("Failed to create DI container: %v", err)
	}

	coordinator := container.Coordinator()
	ctx := context.Background()
	rc := caching.RequestContext{Tenant: "acme"}

	catalog := newMockCatalog()
	sendRes, err := coordinator.Send(ctx, rc,
		caching.ServiceCall{Service: "Books", Method: "GET"}, catalog, nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	runRes, err := coordinator.Run(ctx, rc,
		caching.Query{Kind: caching.QuerySelect, Entity: "Books"},
		readthrough.QueryRunnerFunc(func(ctx context.Context, q caching.Query) (any, error) {
			return []map[string]any{}, nil
		}), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wrapRes, err := coordinator.Wrap(ctx, rc,
		caching.Invocation{Name: "Books"},
		func(ctx context.Context) (any, error) { return "wrapped", nil }, nil)
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}

	keys := map[string]bool{
		sendRes.CacheKey: true,
		runRes.CacheKey:  true,
		wrapRes.CacheKey: true,
	}
	if len(keys) != 3 {
		t.Errorf("Expected 3 distinct keys, got %v", keys)
	}
}

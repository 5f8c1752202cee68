package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dShop/lib/cache"
	"github.com/ValentinKolb/dShop/lib/platform"
	"github.com/ValentinKolb/dShop/rpc/common"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

type fakeSession struct {
	mu sync.Mutex
	id string
}

func (s *fakeSession) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *fakeSession) Adopt(id string) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

type testEnv struct {
	server  *httptest.Server
	gw      *Gateway
	clock   *platform.ManualClock
	session *fakeSession
	hits    atomic.Int64
}

// newTestEnv starts a server whose handler counts hits and delegates to h
func newTestEnv(t *testing.T, h http.HandlerFunc, mutate ...func(*Options)) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:   platform.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		session: &fakeSession{id: "session_test"},
	}
	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(env.server.Close)

	opts := Options{
		BaseURL: env.server.URL,
		Session: env.session,
		Clock:   env.clock,
		Routes: []TTLRoute{
			{Contains: "/api/cart", TTL: 30 * time.Second},
			{Contains: "/api/products", TTL: 5 * time.Minute},
		},
		DefaultTTL: time.Minute,
		MaxRetries: 2,
		RetryBase:  time.Millisecond,
	}
	for _, m := range mutate {
		m(&opts)
	}

	gw, err := New(opts)
	if err != nil {
		t.Fatalf("Failed to create gateway: %v", err)
	}
	env.gw = gw
	return env
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestGetIsCached(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "name": "Tea"}})
	})
	ctx := context.Background()

	first, err := env.gw.Request(ctx, http.MethodGet, "/api/products", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if first.FromCache {
		t.Errorf("Expected first response from network")
	}

	second, err := env.gw.Request(ctx, "get", "/api/products", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if !second.FromCache || !bytes.Equal(first.Body, second.Body) {
		t.Errorf("Expected second response from cache with identical body")
	}
	if env.hits.Load() != 1 {
		t.Errorf("Expected 1 server hit, got %d", env.hits.Load())
	}
	if env.gw.metrics.cacheHits.Get() != 1 || env.gw.metrics.cacheMisses.Get() != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d/%d", env.gw.metrics.cacheHits.Get(), env.gw.metrics.cacheMisses.Get())
	}
}

func TestRouteTTLs(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []int{})
	})
	ctx := context.Background()

	for _, path := range []string{"/api/cart", "/api/products", "/api/orders"} {
		if _, err := env.gw.Request(ctx, http.MethodGet, path, nil); err != nil {
			t.Fatalf("Request %s failed: %v", path, err)
		}
	}

	tests := []struct {
		advance time.Duration
		cached  map[string]bool
	}{
		{advance: 31 * time.Second, cached: map[string]bool{"/api/cart": false, "/api/orders": true, "/api/products": true}},
		{advance: 30 * time.Second, cached: map[string]bool{"/api/orders": false, "/api/products": true}},
		{advance: 5 * time.Minute, cached: map[string]bool{"/api/products": false}},
	}
	for _, tt := range tests {
		env.clock.Advance(tt.advance)
		for path, want := range tt.cached {
			if got := env.gw.cache.Has(CacheKey(http.MethodGet, path, nil)); got != want {
				t.Errorf("After +%v: expected cached(%s)=%v, got %v", tt.advance, path, want, got)
			}
		}
	}
}

func TestMutationsBypassCacheAndRetries(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "down"})
	})

	_, err := env.gw.Request(context.Background(), http.MethodPost, "/api/cart", map[string]any{"productId": 1})
	if !IsStatus(err, http.StatusServiceUnavailable) {
		t.Fatalf("Expected 503 status error, got %v", err)
	}
	if env.hits.Load() != 1 {
		t.Errorf("Expected POST to be attempted once, got %d", env.hits.Load())
	}
	if env.gw.cache.Len() != 0 {
		t.Errorf("Expected nothing cached for POST")
	}
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "busy"})
			return
		}
		writeJSON(w, http.StatusOK, []int{1, 2})
	})

	resp, err := env.gw.Request(context.Background(), http.MethodGet, "/api/products", nil)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	var ids []int
	if err := resp.Decode(&ids); err != nil || len(ids) != 2 {
		t.Errorf("Expected [1 2], got %v (%v)", ids, err)
	}
	if env.hits.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", env.hits.Load())
	}
	if env.gw.metrics.retries.Get() != 2 {
		t.Errorf("Expected 2 retries recorded, got %d", env.gw.metrics.retries.Get())
	}
}

func TestGetRetryLimit(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := env.gw.Request(context.Background(), http.MethodGet, "/api/products", nil)
	if !IsStatus(err, http.StatusTooManyRequests) {
		t.Fatalf("Expected 429 status error, got %v", err)
	}
	if env.hits.Load() != 3 {
		t.Errorf("Expected 1 attempt plus 2 retries, got %d", env.hits.Load())
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product not found"})
	})

	_, err := env.gw.Request(context.Background(), http.MethodGet, "/api/products/99", nil)
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if gwErr.Kind != KindHTTPStatus || gwErr.Status != 404 || gwErr.Msg != "Product not found" {
		t.Errorf("Unexpected error %+v", gwErr)
	}
	if !strings.Contains(string(gwErr.Payload), "Product not found") {
		t.Errorf("Expected raw payload to be kept, got %s", gwErr.Payload)
	}
	if env.hits.Load() != 1 {
		t.Errorf("Expected no retry for 404, got %d attempts", env.hits.Load())
	}
}

func TestErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "Message", body: `{"message":"Out of stock","error":"ignored"}`, want: "Out of stock"},
		{name: "Error", body: `{"error":"Invalid quantity"}`, want: "Invalid quantity"},
		{name: "NonStringError", body: `{"error":{"code":1}}`, want: `{"error":{"code":1}}`},
		{name: "RawText", body: "Bad Gateway", want: "Bad Gateway"},
		{name: "Empty", body: "", want: "HTTP Error 400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := statusError(http.StatusBadRequest, []byte(tt.body))
			if err.Msg != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, err.Msg)
			}
		})
	}
}

func TestNetworkError(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {}, func(o *Options) {
		o.MaxRetries = 1
	})
	env.server.Close()

	_, err := env.gw.Request(context.Background(), http.MethodGet, "/api/products", nil)
	if !IsKind(err, KindNetwork) {
		t.Fatalf("Expected network error, got %v", err)
	}
	var gwErr *Error
	if errors.As(err, &gwErr) && !gwErr.Retryable() {
		t.Errorf("Expected network errors to be retryable")
	}
}

func TestSessionHeader(t *testing.T) {
	var seen atomic.Value
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get(HeaderSessionID))
		w.Header().Set(HeaderSessionID, "session_from_server")
		writeJSON(w, http.StatusOK, []int{})
	})

	if _, err := env.gw.Request(context.Background(), http.MethodGet, "/api/cart", nil); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if got := seen.Load(); got != "session_test" {
		t.Errorf("Expected Session-Id header session_test, got %v", got)
	}
	if env.session.ID() != "session_from_server" {
		t.Errorf("Expected echoed session to be adopted, got %s", env.session.ID())
	}
}

func TestRequestHeadersAndBody(t *testing.T) {
	var (
		gotBody        []byte
		gotContentType string
		gotCache       string
	)
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		gotCache = r.Header.Get("Cache-Control")
		writeJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
	})

	_, err := env.gw.Request(context.Background(), http.MethodPut, "/api/cart/3", map[string]int{"quantity": 2})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if string(gotBody) != `{"quantity":2}` {
		t.Errorf("Expected JSON body, got %s", gotBody)
	}
	if gotContentType != "application/json" || gotCache != "no-cache" {
		t.Errorf("Unexpected headers Content-Type=%q Cache-Control=%q", gotContentType, gotCache)
	}
}

func TestHeadersWithoutBody(t *testing.T) {
	var (
		mu    sync.Mutex
		types []string
	)
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		types = append(types, r.Method+" "+r.Header.Get("Content-Type"))
		mu.Unlock()
		writeJSON(w, http.StatusOK, []int{})
	})

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		if _, err := env.gw.Request(context.Background(), method, "/api/cart/clear/session_test", nil); err != nil {
			t.Fatalf("%s failed: %v", method, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"GET application/json", "DELETE application/json"}
	if len(types) != len(want) {
		t.Fatalf("Expected %d requests, got %v", len(want), types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("Expected %q, got %q", want[i], types[i])
		}
	}
}

func TestUnauthorizedHook(t *testing.T) {
	var called atomic.Int64
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, func(o *Options) {
		o.OnUnauthorized = func() { called.Add(1) }
	})

	_, err := env.gw.Request(context.Background(), http.MethodDelete, "/api/cart/1", nil)
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("Expected 401, got %v", err)
	}
	if called.Load() != 1 {
		t.Errorf("Expected hook to be called once, got %d", called.Load())
	}
}

func TestParseErrorDegradation(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>oops</html>"))
	})
	ctx := context.Background()

	t.Run("GET", func(t *testing.T) {
		items, err := Fetch[[]map[string]any](ctx, env.gw, http.MethodGet, "/api/products", nil)
		if err != nil || items != nil {
			t.Errorf("Expected empty result without error, got %v (%v)", items, err)
		}
		if env.gw.cache.Len() != 0 {
			t.Errorf("Expected degraded response not to be cached")
		}
	})

	t.Run("POST", func(t *testing.T) {
		resp, err := env.gw.Request(ctx, http.MethodPost, "/api/orders/create", map[string]int{"amount": 1})
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if string(resp.Body) != "<html>oops</html>" {
			t.Errorf("Expected raw body to pass through, got %s", resp.Body)
		}

		_, err = Fetch[map[string]any](ctx, env.gw, http.MethodPost, "/api/orders/create", nil)
		if !IsKind(err, KindParse) {
			t.Errorf("Expected parse error for non-GET Fetch, got %v", err)
		}
	})
}

func TestShapeMismatchDegradesForGet(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"unexpected": "object"})
	})

	items, err := Fetch[[]int](context.Background(), env.gw, http.MethodGet, "/api/products", nil)
	if err != nil || len(items) != 0 {
		t.Errorf("Expected empty result, got %v (%v)", items, err)
	}
}

func TestNotModified(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	})

	resp, err := env.gw.Request(context.Background(), http.MethodGet, "/api/products", nil)
	if err != nil {
		t.Fatalf("Expected 304 not to be an error, got %v", err)
	}
	if !resp.NotModified {
		t.Errorf("Expected NotModified response")
	}
	var out []int
	if err := resp.Decode(&out); err != nil || out != nil {
		t.Errorf("Expected empty decode, got %v (%v)", out, err)
	}
}

func TestInvalidate(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []int{})
	})
	ctx := context.Background()
	for _, p := range []string{"/api/cart", "/api/products", "/api/products/featured"} {
		_, _ = env.gw.Request(ctx, http.MethodGet, p, nil)
	}

	if n := env.gw.Invalidate("/api/cart"); n != 1 {
		t.Errorf("Expected 1 invalidated entry, got %d", n)
	}
	_, _ = env.gw.Request(ctx, http.MethodGet, "/api/cart", nil)
	if env.hits.Load() != 4 {
		t.Errorf("Expected cart to be refetched, got %d hits", env.hits.Load())
	}
	if n := env.gw.Invalidate(""); n != 3 {
		t.Errorf("Expected 3 invalidated entries, got %d", n)
	}
}

func TestSharedCacheInstance(t *testing.T) {
	shared := cache.New[[]byte](nil)
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []int{})
	}, func(o *Options) {
		o.Cache = shared
	})

	_, _ = env.gw.Request(context.Background(), http.MethodGet, "/api/products", nil)
	if !shared.Has("GET:/api/products") {
		t.Errorf("Expected the injected cache to receive the response")
	}
}

func TestMetricsExport(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []int{})
	})
	_, _ = env.gw.Request(context.Background(), http.MethodGet, "/api/products", nil)

	var buf bytes.Buffer
	env.gw.WriteMetrics(&buf)
	out := buf.String()
	for _, want := range []string{`dshop_gateway_requests_total{method="GET",status="200"} 1`, "dshop_gateway_cache_misses_total 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected metrics to contain %q, got:\n%s", want, out)
		}
	}
}

func TestCacheKey(t *testing.T) {
	if got := CacheKey("GET", "/api/products", nil); got != "GET:/api/products" {
		t.Errorf("Unexpected key %s", got)
	}
	if got := CacheKey("GET", "/api/products", []byte(`{"a":1}`)); got != `GET:/api/products:{"a":1}` {
		t.Errorf("Unexpected key %s", got)
	}
}

func TestNewRejectsInvalidURL(t *testing.T) {
	if _, err := New(Options{BaseURL: "not a url"}); err == nil {
		t.Errorf("Expected error for invalid base url")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := common.DefaultClientConfig()
	opts := OptionsFromConfig(cfg)

	if opts.BaseURL != cfg.Endpoint || opts.MaxRetries != 2 || opts.RetryBase != 200*time.Millisecond {
		t.Errorf("Unexpected options %+v", opts)
	}

	gw, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	tests := []struct {
		path string
		want time.Duration
	}{
		{"/api/cart", 30 * time.Second},
		{"/api/cart/clear/x", 30 * time.Second},
		{"/api/products/7", 5 * time.Minute},
		{"/api/categories", 5 * time.Minute},
		{"/api/orders/create", time.Minute},
	}
	for _, tt := range tests {
		if got := gw.ttlFor(tt.path); got != tt.want {
			t.Errorf("ttlFor(%q): expected %s, got %s", tt.path, tt.want, got)
		}
	}
}

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ValentinKolb/dShop/lib/cache"
	"github.com/ValentinKolb/dShop/lib/platform"
	"github.com/ValentinKolb/dShop/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/cenkalti/backoff/v5"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("gateway")

const (
	// HeaderSessionID carries the session identity in both directions.
	HeaderSessionID = "Session-Id"
)

// --------------------------------------------------------------------------
// Interface Definitions for dependency injection
// --------------------------------------------------------------------------

// SessionProvider supplies the current session identity and accepts the one
// echoed by the server.
type SessionProvider interface {
	ID() string
	Adopt(id string)
}

// Requester performs a single API request.
type Requester interface {
	Request(ctx context.Context, method, path string, body any) (*Response, error)
}

// --------------------------------------------------------------------------
// Response
// --------------------------------------------------------------------------

// Response is a successful API answer.
type Response struct {
	Status      int
	Body        []byte
	Header      http.Header
	FromCache   bool // served from the response cache
	NotModified bool // the server answered 304
	Degraded    bool // a GET body was not valid JSON and was dropped
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{Kind: KindParse, Status: r.Status, Msg: "cannot decode response body", Err: err}
	}
	return nil
}

// --------------------------------------------------------------------------
// Gateway
// --------------------------------------------------------------------------

// Options configures a Gateway. Zero values select the defaults noted per field.
type Options struct {
	// BaseURL of the storefront API, e.g. http://localhost:3000. Required.
	BaseURL string
	// HTTPClient is used for all calls (default: a client with Timeout).
	HTTPClient *http.Client
	// Timeout bounds a single attempt when HTTPClient is nil (default 10s).
	Timeout time.Duration
	// Session provides the Session-Id header. Optional.
	Session SessionProvider
	// Cache stores GET responses (default: a new TTLCache on Clock).
	Cache cache.ICache[[]byte]
	// Clock drives the default cache.
	Clock platform.Clock
	// Routes choose the cache lifetime by path (first match wins).
	Routes []TTLRoute
	// DefaultTTL applies when no route matches.
	DefaultTTL time.Duration
	// MaxRetries is the number of additional attempts for failed GETs.
	MaxRetries int
	// RetryBase is the initial backoff interval (default 200ms).
	RetryBase time.Duration
	// OnUnauthorized is invoked for every 401 answer. Optional.
	OnUnauthorized func()
	// Metrics receives the gateway metrics (default: a private set).
	Metrics *metrics.Set
}

// Gateway performs API requests.
type Gateway struct {
	baseURL        string
	client         *http.Client
	session        SessionProvider
	cache          cache.ICache[[]byte]
	routes         []TTLRoute
	defaultTTL     time.Duration
	maxRetries     int
	retryBase      time.Duration
	onUnauthorized func()
	metrics        *gatewayMetrics
}

// New creates a Gateway.
func New(opts Options) (*Gateway, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	c := opts.Cache
	if c == nil {
		c = cache.New[[]byte](opts.Clock)
	}

	retryBase := opts.RetryBase
	if retryBase <= 0 {
		retryBase = 200 * time.Millisecond
	}

	return &Gateway{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		client:         client,
		session:        opts.Session,
		cache:          c,
		routes:         opts.Routes,
		defaultTTL:     opts.DefaultTTL,
		maxRetries:     max(0, opts.MaxRetries),
		retryBase:      retryBase,
		onUnauthorized: opts.OnUnauthorized,
		metrics:        newGatewayMetrics(opts.Metrics),
	}, nil
}

// OptionsFromConfig returns the Options described by the client
// configuration. Session, Cache and Clock are left for the caller.
func OptionsFromConfig(cfg common.ClientConfig) Options {
	return Options{
		BaseURL:    cfg.Endpoint,
		Timeout:    cfg.Timeout(),
		Routes:     DefaultRoutes(cfg),
		DefaultTTL: time.Duration(cfg.DefaultTTLSecond) * time.Second,
		MaxRetries: cfg.RetryCount,
		RetryBase:  cfg.RetryBase(),
	}
}

// Request performs method on path with body encoded as JSON (nil for none;
// []byte and json.RawMessage are sent as is).
//
// Thread-safety: This method is thread-safe.
func (g *Gateway) Request(ctx context.Context, method, path string, body any) (*Response, error) {
	method = strings.ToUpper(method)

	payload, err := encodeBody(body)
	if err != nil {
		return nil, &Error{Kind: KindParse, Msg: "cannot encode request body", Err: err}
	}

	if method != http.MethodGet {
		return g.do(ctx, method, path, payload)
	}

	// GET: consult the cache first
	key := CacheKey(method, path, payload)
	if cached, ok := g.cache.Get(key); ok {
		g.metrics.cacheHits.Inc()
		return &Response{Status: http.StatusOK, Body: cached, FromCache: true}, nil
	}
	g.metrics.cacheMisses.Inc()

	resp, err := g.doWithRetry(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.NotModified:
		if cached, ok := g.cache.Get(key); ok {
			return &Response{Status: http.StatusOK, Body: cached, FromCache: true, NotModified: true}, nil
		}
		return resp, nil
	case len(bytes.TrimSpace(resp.Body)) > 0 && !json.Valid(resp.Body):
		Logger.Warningf("GET %s returned a non-JSON body, treating it as empty", path)
		g.metrics.degraded.Inc()
		resp.Body = nil
		resp.Degraded = true
		return resp, nil
	}

	if ttl := g.ttlFor(path); ttl > 0 {
		g.cache.Set(key, resp.Body, ttl)
	}
	return resp, nil
}

// Invalidate drops every cached response whose key contains prefix (all when empty).
func (g *Gateway) Invalidate(prefix string) int {
	n := g.cache.Clear(prefix)
	Logger.Debugf("invalidated %d cached responses for %q", n, prefix)
	return n
}

// Close releases idle connections.
func (g *Gateway) Close() {
	g.client.CloseIdleConnections()
}

// doWithRetry performs an idempotent request, retrying retryable failures
// with exponential backoff and jitter
func (g *Gateway) doWithRetry(ctx context.Context, method, path string, payload []byte) (*Response, error) {
	if g.maxRetries == 0 {
		return g.do(ctx, method, path, payload)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.retryBase
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxInterval = 10 * g.retryBase

	attempt := 0
	resp, err := backoff.Retry(ctx, func() (*Response, error) {
		attempt++
		if attempt > 1 {
			g.metrics.retries.Inc()
		}
		resp, err := g.do(ctx, method, path, payload)
		if err != nil {
			var gwErr *Error
			if errors.As(err, &gwErr) && !gwErr.Retryable() {
				return nil, backoff.Permanent(err)
			}
			Logger.Debugf("%s %s failed (attempt %d/%d): %v", method, path, attempt, g.maxRetries+1, err)
			return nil, err
		}
		return resp, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(g.maxRetries+1)),
	)
	if err != nil {
		var gwErr *Error
		if errors.As(err, &gwErr) {
			return nil, gwErr
		}
		// the context ended while waiting between attempts
		return nil, networkError(err)
	}
	return resp, nil
}

// do performs exactly one network round trip
func (g *Gateway) do(ctx context.Context, method, path string, payload []byte) (*Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, networkError(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Content-Type", "application/json")
	if g.session != nil {
		if id := g.session.ID(); id != "" {
			req.Header.Set(HeaderSessionID, id)
		}
	}

	start := time.Now()
	httpResp, err := g.client.Do(req)
	if err != nil {
		g.metrics.observe(method, 0, start)
		return nil, networkError(err)
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	raw, err := io.ReadAll(httpResp.Body)
	g.metrics.observe(method, httpResp.StatusCode, start)
	if err != nil {
		return nil, networkError(err)
	}

	if g.session != nil {
		if echoed := httpResp.Header.Get(HeaderSessionID); echoed != "" {
			g.session.Adopt(echoed)
		}
	}

	status := httpResp.StatusCode
	switch {
	case status == http.StatusNotModified:
		return &Response{Status: status, Header: httpResp.Header, NotModified: true}, nil
	case status < 200 || status > 299:
		if status == http.StatusUnauthorized && g.onUnauthorized != nil {
			g.onUnauthorized()
		}
		gwErr := statusError(status, raw)
		Logger.Debugf("%s %s answered %d: %s", method, path, status, gwErr.Msg)
		return nil, gwErr
	}

	return &Response{Status: status, Body: raw, Header: httpResp.Header}, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(body)
	}
}

// Fetch performs a request and decodes the JSON answer into T. For GET calls
// an undecodable body degrades to the zero value of T. For other methods the
// parse error is returned with the raw body as payload.
func Fetch[T any](ctx context.Context, r Requester, method, path string, body any) (T, error) {
	var out T
	resp, err := r.Request(ctx, method, path, body)
	if err != nil {
		return out, err
	}
	if err := resp.Decode(&out); err != nil {
		if strings.EqualFold(method, http.MethodGet) {
			Logger.Warningf("GET %s returned an unexpected shape, treating it as empty: %v", path, err)
			var zero T
			return zero, nil
		}
		var gwErr *Error
		if errors.As(err, &gwErr) {
			gwErr.Payload = append(json.RawMessage(nil), resp.Body...)
		}
		return out, err
	}
	return out, nil
}

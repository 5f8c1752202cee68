package gateway

import (
	"strings"
	"time"

	"github.com/ValentinKolb/dShop/rpc/common"
)

// TTLRoute assigns a cache lifetime to every path containing Contains.
type TTLRoute struct {
	Contains string
	TTL      time.Duration
}

// DefaultRoutes returns the route table derived from the configuration. Cart
// routes come first so /api/cart never falls into a broader catalog match.
func DefaultRoutes(cfg common.ClientConfig) []TTLRoute {
	catalog := time.Duration(cfg.CatalogTTLSecond) * time.Second
	return []TTLRoute{
		{Contains: "/api/cart", TTL: time.Duration(cfg.CartTTLSecond) * time.Second},
		{Contains: "/api/products", TTL: catalog},
		{Contains: "/api/categories", TTL: catalog},
	}
}

// ttlFor returns the lifetime for path: the first matching route or the default
func (g *Gateway) ttlFor(path string) time.Duration {
	for _, r := range g.routes {
		if strings.Contains(path, r.Contains) {
			return r.TTL
		}
	}
	return g.defaultTTL
}

// CacheKey returns the response cache key of a request.
func CacheKey(method, path string, payload []byte) string {
	if len(payload) == 0 {
		return method + ":" + path
	}
	return method + ":" + path + ":" + string(payload)
}

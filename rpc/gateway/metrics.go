package gateway

import (
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

type gatewayMetrics struct {
	set         *metrics.Set
	cacheHits   *metrics.Counter
	cacheMisses *metrics.Counter
	retries     *metrics.Counter
	degraded    *metrics.Counter
}

func newGatewayMetrics(set *metrics.Set) *gatewayMetrics {
	if set == nil {
		set = metrics.NewSet()
	}
	return &gatewayMetrics{
		set:         set,
		cacheHits:   set.GetOrCreateCounter(`dshop_gateway_cache_hits_total`),
		cacheMisses: set.GetOrCreateCounter(`dshop_gateway_cache_misses_total`),
		retries:     set.GetOrCreateCounter(`dshop_gateway_retries_total`),
		degraded:    set.GetOrCreateCounter(`dshop_gateway_degraded_responses_total`),
	}
}

// observe records one finished network round trip. status 0 means no answer.
func (m *gatewayMetrics) observe(method string, status int, start time.Time) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`dshop_gateway_requests_total{method=%q,status="%d"}`, method, status)).Inc()
	m.set.GetOrCreateHistogram(fmt.Sprintf(`dshop_gateway_request_duration_seconds{method=%q}`, method)).UpdateDuration(start)
}

// Metrics returns the set the gateway records into.
func (g *Gateway) Metrics() *metrics.Set {
	return g.metrics.set
}

// WriteMetrics writes all gateway metrics in Prometheus text format.
func (g *Gateway) WriteMetrics(w io.Writer) {
	g.metrics.set.WritePrometheus(w)
}

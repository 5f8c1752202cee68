package cache

import (
	"strings"
	"time"

	"github.com/ValentinKolb/dShop/lib/platform"
	"github.com/puzpuzpuz/xsync/v3"
)

// entry is a stored value with its expiry metadata
type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

// live reports whether the entry is still valid at now
func (e entry[V]) live(now time.Time) bool {
	return now.Sub(e.storedAt) <= e.ttl
}

// TTLCache implements ICache on top of a concurrent map.
type TTLCache[V any] struct {
	data  *xsync.MapOf[string, entry[V]]
	clock platform.Clock
}

// New creates an empty TTLCache. A nil clock falls back to the system clock.
func New[V any](clock platform.Clock) *TTLCache[V] {
	if clock == nil {
		clock = platform.SystemClock{}
	}
	return &TTLCache[V]{
		data:  xsync.NewMapOf[string, entry[V]](),
		clock: clock,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see cache.ICache)
// --------------------------------------------------------------------------

func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	c.data.Store(key, entry[V]{
		value:    value,
		storedAt: c.clock.Now(),
		ttl:      ttl,
	})
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	var (
		value V
		ok    bool
		now   = c.clock.Now()
	)

	c.data.Compute(key, func(e entry[V], loaded bool) (entry[V], bool) {
		// case the key doesn't exist
		if !loaded {
			return e, true // delete so that no empty entry is created
		}

		// case expired -> evict
		if !e.live(now) {
			return e, true
		}

		value, ok = e.value, true
		return e, false
	})

	return value, ok
}

func (c *TTLCache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *TTLCache[V]) Clear(prefix string) int {
	if prefix == "" {
		n := c.data.Size()
		c.data.Clear()
		return n
	}

	removed := 0
	c.data.Range(func(key string, _ entry[V]) bool {
		if strings.Contains(key, prefix) {
			c.data.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

func (c *TTLCache[V]) Len() int {
	return c.data.Size()
}

package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"time"
)

// ErrMalformedSnapshot is returned by DecodeSnapshot when the persisted data
// does not have the expected shape.
var ErrMalformedSnapshot = errors.New("malformed app data snapshot")

// Snapshot is the aggregate app data the engine serves reads from.
type Snapshot struct {
	Products         []ProductSnapshot `json:"products"`
	FeaturedProducts []ProductSnapshot `json:"featuredProducts"`
	CartItems        []CartLineItem    `json:"cartItems"`
	Categories       []string          `json:"categories"`
	SessionID        string            `json:"sessionId"`
	LastFullSyncAt   time.Time         `json:"lastFullSyncAt"`
}

// Complete reports whether the snapshot has been fully synced at least once.
func (s Snapshot) Complete() bool {
	return !s.LastFullSyncAt.IsZero()
}

// Fresh reports whether the last full sync happened less than interval before now.
func (s Snapshot) Fresh(now time.Time, interval time.Duration) bool {
	return s.Complete() && now.Sub(s.LastFullSyncAt) < interval
}

// Clone returns a copy that shares no slices with s.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Products = append([]ProductSnapshot(nil), s.Products...)
	c.FeaturedProducts = append([]ProductSnapshot(nil), s.FeaturedProducts...)
	c.CartItems = CloneCart(s.CartItems)
	c.Categories = append([]string(nil), s.Categories...)
	return c
}

// Product returns the catalog entry for id.
func (s Snapshot) Product(id int64) (ProductSnapshot, bool) {
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	for _, p := range s.FeaturedProducts {
		if p.ID == id {
			return p, true
		}
	}
	return ProductSnapshot{}, false
}

// CategoriesOf returns the sorted set of non-empty categories of products.
func CategoriesOf(products []ProductSnapshot) []string {
	seen := make(map[string]struct{}, len(products))
	out := make([]string, 0)
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out
}

// DecodeSnapshot decodes a persisted snapshot. The products, featuredProducts
// and cartItems fields must be present and be arrays, otherwise
// ErrMalformedSnapshot is returned and the data must be discarded.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(data, &shape); err != nil {
		return Snapshot{}, errors.Join(ErrMalformedSnapshot, err)
	}
	for _, field := range []string{"products", "featuredProducts", "cartItems"} {
		raw := bytes.TrimSpace(shape[field])
		if len(raw) == 0 || raw[0] != '[' {
			return Snapshot{}, ErrMalformedSnapshot
		}
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, errors.Join(ErrMalformedSnapshot, err)
	}
	return s, nil
}

// EncodeSnapshot encodes s for persistence. Nil collections are written as
// empty arrays so DecodeSnapshot accepts the result.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	if s.Products == nil {
		s.Products = []ProductSnapshot{}
	}
	if s.FeaturedProducts == nil {
		s.FeaturedProducts = []ProductSnapshot{}
	}
	if s.CartItems == nil {
		s.CartItems = []CartLineItem{}
	}
	if s.Categories == nil {
		s.Categories = []string{}
	}
	return json.Marshal(s)
}

package model

import (
	"encoding/json"
	"fmt"
)

// Variant holds the free-form options of a cart line, e.g. {"selectedWeight": "500g"}.
type Variant map[string]any

// VariantKeyWeight is the variant option used to look up variant pricing.
const VariantKeyWeight = "selectedWeight"

// Key returns the canonical form used to compare variants. encoding/json sorts
// map keys, so structurally equal variants produce the same key. An empty or
// nil variant yields "".
func (v Variant) Key() string {
	if len(v) == 0 {
		return ""
	}
	b, err := json.Marshal(map[string]any(v))
	if err != nil {
		// unencodable values can only compare by identity of their printed form
		return fmt.Sprintf("%v", map[string]any(v))
	}
	return string(b)
}

// Equal reports whether v and o denote the same variant.
func (v Variant) Equal(o Variant) bool {
	return v.Key() == o.Key()
}

// IsEmpty reports whether the variant carries no options.
func (v Variant) IsEmpty() bool { return len(v) == 0 }

// Option returns the option value for key if it is a string.
func (v Variant) Option(key string) (string, bool) {
	s, ok := v[key].(string)
	return s, ok
}

// Clone returns a shallow copy.
func (v Variant) Clone() Variant {
	if v == nil {
		return nil
	}
	c := make(Variant, len(v))
	for k, val := range v {
		c[k] = val
	}
	return c
}

package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ProductSnapshot is a product as returned by the catalog endpoints.
type ProductSnapshot struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Category      string  `json:"category,omitempty"`
	Price         Amount  `json:"price"`
	ComparePrice  *Amount `json:"comparePrice,omitempty"`
	StockQuantity *int    `json:"stockQuantity,omitempty"`
	Featured      bool    `json:"featured,omitempty"`
	ImageURL      string  `json:"imageUrl,omitempty"`
	// VariantPricing maps a variant option (e.g. "500g") to its price. The API
	// sends it either as an object or as a string holding the JSON object; it is
	// kept raw and decoded on demand.
	VariantPricing json.RawMessage `json:"variantPricing,omitempty"`
}

// Stock returns the available quantity and whether the product tracks stock.
func (p ProductSnapshot) Stock() (int, bool) {
	if p.StockQuantity == nil {
		return 0, false
	}
	return *p.StockQuantity, true
}

// VariantPrices decodes VariantPricing. It returns nil when the product has no
// variant pricing or when the payload cannot be decoded.
func (p ProductSnapshot) VariantPrices() map[string]Amount {
	raw := bytes.TrimSpace(p.VariantPricing)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	// string form: the object was stored JSON-encoded
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil
		}
		raw = []byte(inner)
	}

	var prices map[string]Amount
	if err := json.Unmarshal(raw, &prices); err != nil {
		return nil
	}
	return prices
}

// UnitPrice returns the price of one unit in the given variant. It falls back
// to the base price when the variant has no weight option, when the product has
// no (decodable) variant pricing, or when the option is not priced.
func (p ProductSnapshot) UnitPrice(v Variant) Amount {
	weight, ok := v.Option(VariantKeyWeight)
	if !ok || weight == "" {
		return p.Price
	}
	prices := p.VariantPrices()
	if price, ok := prices[weight]; ok {
		return price
	}
	return p.Price
}

// Matches reports whether the lower-cased query is contained in the name,
// description or category.
func (p ProductSnapshot) Matches(lowerQuery string) bool {
	return strings.Contains(strings.ToLower(p.Name), lowerQuery) ||
		strings.Contains(strings.ToLower(p.Description), lowerQuery) ||
		strings.Contains(strings.ToLower(p.Category), lowerQuery)
}

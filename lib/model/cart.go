package model

import "time"

// CartLineItem is one line of the session's cart.
type CartLineItem struct {
	ID        LineID           `json:"id"`
	ProductID int64            `json:"productId"`
	Quantity  int              `json:"quantity"`
	MetaData  Variant          `json:"metaData,omitempty"`
	SessionID string           `json:"sessionId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	Product   *ProductSnapshot `json:"product,omitempty"`
}

// Same reports whether the line holds productID in variant v.
func (c CartLineItem) Same(productID int64, v Variant) bool {
	return c.ProductID == productID && c.MetaData.Equal(v)
}

// CloneCart returns a copy of items whose metadata maps are not shared.
func CloneCart(items []CartLineItem) []CartLineItem {
	if items == nil {
		return nil
	}
	out := make([]CartLineItem, len(items))
	for i, it := range items {
		it.MetaData = it.MetaData.Clone()
		out[i] = it
	}
	return out
}

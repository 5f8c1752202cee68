package dataservice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/ValentinKolb/dShop/rpc/gateway"
)

// addRequest is the body of POST /api/cart
type addRequest struct {
	ProductID int64         `json:"productId"`
	Quantity  int           `json:"quantity"`
	SessionID string        `json:"sessionId"`
	MetaData  model.Variant `json:"metaData,omitempty"`
}

// --------------------------------------------------------------------------
// Cart mutations
// --------------------------------------------------------------------------

// AddToCart appends a provisional line and posts it. On success the cart is
// replaced with the server's cart (re-fetched, or the POST answer if the
// re-fetch fails). On failure exactly the provisional line is removed and the
// original error is returned.
func (s *Service) AddToCart(ctx context.Context, productID int64, quantity int, variant model.Variant) ([]model.CartLineItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	sessionID := s.session.ID()
	if variant.IsEmpty() {
		variant = nil
	}

	// optimistic: provisional line
	s.mu.Lock()
	s.nextTemp++
	tmp := model.Provisional(s.nextTemp)
	line := model.CartLineItem{
		ID:        tmp,
		ProductID: productID,
		Quantity:  quantity,
		MetaData:  variant.Clone(),
		SessionID: sessionID,
		CreatedAt: s.clock.Now(),
	}
	if p, ok := s.snap.Product(productID); ok {
		line.Product = &p
	}
	s.snap.CartItems = append(s.snap.CartItems, line)
	s.pending[tmp] = struct{}{}
	s.mu.Unlock()

	m := s.begin(MutationAdd, tmp)
	s.emitSnapshot()

	resp, err := s.gw.Request(ctx, http.MethodPost, pathCart, addRequest{
		ProductID: productID,
		Quantity:  quantity,
		SessionID: sessionID,
		MetaData:  variant,
	})
	if err != nil {
		s.mu.Lock()
		delete(s.pending, tmp)
		s.snap.CartItems = removeLine(s.snap.CartItems, tmp)
		s.mu.Unlock()

		s.finish(m, MutationRolledBack, err)
		s.persist()
		s.emitSnapshot()
		return nil, err
	}

	var posted []model.CartLineItem
	if derr := resp.Decode(&posted); derr != nil {
		posted = nil
	}

	s.gw.Invalidate(pathCart)
	items, ferr := gateway.Fetch[[]model.CartLineItem](ctx, s.gw, http.MethodGet, pathCart, nil)
	if ferr != nil {
		Logger.Warningf("re-fetching cart after add failed, using POST answer: %v", ferr)
		items = posted
	}

	s.mu.Lock()
	delete(s.pending, tmp)
	if ferr == nil || posted != nil {
		s.snap.CartItems = s.withPending(items)
	}
	// otherwise the provisional line stays until the next load replaces it
	out := model.CloneCart(s.snap.CartItems)
	s.mu.Unlock()

	s.finish(m, MutationConfirmed, nil)
	s.persist()
	s.emitSnapshot()
	return out, nil
}

// UpdateCartItem sets the quantity of a confirmed line optimistically and
// sends it. The cart is re-fetched afterward whether the call failed or not;
// if that re-fetch fails too after a failed call, the previous quantity is
// restored.
func (s *Service) UpdateCartItem(ctx context.Context, id model.LineID, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	serverID, ok := id.ServerID()
	if !ok {
		return model.ErrProvisionalLine
	}

	s.mu.Lock()
	idx := indexOf(s.snap.CartItems, id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLineNotFound, id)
	}
	prev := s.snap.CartItems[idx].Quantity
	s.snap.CartItems[idx].Quantity = quantity
	s.mu.Unlock()

	m := s.begin(MutationUpdate, id)
	s.emitSnapshot()

	_, err := s.gw.Request(ctx, http.MethodPut, fmt.Sprintf("%s/%d", pathCart, serverID), map[string]int{"quantity": quantity})

	if !s.refetchCart(ctx) && err != nil {
		s.mu.Lock()
		if i := indexOf(s.snap.CartItems, id); i >= 0 {
			s.snap.CartItems[i].Quantity = prev
		}
		s.mu.Unlock()
	}

	if err != nil {
		s.finish(m, MutationRolledBack, err)
	} else {
		s.finish(m, MutationConfirmed, nil)
	}
	s.persist()
	s.emitSnapshot()
	return err
}

// RemoveFromCart removes a confirmed line optimistically and deletes it on
// the server. The cart is re-fetched afterward; if the call and the re-fetch
// both fail, the line is restored at its position.
func (s *Service) RemoveFromCart(ctx context.Context, id model.LineID) error {
	serverID, ok := id.ServerID()
	if !ok {
		return model.ErrProvisionalLine
	}

	s.mu.Lock()
	idx := indexOf(s.snap.CartItems, id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLineNotFound, id)
	}
	removed := s.snap.CartItems[idx]
	s.snap.CartItems = removeLine(s.snap.CartItems, id)
	s.mu.Unlock()

	m := s.begin(MutationRemove, id)
	s.emitSnapshot()

	_, err := s.gw.Request(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", pathCart, serverID), nil)

	if !s.refetchCart(ctx) && err != nil {
		s.mu.Lock()
		if indexOf(s.snap.CartItems, id) < 0 {
			at := min(idx, len(s.snap.CartItems))
			s.snap.CartItems = append(s.snap.CartItems[:at:at], append([]model.CartLineItem{removed}, s.snap.CartItems[at:]...)...)
		}
		s.mu.Unlock()
	}

	if err != nil {
		s.finish(m, MutationRolledBack, err)
	} else {
		s.finish(m, MutationConfirmed, nil)
	}
	s.persist()
	s.emitSnapshot()
	return err
}

// ClearCart empties the cart optimistically and clears it on the server. On
// failure the cart is re-fetched, or restored if that fails too.
func (s *Service) ClearCart(ctx context.Context) error {
	sessionID := s.session.ID()

	s.mu.Lock()
	prev := s.snap.CartItems
	s.snap.CartItems = []model.CartLineItem{}
	s.pending = make(map[model.LineID]struct{})
	s.mu.Unlock()

	m := s.begin(MutationClear, model.LineID{})
	s.emitSnapshot()

	_, err := s.gw.Request(ctx, http.MethodDelete, pathCart+"/clear/"+url.PathEscape(sessionID), nil)
	s.gw.Invalidate(pathCart)

	if err != nil {
		if !s.refetchCart(ctx) {
			s.mu.Lock()
			s.snap.CartItems = prev
			s.mu.Unlock()
		}
		s.finish(m, MutationRolledBack, err)
	} else {
		s.finish(m, MutationConfirmed, nil)
	}
	s.persist()
	s.emitSnapshot()
	return err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// refetchCart replaces the cart with the server's cart and reports success
func (s *Service) refetchCart(ctx context.Context) bool {
	s.gw.Invalidate(pathCart)
	items, err := gateway.Fetch[[]model.CartLineItem](ctx, s.gw, http.MethodGet, pathCart, nil)
	if err != nil {
		Logger.Warningf("re-fetching cart failed: %v", err)
		return false
	}
	s.mu.Lock()
	s.snap.CartItems = s.withPending(items)
	s.mu.Unlock()
	return true
}

// begin starts a mutation and publishes its pending state
func (s *Service) begin(kind MutationKind, line model.LineID) *Mutation {
	m := &Mutation{
		ID:    s.nextMutation.Add(1),
		Kind:  kind,
		Line:  line,
		State: MutationPending,
	}
	s.count("mutations.started")
	ev := *m
	s.emit(Event{Type: EventMutation, Mutation: &ev})
	return m
}

// finish moves m into its final state and publishes it
func (s *Service) finish(m *Mutation, to MutationState, cause error) {
	if err := m.transition(to, cause); err != nil {
		Logger.Errorf("%s: %v", m, err)
		return
	}
	switch to {
	case MutationConfirmed:
		s.count("mutations.confirmed")
	case MutationRolledBack:
		s.count("mutations.rolledback")
		Logger.Warningf("%s rolled back: %v", m, cause)
	}
	ev := *m
	s.emit(Event{Type: EventMutation, Mutation: &ev})
}

func indexOf(items []model.CartLineItem, id model.LineID) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// removeLine returns items without the line id, leaving the input untouched
func removeLine(items []model.CartLineItem, id model.LineID) []model.CartLineItem {
	out := make([]model.CartLineItem, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

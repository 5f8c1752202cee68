// Package fakeapi provides an in-process fake of the storefront REST API for
// tests. It keeps a catalog and per-session carts in memory, counts calls per
// route, and can inject failures or hold requests in flight.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dShop/lib/model"
)

// Route names (the mux patterns) used by Calls, FailNext, Hold and Bodies.
const (
	RouteProducts      = "GET /api/products"
	RouteFeatured      = "GET /api/products/featured"
	RouteSearch        = "GET /api/products/search"
	RouteProduct       = "GET /api/products/{id}"
	RouteCart          = "GET /api/cart"
	RouteCartAdd       = "POST /api/cart"
	RouteCartUpdate    = "PUT /api/cart/{id}"
	RouteCartRemove    = "DELETE /api/cart/{id}"
	RouteCartClear     = "DELETE /api/cart/clear/{sessionId}"
	RouteOrderCreate   = "POST /api/orders/create"
	RouteOrderVerify   = "POST /api/orders/verify-payment"
	ValidSignature     = "valid-signature"
	sessionHeader      = "Session-Id"
	defaultSessionName = "anonymous"
)

type failure struct {
	status int
	times  int
}

// Server is the fake API.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	products []model.ProductSnapshot
	carts    map[string][]model.CartLineItem
	nextLine int64
	nextOrd  int64
	calls    map[string]int
	bodies   map[string][]map[string]any
	failures map[string]*failure
	holds    map[string]chan struct{}
	sessions map[string][]string // session ids seen per route
}

// New starts a fake API serving products. The server is closed on test cleanup.
func New(t testing.TB, products ...model.ProductSnapshot) *Server {
	s := &Server{
		products: append([]model.ProductSnapshot(nil), products...),
		carts:    make(map[string][]model.CartLineItem),
		calls:    make(map[string]int),
		bodies:   make(map[string][]map[string]any),
		failures: make(map[string]*failure),
		holds:    make(map[string]chan struct{}),
		sessions: make(map[string][]string),
	}

	mux := http.NewServeMux()
	s.handle(mux, RouteProducts, s.listProducts)
	s.handle(mux, RouteFeatured, s.listFeatured)
	s.handle(mux, RouteSearch, s.search)
	s.handle(mux, RouteProduct, s.getProduct)
	s.handle(mux, RouteCart, s.getCart)
	s.handle(mux, RouteCartAdd, s.addToCart)
	s.handle(mux, RouteCartUpdate, s.updateCart)
	s.handle(mux, RouteCartRemove, s.removeFromCart)
	s.handle(mux, RouteCartClear, s.clearCart)
	s.handle(mux, RouteOrderCreate, s.createOrder)
	s.handle(mux, RouteOrderVerify, s.verifyPayment)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// --------------------------------------------------------------------------
// Test controls
// --------------------------------------------------------------------------

// Calls returns how often route was requested (including failed calls).
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Bodies returns the decoded JSON bodies received on route.
func (s *Server) Bodies(route string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.bodies[route]...)
}

// Sessions returns the Session-Id headers received on route.
func (s *Server) Sessions(route string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sessions[route]...)
}

// FailNext makes the next times calls of route answer status.
func (s *Server) FailNext(route string, status, times int) {
	s.mu.Lock()
	s.failures[route] = &failure{status: status, times: times}
	s.mu.Unlock()
}

// Hold blocks every call of route until the returned release func is called.
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[route] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, route)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// SetProducts replaces the catalog.
func (s *Server) SetProducts(products ...model.ProductSnapshot) {
	s.mu.Lock()
	s.products = append([]model.ProductSnapshot(nil), products...)
	s.mu.Unlock()
}

// AddProduct appends a product to the catalog.
func (s *Server) AddProduct(p model.ProductSnapshot) {
	s.mu.Lock()
	s.products = append(s.products, p)
	s.mu.Unlock()
}

// Cart returns the server-side cart of session.
func (s *Server) Cart(session string) []model.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneCart(s.carts[session])
}

// WaitForCalls polls until route was requested at least n times or timeout passes.
func (s *Server) WaitForCalls(route string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.Calls(route) >= n {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return s.Calls(route) >= n
}

// --------------------------------------------------------------------------
// Plumbing
// --------------------------------------------------------------------------

func (s *Server) handle(mux *http.ServeMux, route string, h http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}

		s.mu.Lock()
		s.calls[route]++
		if body != nil {
			s.bodies[route] = append(s.bodies[route], body)
		}
		s.sessions[route] = append(s.sessions[route], r.Header.Get(sessionHeader))
		hold := s.holds[route]
		var status int
		if f := s.failures[route]; f != nil && f.times > 0 {
			f.times--
			status = f.status
		}
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}

		if status != 0 {
			writeJSON(w, status, map[string]string{"message": fmt.Sprintf("injected failure %d", status)})
			return
		}

		h(w, r.WithContext(withBody(r.Context(), body)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sessionOf(r *http.Request) string {
	if id := r.Header.Get(sessionHeader); id != "" {
		return id
	}
	if id, ok := bodyOf(r)["sessionId"].(string); ok && id != "" {
		return id
	}
	return defaultSessionName
}

// --------------------------------------------------------------------------
// Catalog handlers
// --------------------------------------------------------------------------

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	s.mu.Lock()
	out := make([]model.ProductSnapshot, 0, len(s.products))
	for _, p := range s.products {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listFeatured(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]model.ProductSnapshot, 0)
	for _, p := range s.products {
		if p.Featured {
			out = append(out, p)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	s.mu.Lock()
	out := make([]model.ProductSnapshot, 0)
	for _, p := range s.products {
		if q != "" && p.Matches(q) {
			out = append(out, p)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}
	s.mu.Lock()
	p, ok := s.product(id)
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product not found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// product must be called with s.mu held
func (s *Server) product(id int64) (model.ProductSnapshot, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return model.ProductSnapshot{}, false
}

// --------------------------------------------------------------------------
// Cart handlers
// --------------------------------------------------------------------------

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	session := sessionOf(r)
	s.mu.Lock()
	out := s.cartView(session)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// cartView must be called with s.mu held
func (s *Server) cartView(session string) []model.CartLineItem {
	out := make([]model.CartLineItem, 0, len(s.carts[session]))
	for _, it := range s.carts[session] {
		if p, ok := s.product(it.ProductID); ok {
			it.Product = &p
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID.Value < out[j].ID.Value })
	return out
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	body := bodyOf(r)
	session := sessionOf(r)

	productID, _ := body["productId"].(float64)
	quantity, _ := body["quantity"].(float64)
	meta, _ := body["metaData"].(map[string]any)
	variant := model.Variant(meta)

	if quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Quantity must be positive"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.product(int64(productID))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product not found"})
		return
	}

	items := s.carts[session]
	for i := range items {
		if items[i].Same(p.ID, variant) {
			newQty := items[i].Quantity + int(quantity)
			if stock, tracked := p.Stock(); tracked && newQty > stock {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Insufficient stock"})
				return
			}
			items[i].Quantity = newQty
			writeJSON(w, http.StatusOK, s.cartView(session))
			return
		}
	}

	if stock, tracked := p.Stock(); tracked && int(quantity) > stock {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Insufficient stock"})
		return
	}

	s.nextLine++
	if variant.IsEmpty() {
		variant = nil
	}
	s.carts[session] = append(items, model.CartLineItem{
		ID:        model.Confirmed(s.nextLine),
		ProductID: p.ID,
		Quantity:  int(quantity),
		MetaData:  variant,
		SessionID: session,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	})
	writeJSON(w, http.StatusOK, s.cartView(session))
}

func (s *Server) updateCart(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cart item id"})
		return
	}
	quantity, _ := bodyOf(r)["quantity"].(float64)
	session := sessionOf(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[session]
	for i := range items {
		if items[i].ID.Value != id {
			continue
		}
		if quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Quantity must be positive"})
			return
		}
		items[i].Quantity = int(quantity)
		writeJSON(w, http.StatusOK, items[i])
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Cart item not found"})
}

func (s *Server) removeFromCart(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cart item id"})
		return
	}
	session := sessionOf(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[session]
	for i := range items {
		if items[i].ID.Value == id {
			s.carts[session] = append(items[:i:i], items[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Item removed from cart"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Cart item not found"})
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	session := r.PathValue("sessionId")
	s.mu.Lock()
	delete(s.carts, session)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

// --------------------------------------------------------------------------
// Order handlers
// --------------------------------------------------------------------------

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	body := bodyOf(r)
	items, _ := body["items"].([]any)
	if len(items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Order has no items"})
		return
	}

	s.mu.Lock()
	s.nextOrd++
	n := s.nextOrd
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"orderId":     fmt.Sprintf("order_%d", n),
		"orderNumber": fmt.Sprintf("ORD-%05d", n),
	})
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	if sig, _ := bodyOf(r)["signature"].(string); sig != ValidSignature {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid payment signature"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

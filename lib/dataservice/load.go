package dataservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/ValentinKolb/dShop/rpc/gateway"
	gometrics "github.com/rcrowley/go-metrics"
	"golang.org/x/sync/errgroup"
)

const (
	pathProducts = "/api/products"
	pathCart     = "/api/cart"
	pathSearch   = "/api/products/search"
)

// --------------------------------------------------------------------------
// Batched load
// --------------------------------------------------------------------------

// LoadAppData returns the snapshot. Unless force is set, a fresh and complete
// snapshot is returned without I/O. Otherwise the cached catalog and cart
// responses are dropped and one batched load of both runs; concurrent callers
// share it. A failing cart fetch keeps the previous cart, a failing catalog
// fetch fails the load.
func (s *Service) LoadAppData(ctx context.Context, force bool) (model.Snapshot, error) {
	if !force {
		s.mu.RLock()
		if s.snap.Fresh(s.clock.Now(), s.syncInterval) {
			snap := s.snap.Clone()
			s.mu.RUnlock()
			return snap, nil
		}
		s.mu.RUnlock()
	}

	// a full load advances lastFullSyncAt, so it must not be answered from cached responses
	s.gw.Invalidate(pathProducts)
	s.gw.Invalidate(pathCart)

	// the shared load must not die with the context of whoever started it
	ch := s.loads.DoChan(loadKey, func() (any, error) {
		return s.loadAll(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return model.Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.Snapshot{}, res.Err
		}
		return res.Val.(model.Snapshot).Clone(), nil
	}
}

// loadAll fetches catalog and cart concurrently and installs the result
func (s *Service) loadAll(ctx context.Context) (model.Snapshot, error) {
	start := time.Now()
	sessionID := s.session.ID()

	var (
		products []model.ProductSnapshot
		cart     []model.CartLineItem
		cartErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := gateway.Fetch[[]model.ProductSnapshot](gctx, s.gw, http.MethodGet, pathProducts, nil)
		if err != nil {
			return fmt.Errorf("loading catalog: %w", err)
		}
		products = p
		return nil
	})
	g.Go(func() error {
		// cart failures are tolerated and must not cancel the catalog fetch
		cart, cartErr = gateway.Fetch[[]model.CartLineItem](gctx, s.gw, http.MethodGet, pathCart, nil)
		return nil
	})

	if err := g.Wait(); err != nil {
		s.count("loads.failed")
		Logger.Warningf("loading app data failed: %v", err)
		return model.Snapshot{}, err
	}
	if cartErr != nil {
		Logger.Warningf("loading cart failed, keeping previous cart: %v", cartErr)
	}
	if products == nil {
		products = []model.ProductSnapshot{}
	}

	s.mu.Lock()
	now := s.clock.Now()
	s.snap.Products = products
	s.snap.FeaturedProducts = s.featured(products)
	s.snap.Categories = model.CategoriesOf(products)
	if cartErr == nil {
		s.snap.CartItems = s.withPending(cart)
	}
	s.snap.SessionID = sessionID
	if now.After(s.snap.LastFullSyncAt) {
		s.snap.LastFullSyncAt = now
	}
	out := s.snap.Clone()
	s.mu.Unlock()

	s.persist()
	s.count("loads.completed")
	gometrics.GetOrRegisterTimer("loads.duration", s.metrics).UpdateSince(start)
	Logger.Debugf("loaded %d products and %d cart items in %s", len(out.Products), len(out.CartItems), time.Since(start))
	s.emitSnapshot()
	return out, nil
}

// featured returns the flagged products or, if none is flagged, the first few
func (s *Service) featured(products []model.ProductSnapshot) []model.ProductSnapshot {
	out := make([]model.ProductSnapshot, 0)
	for _, p := range products {
		if p.Featured {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		return out
	}
	n := min(len(products), s.featuredLimit)
	return append(out, products[:n]...)
}

// withPending returns server appended with the provisional lines of in-flight
// adds. Must be called with s.mu held.
func (s *Service) withPending(server []model.CartLineItem) []model.CartLineItem {
	out := make([]model.CartLineItem, 0, len(server)+len(s.pending))
	out = append(out, server...)
	for _, it := range s.snap.CartItems {
		if _, ok := s.pending[it.ID]; ok {
			out = append(out, it)
		}
	}
	return out
}

// ensure loads the snapshot if needed. A failed load is tolerated when an
// older complete snapshot can serve the read.
func (s *Service) ensure(ctx context.Context) (model.Snapshot, error) {
	snap, err := s.LoadAppData(ctx, false)
	if err == nil {
		return snap, nil
	}
	cached := s.CachedData()
	if cached.Complete() {
		Logger.Warningf("serving stale snapshot: %v", err)
		return cached, nil
	}
	return model.Snapshot{}, err
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// GetProducts returns the catalog, filtered by category when it is not empty.
func (s *Service) GetProducts(ctx context.Context, category string) ([]model.ProductSnapshot, error) {
	snap, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}
	if category == "" {
		return snap.Products, nil
	}
	out := make([]model.ProductSnapshot, 0)
	for _, p := range snap.Products {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetFeaturedProducts returns the featured products.
func (s *Service) GetFeaturedProducts(ctx context.Context) ([]model.ProductSnapshot, error) {
	snap, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return snap.FeaturedProducts, nil
}

// GetCategories returns the sorted set of catalog categories.
func (s *Service) GetCategories(ctx context.Context) ([]string, error) {
	snap, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Categories, nil
}

// GetCart returns the cart lines of the snapshot.
func (s *Service) GetCart(ctx context.Context) ([]model.CartLineItem, error) {
	snap, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return snap.CartItems, nil
}

// GetProduct returns a product from the catalog or, if it is not there, from
// the API. A product fetched individually is appended to the catalog. Every
// returned product is recorded as recently viewed.
func (s *Service) GetProduct(ctx context.Context, id int64) (model.ProductSnapshot, error) {
	snap, _ := s.ensure(ctx)
	if p, ok := snap.Product(id); ok {
		s.recent.touch(p)
		return p, nil
	}

	p, err := gateway.Fetch[model.ProductSnapshot](ctx, s.gw, http.MethodGet, fmt.Sprintf("%s/%d", pathProducts, id), nil)
	if gateway.IsStatus(err, http.StatusNotFound) {
		return model.ProductSnapshot{}, errors.Join(ErrProductNotFound, err)
	}
	if err != nil {
		return model.ProductSnapshot{}, err
	}
	if p.ID == 0 {
		return model.ProductSnapshot{}, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}

	s.mu.Lock()
	if _, ok := s.snap.Product(p.ID); !ok {
		s.snap.Products = append(s.snap.Products, p)
		s.snap.Categories = model.CategoriesOf(s.snap.Products)
	}
	s.mu.Unlock()

	s.persist()
	s.recent.touch(p)
	s.emitSnapshot()
	return p, nil
}

// PeekProduct returns a best-effort product hint from the snapshot or the
// recently viewed products without any network I/O.
func (s *Service) PeekProduct(id int64) (model.ProductSnapshot, bool) {
	s.mu.RLock()
	p, ok := s.snap.Product(id)
	s.mu.RUnlock()
	if ok {
		return p, true
	}
	return s.recent.get(id)
}

// RecentProducts returns the recently viewed products, most recent first.
func (s *Service) RecentProducts() []model.ProductSnapshot {
	return s.recent.list()
}

// SearchProducts matches query case-insensitively against name, description
// and category of the local catalog. Only when nothing matches locally the API
// search is used. A blank query yields an empty result.
func (s *Service) SearchProducts(ctx context.Context, query string) ([]model.ProductSnapshot, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []model.ProductSnapshot{}, nil
	}

	snap, err := s.ensure(ctx)
	if err == nil {
		out := make([]model.ProductSnapshot, 0)
		for _, p := range snap.Products {
			if p.Matches(q) {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	remote, rerr := gateway.Fetch[[]model.ProductSnapshot](ctx, s.gw, http.MethodGet, pathSearch+"?q="+url.QueryEscape(strings.TrimSpace(query)), nil)
	if rerr != nil {
		return nil, rerr
	}
	if remote == nil {
		remote = []model.ProductSnapshot{}
	}
	return remote, nil
}

// Refresh clears all cached responses and forces a full reload.
func (s *Service) Refresh(ctx context.Context) (model.Snapshot, error) {
	n := s.gw.Invalidate("")
	Logger.Debugf("refresh dropped %d cached responses", n)
	return s.LoadAppData(ctx, true)
}

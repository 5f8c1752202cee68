package dataservice

import (
	"encoding/json"
	"sync"

	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/ValentinKolb/dShop/lib/util"
)

const (
	// KeyRecentProducts is the storage key of the recently viewed products.
	KeyRecentProducts = "recent_products"

	recentLimit = 20
)

// recentProducts is a bounded, persisted recency list of products
type recentProducts struct {
	mu       sync.Mutex
	store    store.IStore
	limit    int
	seq      uint64
	order    *util.MapHeap[int64]
	products map[int64]model.ProductSnapshot
}

func newRecentProducts(st store.IStore, limit int) *recentProducts {
	r := &recentProducts{
		store:    st,
		limit:    limit,
		order:    util.NewMapHeap[int64](),
		products: make(map[int64]model.ProductSnapshot),
	}
	r.load()
	return r
}

// touch records p as the most recently viewed product
func (r *recentProducts) touch(p model.ProductSnapshot) {
	r.mu.Lock()
	r.add(p)
	data, err := json.Marshal(r.listLocked())
	r.mu.Unlock()

	if err != nil || r.store == nil {
		return
	}
	if err := r.store.Set(KeyRecentProducts, data); err != nil {
		Logger.Warningf("persisting recent products failed: %v", err)
	}
}

func (r *recentProducts) get(id int64) (model.ProductSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	return p, ok
}

// list returns the products, most recent first
func (r *recentProducts) list() []model.ProductSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked()
}

func (r *recentProducts) listLocked() []model.ProductSnapshot {
	keys := r.order.KeysDescending()
	out := make([]model.ProductSnapshot, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.products[k])
	}
	return out
}

// add must be called with r.mu held
func (r *recentProducts) add(p model.ProductSnapshot) {
	r.seq++
	r.order.AddItem(p.ID, r.seq)
	r.products[p.ID] = p
	for r.order.Len() > r.limit {
		if id, _, ok := r.order.PopMin(); ok {
			delete(r.products, id)
		}
	}
}

// load restores the persisted list
func (r *recentProducts) load() {
	if r.store == nil {
		return
	}
	data, ok, err := r.store.Get(KeyRecentProducts)
	if err != nil {
		Logger.Warningf("reading recent products failed: %v", err)
		return
	}
	if !ok {
		return
	}
	var products []model.ProductSnapshot
	if err := json.Unmarshal(data, &products); err != nil {
		Logger.Warningf("discarding malformed recent products: %v", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// stored most recent first, so replay oldest first
	for i := len(products) - 1; i >= 0; i-- {
		r.add(products[i])
	}
}

package dataservice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/ValentinKolb/dShop/lib/platform"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/ValentinKolb/dShop/rpc/gateway"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"
	"golang.org/x/sync/singleflight"
)

var Logger = logger.GetLogger("dataservice")

const (
	// KeySnapshot is the storage key of the persisted snapshot.
	KeySnapshot = "app_data_snapshot"

	DefaultSyncInterval  = 5 * time.Minute
	DefaultFeaturedLimit = 8

	loadKey = "loadAppData"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrLineNotFound    = errors.New("cart line not found")
	ErrProductNotFound = errors.New("product not found")
)

// --------------------------------------------------------------------------
// Interface Definitions for dependency injection
// --------------------------------------------------------------------------

// Gateway is the part of the HTTP gateway the service uses.
type Gateway interface {
	gateway.Requester
	// Invalidate drops cached responses whose key contains prefix (all when empty).
	Invalidate(prefix string) int
}

// Session supplies the current session identity.
type Session interface {
	ID() string
}

// --------------------------------------------------------------------------
// Service
// --------------------------------------------------------------------------

// Options configures a Service. Zero values select the defaults.
type Options struct {
	// SyncInterval is the snapshot freshness window and the background
	// resync period (default 5m).
	SyncInterval time.Duration
	// FeaturedLimit caps the fallback featured list when no product is
	// flagged as featured (default 8).
	FeaturedLimit int
	// Store persists the snapshot and the recent products. Optional.
	Store store.IStore
	// Clock decides freshness (default system clock).
	Clock platform.Clock
	// Visibility gates the background resync (default always visible).
	Visibility platform.Visibility
	// Metrics receives counters and timers (default a private registry).
	Metrics gometrics.Registry
}

// Service is the data service.
type Service struct {
	gw            Gateway
	session       Session
	store         store.IStore
	clock         platform.Clock
	visibility    platform.Visibility
	syncInterval  time.Duration
	featuredLimit int
	metrics       gometrics.Registry

	mu         sync.RWMutex
	snap       model.Snapshot
	nextTemp   int64
	pending    map[model.LineID]struct{} // provisional lines of in-flight adds
	rehydrated bool

	loads        singleflight.Group
	nextMutation atomic.Uint64
	listeners    *xsync.MapOf[uint64, func(Event)]
	nextListener atomic.Uint64
	recent       *recentProducts

	bgMu    sync.Mutex
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// New creates the service and rehydrates the snapshot and the recent products
// from opts.Store.
func New(gw Gateway, session Session, opts Options) *Service {
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = DefaultSyncInterval
	}
	if opts.FeaturedLimit <= 0 {
		opts.FeaturedLimit = DefaultFeaturedLimit
	}
	if opts.Clock == nil {
		opts.Clock = platform.SystemClock{}
	}
	if opts.Visibility == nil {
		opts.Visibility = platform.AlwaysVisible{}
	}
	if opts.Metrics == nil {
		opts.Metrics = gometrics.NewRegistry()
	}

	s := &Service{
		gw:            gw,
		session:       session,
		store:         opts.Store,
		clock:         opts.Clock,
		visibility:    opts.Visibility,
		syncInterval:  opts.SyncInterval,
		featuredLimit: opts.FeaturedLimit,
		metrics:       opts.Metrics,
		pending:       make(map[model.LineID]struct{}),
		listeners:     xsync.NewMapOf[uint64, func(Event)](),
		recent:        newRecentProducts(opts.Store, recentLimit),
	}
	s.rehydrate()
	return s
}

// CachedData returns a copy of the current snapshot without any I/O.
func (s *Service) CachedData() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Subscribe registers fn for snapshot and mutation events. fn runs on the
// goroutine that caused the event and must not block. The returned function
// removes the subscription.
func (s *Service) Subscribe(fn func(Event)) (unsubscribe func()) {
	id := s.nextListener.Add(1)
	s.listeners.Store(id, fn)
	return func() { s.listeners.Delete(id) }
}

// Metrics returns the registry holding load and mutation metrics.
func (s *Service) Metrics() gometrics.Registry {
	return s.metrics
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (s *Service) emit(ev Event) {
	s.listeners.Range(func(_ uint64, fn func(Event)) bool {
		fn(ev)
		return true
	})
}

func (s *Service) emitSnapshot() {
	s.emit(Event{Type: EventSnapshot})
}

func (s *Service) count(name string) {
	gometrics.GetOrRegisterCounter(name, s.metrics).Inc(1)
}

// rehydrate restores the persisted snapshot. Malformed data is discarded.
func (s *Service) rehydrate() {
	if s.store == nil {
		return
	}
	data, ok, err := s.store.Get(KeySnapshot)
	if err != nil {
		Logger.Warningf("reading persisted snapshot failed, starting empty: %v", err)
		return
	}
	if !ok {
		return
	}

	snap, err := model.DecodeSnapshot(data)
	if err != nil {
		Logger.Warningf("discarding persisted snapshot: %v", err)
		if err := s.store.Delete(KeySnapshot); err != nil {
			Logger.Warningf("deleting persisted snapshot failed: %v", err)
		}
		return
	}

	// provisional lines belong to mutations of a previous run that never finished
	confirmed := snap.CartItems[:0]
	for _, it := range snap.CartItems {
		if !it.ID.IsProvisional() {
			confirmed = append(confirmed, it)
		}
	}
	snap.CartItems = confirmed

	s.mu.Lock()
	s.snap = snap
	s.rehydrated = true
	s.mu.Unlock()
	Logger.Infof("rehydrated snapshot with %d products and %d cart items (synced %s)",
		len(snap.Products), len(snap.CartItems), snap.LastFullSyncAt.Format(time.RFC3339))
}

// persist writes the snapshot to the store. Failures are logged only.
func (s *Service) persist() {
	if s.store == nil {
		return
	}
	s.mu.RLock()
	data, err := model.EncodeSnapshot(s.snap)
	s.mu.RUnlock()
	if err != nil {
		Logger.Errorf("encoding snapshot failed: %v", err)
		return
	}
	if err := s.store.Set(KeySnapshot, data); err != nil {
		Logger.Warningf("persisting snapshot failed, continuing in memory: %v", err)
	}
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ValentinKolb/dShop/lib/cache"
	"github.com/ValentinKolb/dShop/lib/cart"
	"github.com/ValentinKolb/dShop/lib/checkout"
	"github.com/ValentinKolb/dShop/lib/dataservice"
	"github.com/ValentinKolb/dShop/lib/platform"
	"github.com/ValentinKolb/dShop/lib/session"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/ValentinKolb/dShop/lib/store/fstore"
	"github.com/ValentinKolb/dShop/lib/store/lstore"
	"github.com/ValentinKolb/dShop/lib/store/rstore"
	"github.com/ValentinKolb/dShop/rpc/common"
	"github.com/ValentinKolb/dShop/rpc/gateway"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger("engine")

const pathCart = "/api/cart"

// Deps are the host facilities of an engine. Nil fields select defaults.
type Deps struct {
	// Page is the page-lifetime store (default: in memory).
	Page store.IStore
	// Durable is the durable store (default: opened from the configuration).
	Durable store.IStore
	// Clock (default: system clock).
	Clock platform.Clock
	// Visibility gates background resyncs (default: always visible).
	Visibility platform.Visibility
	// Notifier receives cart notices (default: logged).
	Notifier cart.Notifier
	// HTTPClient overrides the gateway's client.
	HTTPClient *http.Client
}

// Engine is one storefront client.
type Engine struct {
	Config   common.ClientConfig
	Session  *session.Manager
	Cache    *cache.TTLCache[[]byte]
	Gateway  *gateway.Gateway
	Data     *dataservice.Service
	Cart     *cart.Controller
	Checkout *checkout.Service
	Metrics  gometrics.Registry

	page      store.IStore
	durable   store.IStore
	closeOnce sync.Once
	closeErr  error
}

// OpenDurableStore opens the durable store selected by cfg.
func OpenDurableStore(cfg common.StorageConfig) (store.IStore, error) {
	switch cfg.Type {
	case common.StorageTypeFile:
		return fstore.NewFileStore(cfg.DataDir)
	case common.StorageTypeRedis:
		return rstore.NewRedisStore(rstore.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	case common.StorageTypeMemory:
		return lstore.NewLocalStore(), nil
	default:
		return nil, fmt.Errorf("invalid storage type %q", cfg.Type)
	}
}

// New wires an engine. The stores passed in deps are owned by the engine
// afterward and closed by Close.
func New(cfg common.ClientConfig, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if deps.Clock == nil {
		deps.Clock = platform.SystemClock{}
	}
	if deps.Page == nil {
		deps.Page = lstore.NewLocalStore()
	}
	if deps.Durable == nil {
		durable, err := OpenDurableStore(cfg.Storage)
		if err != nil {
			// degraded: the session and the snapshot live for this process only
			Logger.Warningf("opening %s storage failed, continuing in memory: %v", cfg.Storage.Type, err)
			durable = lstore.NewLocalStore()
		}
		deps.Durable = durable
	}

	e := &Engine{
		Config:  cfg,
		Session: session.NewManager(deps.Page, deps.Durable, deps.Clock),
		Cache:   cache.New[[]byte](deps.Clock),
		Metrics: gometrics.NewRegistry(),
		page:    deps.Page,
		durable: deps.Durable,
	}

	opts := gateway.OptionsFromConfig(cfg)
	opts.HTTPClient = deps.HTTPClient
	opts.Session = e.Session
	opts.Cache = e.Cache
	opts.Clock = deps.Clock
	opts.OnUnauthorized = func() {
		Logger.Warningf("API answered 401, dropping session %s", e.Session.Current())
		e.Session.Clear()
	}
	gw, err := gateway.New(opts)
	if err != nil {
		e.closeStores()
		return nil, err
	}
	e.Gateway = gw

	// cached cart responses belong to the identity that fetched them
	e.Session.OnChange(func(string) {
		gw.Invalidate(pathCart)
	})

	e.Data = dataservice.New(gw, e.Session, dataservice.Options{
		SyncInterval: cfg.SyncInterval(),
		Store:        deps.Durable,
		Clock:        deps.Clock,
		Visibility:   deps.Visibility,
		Metrics:      e.Metrics,
	})
	e.Cart = cart.New(e.Data, cart.Options{
		Debounce: cfg.DebounceWindow(),
		Notifier: deps.Notifier,
	})
	e.Checkout = checkout.New(gw, e.Data, e.Cart)

	Logger.Debugf("engine ready for %s", cfg.Endpoint)
	return e, nil
}

// Start launches the background resync.
func (e *Engine) Start(ctx context.Context) {
	e.Data.Start(ctx)
}

// Close flushes pending cart changes, stops the background work and closes
// the stores. It is safe to call Close more than once.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		var errs []error
		if err := e.Cart.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing cart: %w", err))
		}
		e.Data.Close()
		e.Gateway.Close()
		if err := e.closeStores(); err != nil {
			errs = append(errs, err)
		}
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}

func (e *Engine) closeStores() error {
	var errs []error
	for _, s := range []store.IStore{e.page, e.durable} {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

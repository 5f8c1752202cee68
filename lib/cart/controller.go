package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dShop/lib/dataservice"
	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("cart")

// DefaultDebounce is the quiet period after which a quantity change is sent.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by mutations after Close.
var ErrClosed = errors.New("cart controller is closed")

// --------------------------------------------------------------------------
// Interface Definitions for dependency injection
// --------------------------------------------------------------------------

// DataService is the part of the data service the controller drives.
type DataService interface {
	CachedData() model.Snapshot
	PeekProduct(id int64) (model.ProductSnapshot, bool)
	AddToCart(ctx context.Context, productID int64, quantity int, variant model.Variant) ([]model.CartLineItem, error)
	UpdateCartItem(ctx context.Context, id model.LineID, quantity int) error
	RemoveFromCart(ctx context.Context, id model.LineID) error
	ClearCart(ctx context.Context) error
}

// --------------------------------------------------------------------------
// Controller
// --------------------------------------------------------------------------

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	// Debounce is the per-line quiet period for quantity updates (default 500ms).
	Debounce time.Duration
	// Notifier receives user notices (default: the package logger).
	Notifier Notifier
}

// Controller is the cart controller.
type Controller struct {
	data     DataService
	notifier Notifier
	debounce time.Duration

	// ctx bounds the debounced sends, it is cancelled by Close
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	overlay map[model.LineID]int // quantities shown locally until confirmed
	queued  map[model.LineID]int // quantities waiting to be sent
	timers  map[model.LineID]*debounced
	closed  bool
	wg      sync.WaitGroup // scheduled timer callbacks
}

// New creates a controller on data.
func New(data DataService, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Notifier == nil {
		opts.Notifier = logNotifier{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		data:     data,
		notifier: opts.Notifier,
		debounce: opts.Debounce,
		ctx:      ctx,
		cancel:   cancel,
		overlay:  make(map[model.LineID]int),
		queued:   make(map[model.LineID]int),
		timers:   make(map[model.LineID]*debounced),
	}
}

// --------------------------------------------------------------------------
// Mutations
// --------------------------------------------------------------------------

// AddToCart adds quantity of productID in variant. If the same product and
// variant is already in the cart its quantity is increased instead. The
// resulting quantity is clamped to the known stock; the user is notified
// when the request had to be reduced. Nothing is sent when no unit can be
// added.
func (c *Controller) AddToCart(ctx context.Context, productID int64, quantity int, variant model.Variant) error {
	if quantity <= 0 {
		return dataservice.ErrInvalidQuantity
	}
	if c.isClosed() {
		return ErrClosed
	}

	product, known := c.data.PeekProduct(productID)
	name := productName(product, known, productID)

	existing, found := c.find(productID, variant)
	current := 0
	if found {
		current = existing.Quantity
	}

	desired := current + quantity
	if stock, tracked := product.Stock(); known && tracked && desired > stock {
		desired = stock
		if desired <= current {
			c.notifier.Notify(Notice{
				Level:   LevelWarning,
				Title:   "Out of stock",
				Message: fmt.Sprintf("No more %s available (%d in cart)", name, current),
			})
			return nil
		}
		c.notifier.Notify(Notice{
			Level:   LevelWarning,
			Title:   "Quantity adjusted",
			Message: fmt.Sprintf("Only %d of %s available, added %d", stock, name, desired-current),
		})
	}

	var err error
	if found && !existing.ID.IsProvisional() {
		// the line is set directly, a pending debounced value is superseded
		c.cancelDebounce(existing.ID)
		err = c.data.UpdateCartItem(ctx, existing.ID, desired)
	} else {
		_, err = c.data.AddToCart(ctx, productID, desired-current, variant)
	}
	if err != nil {
		c.notifyError("Could not add to cart", err)
		return err
	}

	c.notifier.Notify(Notice{
		Level:   LevelInfo,
		Title:   "Added to cart",
		Message: fmt.Sprintf("%s is now %d in your cart", name, desired),
	})
	return nil
}

// UpdateQuantity sets the quantity of line id. The new value is visible
// through Items at once and sent after the line was quiet for the debounce
// window, so rapid changes result in one request carrying the last value. A
// quantity of zero or less removes the line.
func (c *Controller) UpdateQuantity(ctx context.Context, id model.LineID, quantity int) error {
	if quantity <= 0 {
		return c.RemoveFromCart(ctx, id)
	}
	if id.IsProvisional() {
		return model.ErrProvisionalLine
	}

	line, ok := c.line(id)
	if !ok {
		return fmt.Errorf("%w: %s", dataservice.ErrLineNotFound, id)
	}

	product, known := c.productOf(line)
	if stock, tracked := product.Stock(); known && tracked && quantity > stock {
		c.notifier.Notify(Notice{
			Level:   LevelWarning,
			Title:   "Quantity adjusted",
			Message: fmt.Sprintf("Only %d of %s available", stock, productName(product, known, line.ProductID)),
		})
		quantity = stock
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.overlay[id] = quantity
	c.queued[id] = quantity
	if d, ok := c.timers[id]; ok && d.timer.Stop() {
		c.wg.Done()
	}
	d := &debounced{}
	c.wg.Add(1)
	d.timer = time.AfterFunc(c.debounce, func() {
		defer c.wg.Done()
		if err := c.flushOne(c.ctx, id, d); err != nil {
			c.notifyError("Could not update quantity", err)
		}
	})
	c.timers[id] = d
	return nil
}

// RemoveFromCart removes line id. A pending quantity change of the line is
// dropped.
func (c *Controller) RemoveFromCart(ctx context.Context, id model.LineID) error {
	if id.IsProvisional() {
		return model.ErrProvisionalLine
	}
	if c.isClosed() {
		return ErrClosed
	}
	c.cancelDebounce(id)

	if err := c.data.RemoveFromCart(ctx, id); err != nil {
		c.notifyError("Could not remove item", err)
		return err
	}
	c.notifier.Notify(Notice{Level: LevelInfo, Title: "Removed from cart", Message: "The item was removed from your cart"})
	return nil
}

// ClearCart empties the cart and drops all pending quantity changes.
func (c *Controller) ClearCart(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}

	c.mu.Lock()
	for id, d := range c.timers {
		if d.timer.Stop() {
			c.wg.Done()
		}
		delete(c.timers, id)
	}
	clear(c.queued)
	clear(c.overlay)
	c.mu.Unlock()

	if err := c.data.ClearCart(ctx); err != nil {
		c.notifyError("Could not clear cart", err)
		return err
	}
	c.notifier.Notify(Notice{Level: LevelInfo, Title: "Cart cleared", Message: "All items were removed from your cart"})
	return nil
}

// Flush sends all pending quantity changes now. Lines are sent concurrently;
// the returned error joins the failures.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	ids := make([]model.LineID, 0, len(c.queued))
	for id := range c.queued {
		ids = append(ids, id)
		if d, ok := c.timers[id]; ok {
			if d.timer.Stop() {
				c.wg.Done()
			}
			delete(c.timers, id)
		}
	}
	c.mu.Unlock()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, id := range ids {
		g.Go(func() error {
			if err := c.flushOne(ctx, id, nil); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Close flushes pending changes and stops the controller. Further mutations
// fail with ErrClosed.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.Flush(ctx)
	c.wg.Wait()
	c.cancel()
	return err
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// Items returns the cart lines with pending quantity changes applied.
func (c *Controller) Items() []model.CartLineItem {
	items := c.data.CachedData().CartItems
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range items {
		if q, ok := c.overlay[items[i].ID]; ok {
			items[i].Quantity = q
		}
	}
	return items
}

// GetCartTotal sums unit price times quantity over all lines. The unit price
// honors variant pricing of the product when the line carries a variant.
func (c *Controller) GetCartTotal() model.Amount {
	var total float64
	for _, it := range c.Items() {
		product, ok := c.productOf(it)
		if !ok {
			continue
		}
		total += product.UnitPrice(it.MetaData).Float() * float64(it.Quantity)
	}
	return model.Amount(total)
}

// GetCartCount sums the quantities of all lines.
func (c *Controller) GetCartCount() int {
	n := 0
	for _, it := range c.Items() {
		n += it.Quantity
	}
	return n
}

// IsInCart reports whether productID in variant is in the cart.
func (c *Controller) IsInCart(productID int64, variant model.Variant) bool {
	_, ok := c.find(productID, variant)
	return ok
}

// GetCartItemQuantity returns the quantity of productID in variant (0 if absent).
func (c *Controller) GetCartItemQuantity(productID int64, variant model.Variant) int {
	if it, ok := c.find(productID, variant); ok {
		return it.Quantity
	}
	return 0
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// debounced is one scheduled send of a line
type debounced struct {
	timer *time.Timer
}

// flushOne sends the queued quantity of id, if any. A timer callback passes
// its own schedule and does nothing once that schedule was replaced or
// dropped; Flush passes nil.
func (c *Controller) flushOne(ctx context.Context, id model.LineID, owner *debounced) error {
	c.mu.Lock()
	if owner != nil {
		if c.timers[id] != owner {
			c.mu.Unlock()
			return nil
		}
		delete(c.timers, id)
	}
	qty, ok := c.queued[id]
	delete(c.queued, id)
	c.mu.Unlock()
	if !ok {
		return nil
	}

	err := c.data.UpdateCartItem(ctx, id, qty)

	c.mu.Lock()
	if _, requeued := c.queued[id]; !requeued && c.overlay[id] == qty {
		delete(c.overlay, id)
	}
	c.mu.Unlock()

	if err != nil {
		Logger.Warningf("sending quantity %d for line %s failed: %v", qty, id, err)
		return err
	}
	return nil
}

// cancelDebounce drops a pending quantity change of id
func (c *Controller) cancelDebounce(id model.LineID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.timers[id]; ok {
		if d.timer.Stop() {
			c.wg.Done()
		}
		delete(c.timers, id)
	}
	delete(c.queued, id)
	delete(c.overlay, id)
}

func (c *Controller) find(productID int64, variant model.Variant) (model.CartLineItem, bool) {
	for _, it := range c.Items() {
		if it.Same(productID, variant) {
			return it, true
		}
	}
	return model.CartLineItem{}, false
}

func (c *Controller) line(id model.LineID) (model.CartLineItem, bool) {
	for _, it := range c.Items() {
		if it.ID == id {
			return it, true
		}
	}
	return model.CartLineItem{}, false
}

// productOf returns the product embedded in the line or, failing that, the
// data service's best guess
func (c *Controller) productOf(it model.CartLineItem) (model.ProductSnapshot, bool) {
	if it.Product != nil {
		return *it.Product, true
	}
	return c.data.PeekProduct(it.ProductID)
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) notifyError(title string, err error) {
	c.notifier.Notify(Notice{Level: LevelError, Title: title, Message: err.Error()})
}

func productName(p model.ProductSnapshot, known bool, id int64) string {
	if known && p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("product %d", id)
}

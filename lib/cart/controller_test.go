package cart

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dShop/lib/dataservice"
	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/ValentinKolb/dShop/lib/testing/fakeapi"
	"github.com/ValentinKolb/dShop/rpc/gateway"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

type staticSession string

func (s staticSession) ID() string    { return string(s) }
func (s staticSession) Adopt(string) {}

type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (l *noticeLog) Notify(n Notice) {
	l.mu.Lock()
	l.notices = append(l.notices, n)
	l.mu.Unlock()
}

func (l *noticeLog) count(level Level, title string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, it := range l.notices {
		if it.Level == level && it.Title == title {
			n++
		}
	}
	return n
}

type testEnv struct {
	api     *fakeapi.Server
	svc     *dataservice.Service
	ctrl    *Controller
	notices *noticeLog
}

func testProducts() []model.ProductSnapshot {
	three := 3
	return []model.ProductSnapshot{
		{ID: 7, Name: "House Blend", Category: "Coffee", Price: 10,
			VariantPricing: json.RawMessage(`{"500g": 10, "1kg": "18.50"}`)},
		{ID: 8, Name: "Limited Roast", Category: "Coffee", Price: 20, StockQuantity: &three},
		{ID: 9, Name: "Filter Papers", Category: "Equipment", Price: 2.5},
	}
}

func newTestEnv(t *testing.T, debounce time.Duration) *testEnv {
	t.Helper()
	api := fakeapi.New(t, testProducts()...)
	session := staticSession("session_cart")
	gw, err := gateway.New(gateway.Options{BaseURL: api.URL, Session: session})
	if err != nil {
		t.Fatalf("Failed to create gateway: %v", err)
	}
	svc := dataservice.New(gw, session, dataservice.Options{})
	if _, err := svc.LoadAppData(context.Background(), false); err != nil {
		t.Fatalf("LoadAppData failed: %v", err)
	}

	notices := &noticeLog{}
	ctrl := New(svc, Options{Debounce: debounce, Notifier: notices})
	t.Cleanup(func() {
		_ = ctrl.Close(context.Background())
		svc.Close()
	})
	return &testEnv{api: api, svc: svc, ctrl: ctrl, notices: notices}
}

func weight(w string) model.Variant {
	return model.Variant{model.VariantKeyWeight: w}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestVariantMatching(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond)
	ctx := context.Background()

	if err := env.ctrl.AddToCart(ctx, 7, 1, weight("500g")); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	if err := env.ctrl.AddToCart(ctx, 7, 1, weight("1kg")); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	if n := len(env.ctrl.Items()); n != 2 {
		t.Fatalf("Expected 2 distinct lines for different variants, got %d", n)
	}

	if err := env.ctrl.AddToCart(ctx, 7, 2, weight("500g")); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	items := env.ctrl.Items()
	if len(items) != 2 {
		t.Fatalf("Expected the same variant to increase the existing line, got %d lines", len(items))
	}
	if q := env.ctrl.GetCartItemQuantity(7, weight("500g")); q != 3 {
		t.Errorf("Expected quantity 3 for 500g, got %d", q)
	}
	if q := env.ctrl.GetCartItemQuantity(7, weight("1kg")); q != 1 {
		t.Errorf("Expected quantity 1 for 1kg, got %d", q)
	}

	// no metadata only matches lines without metadata
	if env.ctrl.IsInCart(7, nil) {
		t.Error("Expected product 7 without variant not to be in the cart")
	}
	if err := env.ctrl.AddToCart(ctx, 7, 1, nil); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	if !env.ctrl.IsInCart(7, model.Variant{}) {
		t.Error("Expected an empty variant to match the line without metadata")
	}
	if n := len(env.api.Cart("session_cart")); n != 3 {
		t.Errorf("Expected 3 server lines, got %d", n)
	}
}

func TestStockClamp(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond)
	ctx := context.Background()

	if err := env.ctrl.AddToCart(ctx, 8, 10, nil); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	if q := env.ctrl.GetCartItemQuantity(8, nil); q != 3 {
		t.Errorf("Expected quantity clamped to 3, got %d", q)
	}
	if n := env.notices.count(LevelWarning, "Quantity adjusted"); n != 1 {
		t.Errorf("Expected 1 adjustment notice, got %d", n)
	}

	// nothing left to add
	if err := env.ctrl.AddToCart(ctx, 8, 1, nil); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	if n := env.notices.count(LevelWarning, "Out of stock"); n != 1 {
		t.Errorf("Expected 1 out of stock notice, got %d", n)
	}
	if n := env.api.Calls(fakeapi.RouteCartAdd); n != 1 {
		t.Errorf("Expected no request for an exhausted product, got %d adds", n)
	}
}

func TestDebounceCoalescing(t *testing.T) {
	env := newTestEnv(t, 50*time.Millisecond)
	ctx := context.Background()

	if err := env.ctrl.AddToCart(ctx, 9, 1, nil); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	id := env.ctrl.Items()[0].ID

	for _, q := range []int{2, 3, 4} {
		if err := env.ctrl.UpdateQuantity(ctx, id, q); err != nil {
			t.Fatalf("UpdateQuantity(%d) failed: %v", q, err)
		}
		if got := env.ctrl.GetCartItemQuantity(9, nil); got != q {
			t.Errorf("Expected quantity %d to be visible at once, got %d", q, got)
		}
	}
	if n := env.api.Calls(fakeapi.RouteCartUpdate); n != 0 {
		t.Errorf("Expected no update within the debounce window, got %d", n)
	}

	if !env.api.WaitForCalls(fakeapi.RouteCartUpdate, 1, 2*time.Second) {
		t.Fatal("Expected the debounced update to be sent")
	}
	time.Sleep(100 * time.Millisecond)

	bodies := env.api.Bodies(fakeapi.RouteCartUpdate)
	if len(bodies) != 1 {
		t.Fatalf("Expected exactly 1 update call, got %d", len(bodies))
	}
	if q, _ := bodies[0]["quantity"].(float64); q != 4 {
		t.Errorf("Expected the update to carry quantity 4, got %v", bodies[0]["quantity"])
	}
	if q := env.api.Cart("session_cart")[0].Quantity; q != 4 {
		t.Errorf("Expected server quantity 4, got %d", q)
	}
}

// A callback whose schedule was replaced must leave the newer value queued.
func TestReplacedScheduleDoesNotSend(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()

	if err := env.ctrl.AddToCart(ctx, 9, 1, nil); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	id := env.ctrl.Items()[0].ID

	if err := env.ctrl.UpdateQuantity(ctx, id, 2); err != nil {
		t.Fatalf("UpdateQuantity failed: %v", err)
	}
	env.ctrl.mu.Lock()
	stale := env.ctrl.timers[id]
	env.ctrl.mu.Unlock()

	if err := env.ctrl.UpdateQuantity(ctx, id, 5); err != nil {
		t.Fatalf("UpdateQuantity failed: %v", err)
	}

	// the replaced callback runs late, as if it had fired before being stopped
	if err := env.ctrl.flushOne(ctx, id, stale); err != nil {
		t.Fatalf("flushOne failed: %v", err)
	}
	if n := env.api.Calls(fakeapi.RouteCartUpdate); n != 0 {
		t.Errorf("Expected the replaced schedule not to send, got %d update calls", n)
	}

	env.ctrl.mu.Lock()
	current, scheduled := env.ctrl.timers[id]
	queued := env.ctrl.queued[id]
	env.ctrl.mu.Unlock()
	if !scheduled || current == stale {
		t.Error("Expected the newer schedule to stay registered")
	}
	if queued != 5 {
		t.Errorf("Expected quantity 5 to stay queued, got %d", queued)
	}

	if err := env.ctrl.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	bodies := env.api.Bodies(fakeapi.RouteCartUpdate)
	if len(bodies) != 1 {
		t.Fatalf("Expected exactly 1 update call, got %d", len(bodies))
	}
	if q, _ := bodies[0]["quantity"].(float64); q != 5 {
		t.Errorf("Expected the update to carry quantity 5, got %v", bodies[0]["quantity"])
	}
}

func TestFlushSendsPendingUpdates(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()

	if err := env.ctrl.AddToCart(ctx, 9, 1, nil); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	if err := env.ctrl.AddToCart(ctx, 7, 1, weight("1kg")); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	for _, it := range env.ctrl.Items() {
		if err := env.ctrl.UpdateQuantity(ctx, it.ID, 2); err != nil {
			t.Fatalf("UpdateQuantity failed: %v", err)
		}
	}

	if err := env.ctrl.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if n := env.api.Calls(fakeapi.RouteCartUpdate); n != 2 {
		t.Errorf("Expected 2 update calls after Flush, got %d", n)
	}
	if n := env.ctrl.GetCartCount(); n != 4 {
		t.Errorf("Expected cart count 4, got %d", n)
	}
}

func TestCloseFlushes(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()

	if err := env.ctrl.AddToCart(ctx, 9, 1, nil); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	id := env.ctrl.Items()[0].ID
	if err := env.ctrl.UpdateQuantity(ctx, id, 5); err != nil {
		t.Fatalf("UpdateQuantity failed: %v", err)
	}

	if err := env.ctrl.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if q := env.api.Cart("session_cart")[0].Quantity; q != 5 {
		t.Errorf("Expected Close to send quantity 5, got %d", q)
	}
	if err := env.ctrl.AddToCart(ctx, 9, 1, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}

func TestUpdateQuantityEdgeCases(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond)
	ctx := context.Background()

	if err := env.ctrl.AddToCart(ctx, 8, 1, nil); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	id := env.ctrl.Items()[0].ID

	if err := env.ctrl.UpdateQuantity(ctx, model.Provisional(1), 2); !errors.Is(err, model.ErrProvisionalLine) {
		t.Errorf("Expected ErrProvisionalLine, got %v", err)
	}
	if err := env.ctrl.UpdateQuantity(ctx, model.Confirmed(999), 2); !errors.Is(err, dataservice.ErrLineNotFound) {
		t.Errorf("Expected ErrLineNotFound, got %v", err)
	}

	// clamped to stock
	if err := env.ctrl.UpdateQuantity(ctx, id, 9); err != nil {
		t.Fatalf("UpdateQuantity failed: %v", err)
	}
	if q := env.ctrl.GetCartItemQuantity(8, nil); q != 3 {
		t.Errorf("Expected quantity clamped to 3, got %d", q)
	}
	if err := env.ctrl.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// zero removes
	if err := env.ctrl.UpdateQuantity(ctx, id, 0); err != nil {
		t.Fatalf("UpdateQuantity failed: %v", err)
	}
	if n := len(env.ctrl.Items()); n != 0 {
		t.Errorf("Expected the line to be removed, got %d lines", n)
	}
	if n := env.api.Calls(fakeapi.RouteCartRemove); n != 1 {
		t.Errorf("Expected 1 remove call, got %d", n)
	}
}

func TestFailedUpdateNotifies(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	ctx := context.Background()

	if err := env.ctrl.AddToCart(ctx, 9, 1, nil); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	id := env.ctrl.Items()[0].ID

	env.api.FailNext(fakeapi.RouteCartUpdate, http.StatusBadRequest, 1)
	if err := env.ctrl.UpdateQuantity(ctx, id, 2); err != nil {
		t.Fatalf("UpdateQuantity failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.notices.count(LevelError, "Could not update quantity") == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if n := env.notices.count(LevelError, "Could not update quantity"); n != 1 {
		t.Fatalf("Expected 1 error notice, got %d", n)
	}
	if q := env.ctrl.GetCartItemQuantity(9, nil); q != 1 {
		t.Errorf("Expected the server quantity 1 after the failed update, got %d", q)
	}
}

func TestCartTotals(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond)
	ctx := context.Background()

	adds := []struct {
		id      int64
		qty     int
		variant model.Variant
	}{
		{7, 2, weight("500g")}, // 2 x 10
		{7, 1, weight("1kg")},  // 1 x 18.50
		{7, 1, weight("2kg")},  // unknown variant, base price 10
		{9, 4, nil},            // 4 x 2.5
	}
	for _, a := range adds {
		if err := env.ctrl.AddToCart(ctx, a.id, a.qty, a.variant); err != nil {
			t.Fatalf("AddToCart failed: %v", err)
		}
	}

	if total := env.ctrl.GetCartTotal().Float(); math.Abs(total-58.5) > 1e-9 {
		t.Errorf("Expected total 58.50, got %v", total)
	}
	if n := env.ctrl.GetCartCount(); n != 8 {
		t.Errorf("Expected count 8, got %d", n)
	}
}

func TestClearCart(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()

	if err := env.ctrl.AddToCart(ctx, 9, 1, nil); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	id := env.ctrl.Items()[0].ID
	if err := env.ctrl.UpdateQuantity(ctx, id, 3); err != nil {
		t.Fatalf("UpdateQuantity failed: %v", err)
	}

	if err := env.ctrl.ClearCart(ctx); err != nil {
		t.Fatalf("ClearCart failed: %v", err)
	}
	if n := env.ctrl.GetCartCount(); n != 0 {
		t.Errorf("Expected an empty cart, got count %d", n)
	}
	if err := env.ctrl.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if n := env.api.Calls(fakeapi.RouteCartUpdate); n != 0 {
		t.Errorf("Expected the pending update to be dropped, got %d calls", n)
	}
}

func TestNotifierFunc(t *testing.T) {
	var got Notice
	var n Notifier = NotifierFunc(func(x Notice) { got = x })
	n.Notify(Notice{Level: LevelWarning, Title: "t", Message: "m"})
	if got.String() != "[warning] t: m" {
		t.Errorf("Expected notice to be delivered, got %q", got.String())
	}
}

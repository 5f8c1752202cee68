package engine

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dShop/lib/cart"
	"github.com/ValentinKolb/dShop/lib/checkout"
	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/ValentinKolb/dShop/lib/testing/fakeapi"
	"github.com/ValentinKolb/dShop/rpc/common"
)

func testConfig(endpoint string, storage common.StorageConfig) common.ClientConfig {
	cfg := common.DefaultClientConfig()
	cfg.Endpoint = endpoint
	cfg.RetryBaseMillisecond = 1
	cfg.DebounceMillisecond = 10
	cfg.Storage = storage
	return cfg
}

func TestEngineLifecycle(t *testing.T) {
	api := fakeapi.New(t, model.ProductSnapshot{ID: 1, Name: "Espresso Beans", Price: 12.5})
	dir := t.TempDir()
	storage := common.StorageConfig{Type: common.StorageTypeFile, DataDir: dir}
	ctx := context.Background()

	var notices []cart.Notice
	e, err := New(testConfig(api.URL, storage), Deps{
		Notifier: cart.NotifierFunc(func(n cart.Notice) { notices = append(notices, n) }),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e.Start(ctx)

	if _, err := e.Data.LoadAppData(ctx, false); err != nil {
		t.Fatalf("LoadAppData failed: %v", err)
	}
	if err := e.Cart.AddToCart(ctx, 1, 2, nil); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	if len(notices) != 1 || notices[0].Title != "Added to cart" {
		t.Errorf("Expected an added notice, got %v", notices)
	}
	sessionID := e.Session.ID()
	if got := api.Sessions(fakeapi.RouteCartAdd); len(got) != 1 || got[0] != sessionID {
		t.Errorf("Expected Session-Id %q on the add call, got %v", sessionID, got)
	}

	if err := e.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := e.Close(ctx); err != nil {
		t.Errorf("Expected a second Close to succeed, got %v", err)
	}

	// a new engine on the same directory starts warm with the same session
	restored, err := New(testConfig(api.URL, storage), Deps{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer restored.Close(ctx)

	if id := restored.Session.ID(); id != sessionID {
		t.Errorf("Expected session %q to survive, got %q", sessionID, id)
	}
	if n := restored.Cart.GetCartCount(); n != 2 {
		t.Errorf("Expected the rehydrated cart count 2, got %d", n)
	}
	if total := restored.Cart.GetCartTotal(); total != 25 {
		t.Errorf("Expected the rehydrated total 25, got %s", total)
	}
}

func TestEngineUnauthorizedDropsSession(t *testing.T) {
	api := fakeapi.New(t, model.ProductSnapshot{ID: 1, Name: "Espresso Beans", Price: 12.5})
	e, err := New(testConfig(api.URL, common.StorageConfig{Type: common.StorageTypeMemory}), Deps{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close(context.Background())

	before := e.Session.ID()
	api.FailNext(fakeapi.RouteProducts, http.StatusUnauthorized, 1)
	if _, err := e.Data.LoadAppData(context.Background(), false); err == nil {
		t.Fatal("Expected the load to fail")
	}
	if after := e.Session.ID(); after == before {
		t.Errorf("Expected a new session after 401, still %q", after)
	}
}

func TestEngineSessionChangeDropsCachedCart(t *testing.T) {
	api := fakeapi.New(t, model.ProductSnapshot{ID: 1, Name: "Espresso Beans", Price: 12.5})
	e, err := New(testConfig(api.URL, common.StorageConfig{Type: common.StorageTypeMemory}), Deps{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close(context.Background())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := e.Gateway.Request(ctx, http.MethodGet, "/api/cart", nil); err != nil {
			t.Fatalf("Request failed: %v", err)
		}
	}
	if n := api.Calls(fakeapi.RouteCart); n != 1 {
		t.Fatalf("Expected the second cart read to be cached, got %d calls", n)
	}

	e.Session.Refresh()
	if _, err := e.Gateway.Request(ctx, http.MethodGet, "/api/cart", nil); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if n := api.Calls(fakeapi.RouteCart); n != 2 {
		t.Errorf("Expected a refreshed session to read the cart again, got %d calls", n)
	}

	e.Session.Clear()
	if _, err := e.Gateway.Request(ctx, http.MethodGet, "/api/cart", nil); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if n := api.Calls(fakeapi.RouteCart); n != 3 {
		t.Errorf("Expected a cleared session to read the cart again, got %d calls", n)
	}
}

func TestEngineVerifyPaymentDropsPendingQuantity(t *testing.T) {
	api := fakeapi.New(t, model.ProductSnapshot{ID: 1, Name: "Espresso Beans", Price: 12.5})
	cfg := testConfig(api.URL, common.StorageConfig{Type: common.StorageTypeMemory})
	cfg.DebounceMillisecond = 50

	var (
		mu      sync.Mutex
		notices []cart.Notice
	)
	e, err := New(cfg, Deps{
		Notifier: cart.NotifierFunc(func(n cart.Notice) {
			mu.Lock()
			notices = append(notices, n)
			mu.Unlock()
		}),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close(context.Background())
	ctx := context.Background()

	if _, err := e.Data.LoadAppData(ctx, false); err != nil {
		t.Fatalf("LoadAppData failed: %v", err)
	}
	if err := e.Cart.AddToCart(ctx, 1, 1, nil); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	order, err := e.Checkout.CreateOrder(ctx, checkout.ShippingFields{Name: "Ada"}, 0)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	// a quantity change is still waiting out the debounce when the payment succeeds
	if err := e.Cart.UpdateQuantity(ctx, e.Cart.Items()[0].ID, 3); err != nil {
		t.Fatalf("UpdateQuantity failed: %v", err)
	}
	err = e.Checkout.VerifyPayment(ctx, checkout.PaymentVerification{
		OrderID:   order.OrderID,
		PaymentID: "pay_1",
		Signature: fakeapi.ValidSignature,
	})
	if err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if n := api.Calls(fakeapi.RouteCartUpdate); n != 0 {
		t.Errorf("Expected the pending quantity change to be dropped, got %d update calls", n)
	}
	if n := e.Cart.GetCartCount(); n != 0 {
		t.Errorf("Expected an empty cart after payment, got count %d", n)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, n := range notices {
		if n.Level == cart.LevelError {
			t.Errorf("Expected no error notice after payment, got %s", n)
		}
	}
}

func TestEngineInvalidConfig(t *testing.T) {
	cfg := common.DefaultClientConfig()
	cfg.Endpoint = "not a url"
	if _, err := New(cfg, Deps{}); err == nil {
		t.Error("Expected an invalid endpoint to be rejected")
	}
}

func TestOpenDurableStore(t *testing.T) {
	tests := []struct {
		name    string
		cfg     common.StorageConfig
		wantErr bool
	}{
		{"memory", common.StorageConfig{Type: common.StorageTypeMemory}, false},
		{"file", common.StorageConfig{Type: common.StorageTypeFile, DataDir: t.TempDir()}, false},
		{"unknown", common.StorageConfig{Type: "tape"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := OpenDurableStore(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if s != nil {
				_ = s.Close()
			}
		})
	}
}

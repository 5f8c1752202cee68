package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/ValentinKolb/dShop/rpc/gateway"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("checkout")

const (
	pathCreate = "/api/orders/create"
	pathVerify = "/api/orders/verify-payment"
)

var (
	// ErrEmptyCart is returned when an order is created without confirmed lines.
	ErrEmptyCart = errors.New("cart has no confirmed items")
	// ErrPaymentRejected is returned when the API answers a verification
	// without success.
	ErrPaymentRejected = errors.New("payment was not verified")
)

// Snapshotter supplies the current app data snapshot.
type Snapshotter interface {
	CachedData() model.Snapshot
}

// CartClearer empties the cart once a payment went through. In the engine
// this is the cart controller, so pending quantity changes are dropped too.
type CartClearer interface {
	ClearCart(ctx context.Context) error
}

// --------------------------------------------------------------------------
// Wire types
// --------------------------------------------------------------------------

type ShippingFields struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country,omitempty"`
}

type OrderItem struct {
	ProductID int64         `json:"productId"`
	Quantity  int           `json:"quantity"`
	MetaData  model.Variant `json:"metaData,omitempty"`
}

type createRequest struct {
	Amount         model.Amount   `json:"amount"`
	ShippingFields ShippingFields `json:"shippingFields"`
	Items          []OrderItem    `json:"items"`
}

// CreatedOrder identifies an order created by the API.
type CreatedOrder struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}

// PaymentVerification is the payment provider's confirmation of an order.
type PaymentVerification struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

type verifyResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// --------------------------------------------------------------------------
// Service
// --------------------------------------------------------------------------

// Service creates orders and verifies payments.
type Service struct {
	gw   gateway.Requester
	data Snapshotter
	cart CartClearer
}

func New(gw gateway.Requester, data Snapshotter, cart CartClearer) *Service {
	return &Service{gw: gw, data: data, cart: cart}
}

// Items returns the order items of the confirmed cart lines.
func (s *Service) Items() []OrderItem {
	lines := s.data.CachedData().CartItems
	items := make([]OrderItem, 0, len(lines))
	for _, it := range lines {
		if it.ID.IsProvisional() {
			continue
		}
		items = append(items, OrderItem{ProductID: it.ProductID, Quantity: it.Quantity, MetaData: it.MetaData})
	}
	return items
}

// CreateOrder creates an order of the confirmed cart lines. A non-positive
// amount is replaced by the total of those lines.
func (s *Service) CreateOrder(ctx context.Context, shipping ShippingFields, amount model.Amount) (CreatedOrder, error) {
	items := s.Items()
	if len(items) == 0 {
		return CreatedOrder{}, ErrEmptyCart
	}
	if amount <= 0 {
		amount = s.total()
	}

	order, err := gateway.Fetch[CreatedOrder](ctx, s.gw, http.MethodPost, pathCreate, createRequest{
		Amount:         amount,
		ShippingFields: shipping,
		Items:          items,
	})
	if err != nil {
		return CreatedOrder{}, fmt.Errorf("creating order: %w", err)
	}
	if order.OrderID == "" {
		return CreatedOrder{}, fmt.Errorf("creating order: response carries no order id")
	}
	Logger.Infof("created order %s (%s) with %d items over %s", order.OrderID, order.OrderNumber, len(items), amount)
	return order, nil
}

// VerifyPayment verifies the payment of an order and clears the cart on
// success.
func (s *Service) VerifyPayment(ctx context.Context, v PaymentVerification) error {
	res, err := gateway.Fetch[verifyResponse](ctx, s.gw, http.MethodPost, pathVerify, v)
	if err != nil {
		return fmt.Errorf("verifying payment: %w", err)
	}
	if res.Success != nil && !*res.Success {
		return fmt.Errorf("%w: %s", ErrPaymentRejected, res.Message)
	}

	if err := s.cart.ClearCart(ctx); err != nil {
		Logger.Warningf("payment of order %s verified, clearing cart failed: %v", v.OrderID, err)
		return fmt.Errorf("payment verified, clearing cart: %w", err)
	}
	Logger.Infof("payment %s of order %s verified", v.PaymentID, v.OrderID)
	return nil
}

func (s *Service) total() model.Amount {
	var total float64
	for _, it := range s.data.CachedData().CartItems {
		if it.ID.IsProvisional() || it.Product == nil {
			continue
		}
		total += it.Product.UnitPrice(it.MetaData).Float() * float64(it.Quantity)
	}
	return model.Amount(total)
}

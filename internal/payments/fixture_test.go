package payments

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cod"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/testdb"
	pkgdb "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/razorpay"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const testKeySecret = "rzp_key_secret"

// stubGateway plays both sides of the gateway: it opens orders for checkout
// and answers payment lookups from a table the test controls.
type stubGateway struct {
	mu       sync.Mutex
	seq      int
	payments map[string]*razorpay.Payment
	fetchErr error
	fetches  int
}

func newStubGateway() *stubGateway {
	return &stubGateway{payments: map[string]*razorpay.Payment{}}
}

func (g *stubGateway) CreateOrder(_ context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return &razorpay.Order{ID: fmt.Sprintf("order_%d", g.seq), Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt}, nil
}

func (g *stubGateway) KeyID() string { return "rzp_test_key" }

func (g *stubGateway) FetchPayment(_ context.Context, id string) (*razorpay.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	payment, ok := g.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s unknown", id)
	}
	copied := *payment
	return &copied, nil
}

func (g *stubGateway) capture(paymentID, gatewayOrderID string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[paymentID] = &razorpay.Payment{ID: paymentID, OrderID: gatewayOrderID, Amount: amount, Status: razorpay.PaymentStatusCaptured}
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (m *recordingMetrics) PaymentVerification(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[outcome]++
}

func (m *recordingMetrics) count(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[outcome]
}

type recordingHook struct {
	mu     sync.Mutex
	events []orders.Event
	err    error
}

func (h *recordingHook) Name() string { return "recording" }

func (h *recordingHook) Handle(_ context.Context, event orders.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *recordingHook) ofType(t enums.OrderEventType) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type fixture struct {
	conn     *gorm.DB
	gateway  *stubGateway
	hook     *recordingHook
	metrics  *recordingMetrics
	orders   orders.Service
	payments *Service
	user     *models.User
	variantA *models.ProductVariant
	variantB *models.ProductVariant
}

// newFixture seeds a shopper and two variants: A with 5 units at 100.00 and B
// with 1 unit at 250.00.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testdb.Open(t)
	product := testdb.MustCreateProduct(t, conn, "tee", "100.00")
	hoodie := testdb.MustCreateProduct(t, conn, "hoodie", "250.00")

	f := &fixture{
		conn:     conn,
		gateway:  newStubGateway(),
		hook:     &recordingHook{},
		metrics:  &recordingMetrics{},
		user:     testdb.MustCreateUser(t, conn, enums.RoleUser),
		variantA: testdb.MustCreateVariant(t, conn, product.ID, "M", "Black", 5),
		variantB: testdb.MustCreateVariant(t, conn, hoodie.ID, "L", "Grey", 1),
	}

	inventoryRepo := inventory.NewRepository(conn)
	ledger, err := inventory.NewLedger(inventoryRepo)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	gate, err := cod.NewGate(redis.NewMemoryStore(), cod.DefaultLimits(), nil)
	if err != nil {
		t.Fatalf("cod gate: %v", err)
	}
	orderRepo := orders.NewRepository(conn)
	runner := pkgdb.NewWithConn(conn)
	clock := func() time.Time { return time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC) }

	f.orders, err = orders.NewService(orders.ServiceParams{
		Repo:              orderRepo,
		Variants:          inventoryRepo,
		Ledger:            ledger,
		COD:               gate,
		Gateway:           f.gateway,
		TransactionRunner: runner,
		Hooks:             orders.Hooks{f.hook},
		Now:               clock,
	})
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	f.payments, err = NewService(ServiceParams{
		Repo:              orderRepo,
		Ledger:            ledger,
		Gateway:           f.gateway,
		TransactionRunner: runner,
		KeySecret:         testKeySecret,
		Hooks:             orders.Hooks{f.hook},
		Metrics:           f.metrics,
		Now:               clock,
	})
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}
	return f
}

func (f *fixture) address() types.ShippingAddress {
	return types.ShippingAddress{
		FullName: "Asha Rao", Phone: "9876543210", Line1: "12 MG Road",
		City: "Pune", State: "MH", PostalCode: "411001",
	}
}

// placeOnlineOrder checks out 3×A and 1×B: subtotal 550, shipping 50.
func (f *fixture) placeOnlineOrder(t *testing.T) *orders.CreateOrderResult {
	t.Helper()
	result, err := f.orders.CreateOrder(context.Background(), f.user.ID, orders.CreateOrderInput{
		Items: []orders.ItemInput{
			{VariantID: f.variantA.ID, Quantity: 3},
			{VariantID: f.variantB.ID, Quantity: 1},
		},
		ShippingAddress: f.address(),
		PaymentMethod:   enums.PaymentMethodRazorpay,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if result.Razorpay == nil {
		t.Fatal("expected a checkout session")
	}
	return result
}

func (f *fixture) verifyInput(gatewayOrderID, paymentID string) VerifyInput {
	return VerifyInput{
		RazorpayOrderID:   gatewayOrderID,
		RazorpayPaymentID: paymentID,
		RazorpaySignature: razorpay.Sign([]byte(gatewayOrderID+"|"+paymentID), testKeySecret),
	}
}

func (f *fixture) stock(t *testing.T) (int, int) {
	t.Helper()
	return testdb.Stock(t, f.conn, f.variantA.ID), testdb.Stock(t, f.conn, f.variantB.ID)
}

func (f *fixture) loadOrder(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	var order models.Order
	if err := f.conn.Preload("Payment").First(&order, "id = ?", id).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	return &order
}

func mustDecimal(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func ordersActor(f *fixture) orders.Actor {
	return orders.Actor{UserID: f.user.ID, Role: f.user.Role}
}

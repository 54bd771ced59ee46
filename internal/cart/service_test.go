package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/testdb"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

func seedCart(t *testing.T, conn *gorm.DB, userID uuid.UUID, lines int) {
	t.Helper()
	cart := &models.Cart{UserID: userID}
	if err := conn.Create(cart).Error; err != nil {
		t.Fatalf("create cart: %v", err)
	}
	for i := 0; i < lines; i++ {
		item := &models.CartItem{CartID: cart.ID, VariantID: uuid.New(), Quantity: i + 1}
		if err := conn.Create(item).Error; err != nil {
			t.Fatalf("create cart item: %v", err)
		}
	}
}

func TestClearForUserRemovesOnlyThatCart(t *testing.T) {
	conn := testdb.Open(t)
	buyer := testdb.MustCreateUser(t, conn, enums.RoleUser)
	other := testdb.MustCreateUser(t, conn, enums.RoleUser)
	seedCart(t, conn, buyer.ID, 3)
	seedCart(t, conn, other.ID, 2)

	cache := redis.NewMemoryStore()
	key := redis.CartKey(buyer.ID.String())
	if err := cache.Set(context.Background(), key, `{"items":3}`, 0); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	repo := NewRepository(conn)
	svc, err := NewService(repo, cache, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.ClearForUser(context.Background(), buyer.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if n, _ := repo.CountItems(context.Background(), buyer.ID); n != 0 {
		t.Fatalf("expected buyer cart empty, got %d", n)
	}
	if n, _ := repo.CountItems(context.Background(), other.ID); n != 2 {
		t.Fatalf("expected other cart untouched, got %d", n)
	}
	if seen, _ := cache.Exists(context.Background(), key); seen {
		t.Fatalf("expected cart cache dropped")
	}
}

type stubCartService struct {
	cleared []uuid.UUID
	err     error
}

func (s *stubCartService) ClearForUser(_ context.Context, userID uuid.UUID) error {
	s.cleared = append(s.cleared, userID)
	return s.err
}

func TestClearHookRunsOnPaidOrCODOrders(t *testing.T) {
	userID := uuid.New()
	cases := []struct {
		name   string
		event  orders.Event
		clears bool
	}{
		{"confirmed", orders.Event{Type: enums.OrderEventConfirmed, PaymentMethod: enums.PaymentMethodRazorpay}, true},
		{"cod placed", orders.Event{Type: enums.OrderEventPlaced, PaymentMethod: enums.PaymentMethodCOD}, true},
		{"online placed", orders.Event{Type: enums.OrderEventPlaced, PaymentMethod: enums.PaymentMethodRazorpay}, false},
		{"cancelled", orders.Event{Type: enums.OrderEventCancelled, PaymentMethod: enums.PaymentMethodCOD}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubCartService{}
			tc.event.UserID = userID
			if err := ClearHook(stub).Handle(context.Background(), tc.event); err != nil {
				t.Fatalf("handle: %v", err)
			}
			if got := len(stub.cleared) == 1; got != tc.clears {
				t.Fatalf("cleared=%v, want %v", got, tc.clears)
			}
		})
	}
}

func TestClearHookSurfacesErrors(t *testing.T) {
	stub := &stubCartService{err: errors.New("db down")}
	err := ClearHook(stub).Handle(context.Background(), orders.Event{Type: enums.OrderEventConfirmed, UserID: uuid.New()})
	if err == nil {
		t.Fatal("expected hook error")
	}
}

func TestNewServiceRequiresRepository(t *testing.T) {
	if _, err := NewService(nil, nil, nil); err == nil {
		t.Fatal("expected error")
	}
}

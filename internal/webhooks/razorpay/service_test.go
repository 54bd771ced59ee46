package razorpaywebhook

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/razorpay"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const testSecret = "whsec_test"

type stubConfirmer struct {
	inputs []payments.ConfirmInput
	err    error
}

func (s *stubConfirmer) Confirm(_ context.Context, input payments.ConfirmInput) (*payments.Result, error) {
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	return &payments.Result{}, nil
}

type stubFailer struct {
	calls   []string
	outcome orders.FailOutcome
	err     error
}

func (s *stubFailer) FailPayment(_ context.Context, gatewayOrderID string) (orders.FailOutcome, error) {
	s.calls = append(s.calls, gatewayOrderID)
	if s.err != nil {
		return "", s.err
	}
	return s.outcome, nil
}

type stubMetrics struct {
	seen map[string]int
}

func (m *stubMetrics) WebhookEvent(event, outcome string) {
	if m.seen == nil {
		m.seen = map[string]int{}
	}
	m.seen[event+"/"+outcome]++
}

type brokenStore struct{}

func (brokenStore) Exists(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func (brokenStore) Set(context.Context, string, any, time.Duration) error {
	return errors.New("redis down")
}

type testService struct {
	*Service
	payments *stubConfirmer
	orders   *stubFailer
	metrics  *stubMetrics
	store    *redis.MemoryStore
}

func newTestService(t *testing.T, store dedupStore) *testService {
	t.Helper()
	memory := redis.NewMemoryStore()
	if store == nil {
		store = memory
	}
	guard, err := NewGuard(store, 0, nil)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	ts := &testService{
		payments: &stubConfirmer{},
		orders:   &stubFailer{outcome: orders.FailOutcomeCancelled},
		metrics:  &stubMetrics{},
		store:    memory,
	}
	ts.Service, err = NewService(ServiceParams{
		Payments: ts.payments,
		Orders:   ts.orders,
		Guard:    guard,
		Secret:   testSecret,
		Metrics:  ts.metrics,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return ts
}

func signed(body string) ([]byte, string) {
	return []byte(body), razorpay.Sign([]byte(body), testSecret)
}

func capturedBody(eventID string, amount int64) string {
	return fmt.Sprintf(`{"event_id":%q,"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","amount":%d,"status":"captured"}}}}`, eventID, amount)
}

func TestHandleRejectsBadSignature(t *testing.T) {
	ts := newTestService(t, nil)
	body, _ := signed(capturedBody("evt_1", 60000))

	_, err := ts.Handle(context.Background(), body, "deadbeef")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeInvalidSignature {
		t.Fatalf("expected invalid signature, got %v", err)
	}
	if len(ts.payments.inputs) != 0 {
		t.Fatalf("tampered payload must not be processed")
	}
}

func TestHandleCapturedConfirmsOnceAndDedupes(t *testing.T) {
	ts := newTestService(t, nil)
	body, sig := signed(capturedBody("evt_1", 60000))

	outcome, err := ts.Handle(context.Background(), body, sig)
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("first delivery: outcome=%s err=%v", outcome, err)
	}
	if len(ts.payments.inputs) != 1 {
		t.Fatalf("expected one confirm, got %d", len(ts.payments.inputs))
	}
	got := ts.payments.inputs[0]
	if got.GatewayOrderID != "order_1" || got.PaymentID != "pay_1" || got.AmountPaise != 60000 {
		t.Fatalf("unexpected confirm input %+v", got)
	}
	if got.Signature != nil {
		t.Fatalf("webhook confirmations carry no checkout signature")
	}
	if ttl := ts.store.TTL(redis.WebhookKey("evt_1")); ttl <= 0 || ttl > DefaultDedupTTL {
		t.Fatalf("unexpected dedup ttl %s", ttl)
	}

	outcome, err = ts.Handle(context.Background(), body, sig)
	if err != nil || outcome != OutcomeDuplicate {
		t.Fatalf("replay: outcome=%s err=%v", outcome, err)
	}
	if len(ts.payments.inputs) != 1 {
		t.Fatalf("replay must not reprocess")
	}
	if ts.metrics.seen["payment.captured/duplicate"] != 1 {
		t.Fatalf("expected duplicate metric, got %v", ts.metrics.seen)
	}
}

func TestHandleRetryableFailureLeavesNoSentinel(t *testing.T) {
	ts := newTestService(t, nil)
	ts.payments.err = pkgerrors.New(pkgerrors.CodeDependency, "db unavailable")
	body, sig := signed(capturedBody("evt_retry", 60000))

	if _, err := ts.Handle(context.Background(), body, sig); !pkgerrors.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if seen, _ := ts.store.Exists(context.Background(), redis.WebhookKey("evt_retry")); seen {
		t.Fatalf("failed delivery must stay retryable")
	}

	ts.payments.err = nil
	outcome, err := ts.Handle(context.Background(), body, sig)
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("retry: outcome=%s err=%v", outcome, err)
	}
}

func TestHandleAcknowledgesPermanentFailures(t *testing.T) {
	cases := map[string]error{
		"amount mismatch":    pkgerrors.New(pkgerrors.CodeAmountMismatch, "mismatch"),
		"unknown order":      pkgerrors.New(pkgerrors.CodeNotFound, "Payment not found"),
		"closed order":       pkgerrors.New(pkgerrors.CodeStateConflict, "needs a manual refund"),
		"stock ran out":      pkgerrors.New(pkgerrors.CodeInsufficientStock, "Insufficient stock"),
		"validation failure": pkgerrors.New(pkgerrors.CodeValidation, "bad"),
	}
	for name, confirmErr := range cases {
		t.Run(name, func(t *testing.T) {
			ts := newTestService(t, nil)
			ts.payments.err = confirmErr
			body, sig := signed(capturedBody("evt_perm", 100))
			outcome, err := ts.Handle(context.Background(), body, sig)
			if err != nil || outcome != OutcomeIgnored {
				t.Fatalf("outcome=%s err=%v", outcome, err)
			}
		})
	}
}

func TestHandleOrderPaidUsesAmountPaid(t *testing.T) {
	ts := newTestService(t, nil)
	body, sig := signed(`{"event":"order.paid","payload":{"order":{"entity":{"id":"order_9","amount":60000,"amount_paid":59000}},"payment":{"entity":{"id":"pay_9","order_id":"order_9"}}}}`)

	outcome, err := ts.Handle(context.Background(), body, sig)
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("outcome=%s err=%v", outcome, err)
	}
	got := ts.payments.inputs[0]
	if got.GatewayOrderID != "order_9" || got.AmountPaise != 59000 || got.PaymentID != "pay_9" {
		t.Fatalf("unexpected confirm input %+v", got)
	}
	if seen, _ := ts.store.Exists(context.Background(), redis.WebhookKey("order.paid-pay_9")); !seen {
		t.Fatalf("expected fallback dedup key")
	}
}

func TestHandlePaymentFailed(t *testing.T) {
	ts := newTestService(t, nil)
	body, sig := signed(`{"event_id":"evt_f","event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_2","order_id":"order_2","status":"failed"}}}}`)

	outcome, err := ts.Handle(context.Background(), body, sig)
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("outcome=%s err=%v", outcome, err)
	}
	if len(ts.orders.calls) != 1 || ts.orders.calls[0] != "order_2" {
		t.Fatalf("unexpected fail calls %v", ts.orders.calls)
	}

	ts.orders.outcome = orders.FailOutcomeIgnored
	body, sig = signed(`{"event_id":"evt_g","event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_3","order_id":"order_3"}}}}`)
	if outcome, _ := ts.Handle(context.Background(), body, sig); outcome != OutcomeIgnored {
		t.Fatalf("expected ignored for paid order, got %s", outcome)
	}
}

func TestHandleIgnoresMalformedAndUnknownEvents(t *testing.T) {
	ts := newTestService(t, nil)
	for _, raw := range []string{
		`not json`,
		`{"event_id":"evt_r","event":"refund.created","payload":{}}`,
		`{"event_id":"evt_e","event":"payment.captured","payload":{}}`,
	} {
		body, sig := signed(raw)
		outcome, err := ts.Handle(context.Background(), body, sig)
		if err != nil || outcome != OutcomeIgnored {
			t.Fatalf("%s: outcome=%s err=%v", raw, outcome, err)
		}
	}
	if len(ts.payments.inputs) != 0 || len(ts.orders.calls) != 0 {
		t.Fatalf("nothing should be dispatched")
	}
}

func TestHandleFailsOpenWhenDedupStoreIsDown(t *testing.T) {
	ts := newTestService(t, brokenStore{})
	body, sig := signed(capturedBody("evt_1", 60000))

	for i := 0; i < 2; i++ {
		outcome, err := ts.Handle(context.Background(), body, sig)
		if err != nil || outcome != OutcomeProcessed {
			t.Fatalf("delivery %d: outcome=%s err=%v", i, outcome, err)
		}
	}
	if len(ts.payments.inputs) != 2 {
		t.Fatalf("expected both deliveries processed, got %d", len(ts.payments.inputs))
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewGuard(nil, time.Hour, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}

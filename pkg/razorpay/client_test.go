package razorpay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient("rzp_test_key", "secret", WithBaseURL("http://rzp.test/v1"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClientCreateOrderRequest(t *testing.T) {
	var capturedURL, capturedUser, capturedPass string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedUser, capturedPass, _ = req.BasicAuth()
		var payload map[string]any
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if payload["amount"].(float64) != 15000 || payload["currency"] != "INR" {
			t.Fatalf("unexpected payload %+v", payload)
		}
		return jsonResponse(http.StatusOK, `{"id":"order_abc","amount":15000,"currency":"INR","receipt":"rcpt_1","status":"created"}`), nil
	})

	order, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 15000, Currency: "INR", Receipt: "rcpt_1"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if capturedURL != "http://rzp.test/v1/orders" {
		t.Fatalf("unexpected url %q", capturedURL)
	}
	if capturedUser != "rzp_test_key" || capturedPass != "secret" {
		t.Fatalf("expected basic auth with key pair")
	}
	if order.ID != "order_abc" || order.Amount != 15000 {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestClientCreateOrderRejectsNonPositiveAmount(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 0, Currency: "INR"})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClientFetchPayment(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/payments/pay_123" {
			t.Fatalf("unexpected path %q", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"id":"pay_123","order_id":"order_abc","amount":15000,"status":"captured"}`), nil
	})

	payment, err := client.FetchPayment(context.Background(), "pay_123")
	if err != nil {
		t.Fatalf("fetch payment: %v", err)
	}
	if !payment.Captured() || payment.Amount != 15000 {
		t.Fatalf("unexpected payment %+v", payment)
	}
}

func TestClientErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   pkgerrors.Code
	}{
		{name: "not found", status: http.StatusNotFound, want: pkgerrors.CodeNotFound},
		{name: "server error", status: http.StatusBadGateway, want: pkgerrors.CodeGateway},
		{name: "unauthorized", status: http.StatusUnauthorized, want: pkgerrors.CodeGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(*http.Request) (*http.Response, error) {
				return jsonResponse(tc.status, `{"error":{"code":"BAD"}}`), nil
			})
			_, err := client.FetchPayment(context.Background(), "pay_1")
			if got := pkgerrors.CodeOf(err); got != tc.want {
				t.Fatalf("expected %s, got %s (%v)", tc.want, got, err)
			}
		})
	}
}

func TestClientTransportFailureIsRetryable(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return nil, io.ErrUnexpectedEOF
	})
	_, err := client.FetchPayment(context.Background(), "pay_1")
	if !pkgerrors.IsRetryable(err) {
		t.Fatalf("expected retryable gateway error, got %v", err)
	}
}

func TestNewClientRequiresKeys(t *testing.T) {
	if _, err := NewClient("", "secret"); err == nil {
		t.Fatal("expected error for missing key id")
	}
	if _, err := NewClient("key", ""); err == nil {
		t.Fatal("expected error for missing key secret")
	}
}

package orders

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

func TestComputeTotalsShippingRule(t *testing.T) {
	pricing := DefaultPricing()
	cases := []struct {
		name     string
		price    string
		qty      int
		shipping string
	}{
		{name: "below threshold", price: "999.00", qty: 1, shipping: "50"},
		{name: "exactly threshold pays shipping", price: "4999.00", qty: 1, shipping: "50"},
		{name: "above threshold ships free", price: "4999.01", qty: 1, shipping: "0"},
		{name: "quantity pushes over", price: "2500.00", qty: 2, shipping: "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals := ComputeTotals([]models.OrderItem{{Price: decimal.RequireFromString(tc.price), Quantity: tc.qty}}, pricing)
			assert.True(t, decimal.RequireFromString(tc.shipping).Equal(totals.Shipping), totals.Shipping.String())
			assert.True(t, totals.Subtotal.Add(totals.Shipping).Equal(totals.Total))
		})
	}
}

func TestComputeTotalsProperties(t *testing.T) {
	pricing := DefaultPricing()
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(t, "lines")
		items := make([]models.OrderItem, 0, n)
		expected := decimal.Zero
		for i := 0; i < n; i++ {
			paise := rapid.Int64Range(1, 1_000_000).Draw(t, "paise")
			qty := rapid.IntRange(1, 100).Draw(t, "qty")
			price := decimal.New(paise, -2)
			items = append(items, models.OrderItem{Price: price, Quantity: qty})
			expected = expected.Add(price.Mul(decimal.NewFromInt(int64(qty))))
		}

		totals := ComputeTotals(items, pricing)
		if !totals.Subtotal.Equal(expected) {
			t.Fatalf("subtotal %s, want %s", totals.Subtotal, expected)
		}
		free := totals.Subtotal.GreaterThan(pricing.FreeShippingAbove)
		if free != totals.Shipping.IsZero() {
			t.Fatalf("subtotal %s charged shipping %s", totals.Subtotal, totals.Shipping)
		}
		if got := AmountInPaise(totals.Total); !decimal.NewFromInt(got).Equal(totals.Total.Mul(hundred)) {
			t.Fatalf("paise %d for total %s", got, totals.Total)
		}
	})
}

func TestAmountInPaiseRounds(t *testing.T) {
	assert.Equal(t, int64(60000), AmountInPaise(decimal.RequireFromString("600")))
	assert.Equal(t, int64(12346), AmountInPaise(decimal.RequireFromString("123.455")))
	assert.Equal(t, int64(1), AmountInPaise(decimal.RequireFromString("0.01")))
}

func TestOrderNumberAndReceiptFormat(t *testing.T) {
	number := NewOrderNumber(time.Date(2026, 1, 2, 23, 59, 0, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^ORD-20260102-[0-9A-F]{6}$`), number)
	assert.Regexp(t, regexp.MustCompile(`^rcpt_[0-9a-f]{16}$`), NewReceipt())
	assert.NotEqual(t, NewReceipt(), NewReceipt())
}

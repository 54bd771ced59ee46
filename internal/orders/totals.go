package orders

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

var hundred = decimal.NewFromInt(100)

// Pricing holds the shipping rules applied at checkout.
type Pricing struct {
	FreeShippingAbove decimal.Decimal
	FlatFee           decimal.Decimal
}

// DefaultPricing is free shipping above 4999 and a flat 50 otherwise.
func DefaultPricing() Pricing {
	return Pricing{
		FreeShippingAbove: decimal.NewFromInt(4999),
		FlatFee:           decimal.NewFromInt(50),
	}
}

// PricingFromConfig parses the checkout section of the service config.
func PricingFromConfig(cfg config.CheckoutConfig) (Pricing, error) {
	threshold, err := decimal.NewFromString(cfg.FreeShippingAbove)
	if err != nil {
		return Pricing{}, fmt.Errorf("parse free shipping threshold: %w", err)
	}
	fee, err := decimal.NewFromString(cfg.ShippingFlatFee)
	if err != nil {
		return Pricing{}, fmt.Errorf("parse shipping fee: %w", err)
	}
	return Pricing{FreeShippingAbove: threshold, FlatFee: fee}, nil
}

// Totals are fixed once at order creation.
type Totals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals sums price times quantity over items and adds shipping.
func ComputeTotals(items []models.OrderItem, pricing Pricing) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	shipping := pricing.FlatFee
	if subtotal.GreaterThan(pricing.FreeShippingAbove) {
		shipping = decimal.Zero
	}
	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    subtotal.Add(shipping),
	}
}

// AmountInPaise converts a rupee amount to the gateway's minor units.
func AmountInPaise(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

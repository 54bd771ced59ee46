package types

import "strings"

// ShippingAddress is the delivery snapshot stored on an order. It is copied at
// creation time so later edits to a saved address never reach placed orders.
type ShippingAddress struct {
	FullName   string  `json:"fullName" validate:"required,max=120"`
	Phone      string  `json:"phone" validate:"required,min=7,max=20"`
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=100"`
	State      string  `json:"state" validate:"required,max=100"`
	PostalCode string  `json:"postalCode" validate:"required,max=12"`
	Country    string  `json:"country" validate:"omitempty,len=2"`
}

// Normalized trims whitespace and defaults the country code.
func (a ShippingAddress) Normalized() ShippingAddress {
	out := a
	out.FullName = strings.TrimSpace(a.FullName)
	out.Phone = strings.TrimSpace(a.Phone)
	out.Line1 = strings.TrimSpace(a.Line1)
	out.City = strings.TrimSpace(a.City)
	out.State = strings.TrimSpace(a.State)
	out.PostalCode = strings.TrimSpace(a.PostalCode)
	out.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	if out.Country == "" {
		out.Country = "IN"
	}
	if a.Line2 != nil {
		line2 := strings.TrimSpace(*a.Line2)
		if line2 == "" {
			out.Line2 = nil
		} else {
			out.Line2 = &line2
		}
	}
	return out
}

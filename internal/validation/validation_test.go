package validation

import (
	"strings"
	"testing"

	"github.com/lamiti/shopsync/internal/lifecycle"
	"github.com/lamiti/shopsync/internal/types"
)

func TestValidateRequired(t *testing.T) {
	if err := ValidateRequired("name", "Ana"); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := ValidateRequired("name", ""); err == nil {
		t.Error("Expected error for empty value")
	}
	if err := ValidateRequired("name", "   "); err == nil {
		t.Error("Expected error for whitespace-only value")
	}
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"ana@example.com", "a.b@c.co"}
	for _, email := range valid {
		if err := ValidateEmail("email", email); err != nil {
			t.Errorf("Expected %q to be valid, got %v", email, err)
		}
	}

	invalid := []string{"", "no-at.example.com", "@example.com", "ana@", "ana@nodot"}
	for _, email := range invalid {
		if err := ValidateEmail("email", email); err == nil {
			t.Errorf("Expected %q to be rejected", email)
		}
	}
}

func TestValidateMaxLength(t *testing.T) {
	if err := ValidateMaxLength("name", strings.Repeat("a", 200), 200); err != nil {
		t.Errorf("Expected exactly max length to pass, got %v", err)
	}
	if err := ValidateMaxLength("name", strings.Repeat("a", 201), 200); err == nil {
		t.Error("Expected error for value over max length")
	}
}

func TestValidateUTF8(t *testing.T) {
	if err := ValidateUTF8("name", "Këmishë lineni"); err != nil {
		t.Errorf("Expected valid UTF-8 to pass, got %v", err)
	}
	if err := ValidateUTF8("name", string([]byte{0xff, 0xfe})); err == nil {
		t.Error("Expected error for invalid UTF-8")
	}
}

func TestValidateOrderStatus(t *testing.T) {
	if err := ValidateOrderStatus("status", types.StatusShipped); err != nil {
		t.Errorf("Expected known status to pass, got %v", err)
	}
	if err := ValidateOrderStatus("status", types.OrderStatus("lost")); err == nil {
		t.Error("Expected error for unknown status")
	}
}

func TestValidateCreateOrder(t *testing.T) {
	cart := []lifecycle.CartItem{{ProductID: "PRD-1", Quantity: 1}}
	customer := types.CustomerInfo{Name: "Ana", Email: "ana@example.com"}
	shipping := types.ShippingAddress{Address: "Rr. e Dibres 1", City: "Tirana", Country: "AL"}

	if errs := ValidateCreateOrder(cart, customer, shipping); len(errs) != 0 {
		t.Errorf("Expected valid payload, got %v", errs)
	}
}

func TestValidateCreateOrder_CollectsAllErrors(t *testing.T) {
	errs := ValidateCreateOrder(nil, types.CustomerInfo{}, types.ShippingAddress{})

	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
	}

	for _, want := range []string{
		"cart", "customer.name", "customer.email",
		"shipping_address.address", "shipping_address.city", "shipping_address.country",
	} {
		if !fields[want] {
			t.Errorf("Expected error for field %s, got %v", want, errs)
		}
	}
}

func TestValidateCreateOrder_BadCartLines(t *testing.T) {
	cart := []lifecycle.CartItem{
		{ProductID: "", Quantity: 1},
		{ProductID: "PRD-1", Quantity: 0},
	}
	errs := ValidateCreateOrder(cart,
		types.CustomerInfo{Name: "Ana", Email: "ana@example.com"},
		types.ShippingAddress{Address: "x", City: "y", Country: "z"})

	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
	}
	if !fields["cart[0].product_id"] {
		t.Errorf("Expected cart[0].product_id error, got %v", errs)
	}
	if !fields["cart[1].quantity"] {
		t.Errorf("Expected cart[1].quantity error, got %v", errs)
	}
}

func TestValidateProduct(t *testing.T) {
	good := types.Product{Name: "Linen Shirt", Category: "Shirts", Price: 45, Stock: 10}
	if errs := ValidateProduct(good); len(errs) != 0 {
		t.Errorf("Expected valid product, got %v", errs)
	}

	bad := types.Product{Name: "", Category: "", Price: -1, Stock: -2}
	errs := ValidateProduct(bad)
	if len(errs) != 4 {
		t.Errorf("Expected 4 errors, got %d: %v", len(errs), errs)
	}
}

func TestCollector(t *testing.T) {
	var c Collector
	if c.HasErrors() {
		t.Error("Expected fresh collector to be empty")
	}
	c.Add(nil)
	if c.HasErrors() {
		t.Error("Expected nil add to be ignored")
	}
	c.Add(&ValidationError{Field: "x", Message: "bad"})
	if !c.HasErrors() || len(c.Errors()) != 1 {
		t.Errorf("Expected 1 error, got %v", c.Errors())
	}
}

package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lamiti/shopsync/internal/lifecycle"
	"github.com/lamiti/shopsync/internal/types"
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateRequired returns an error if the value is empty or whitespace.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{Field: field, Message: "must be valid UTF-8"}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateEmail returns an error for an obviously malformed address.
// Real deliverability is the mail collaborator's concern.
func ValidateEmail(field, value string) *ValidationError {
	at := strings.Index(value, "@")
	if at <= 0 || at == len(value)-1 || !strings.Contains(value[at:], ".") {
		return &ValidationError{Field: field, Message: "must be a valid email address"}
	}
	return nil
}

// ValidateOrderStatus returns an error for an unknown status value.
func ValidateOrderStatus(field string, value types.OrderStatus) *ValidationError {
	if !value.Valid() {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("unknown status %q", value),
		}
	}
	return nil
}

// ValidateCreateOrder validates the checkout payload.
func ValidateCreateOrder(cart []lifecycle.CartItem, customer types.CustomerInfo, shipping types.ShippingAddress) []ValidationError {
	var c Collector

	if len(cart) == 0 {
		c.Add(&ValidationError{Field: "cart", Message: "must not be empty"})
	}
	for i, line := range cart {
		prefix := fmt.Sprintf("cart[%d]", i)
		c.Add(ValidateRequired(prefix+".product_id", line.ProductID))
		if line.Quantity <= 0 {
			c.Add(&ValidationError{Field: prefix + ".quantity", Message: "must be positive"})
		}
	}

	c.Add(ValidateRequired("customer.name", customer.Name))
	c.Add(ValidateMaxLength("customer.name", customer.Name, 200))
	c.Add(ValidateRequired("customer.email", customer.Email))
	if customer.Email != "" {
		c.Add(ValidateEmail("customer.email", customer.Email))
	}

	c.Add(ValidateRequired("shipping_address.address", shipping.Address))
	c.Add(ValidateRequired("shipping_address.city", shipping.City))
	c.Add(ValidateRequired("shipping_address.country", shipping.Country))

	return c.Errors()
}

// ValidateProduct validates an admin product payload.
func ValidateProduct(p types.Product) []ValidationError {
	var c Collector

	c.Add(ValidateRequired("name", p.Name))
	c.Add(ValidateUTF8("name", p.Name))
	c.Add(ValidateMaxLength("name", p.Name, 200))
	c.Add(ValidateRequired("category", p.Category))
	if p.Price < 0 {
		c.Add(&ValidationError{Field: "price", Message: "must not be negative"})
	}
	if p.Stock < 0 {
		c.Add(&ValidationError{Field: "stock", Message: "must not be negative"})
	}

	return c.Errors()
}

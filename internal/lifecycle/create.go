package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lamiti/shopsync/internal/types"
	"github.com/oklog/ulid/v2"
)

// estimatedDeliveryWindow is added to the order date to produce the
// estimated delivery shown to the customer.
const estimatedDeliveryWindow = 5 * 24 * time.Hour

// CartItem is one cart line at checkout time.
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

// CreateOrder builds a new order from a cart snapshot and decrements the
// stock of each referenced product in the given slice, clamping at zero.
//
// The returned order has a generated ID and tracking code, the computed
// immutable total, and a single pending history entry. Cart lines that
// reference an unknown product are kept on the order with a zero unit
// price; the replica may simply not have pulled that product yet.
func (l *Lifecycle) CreateOrder(
	products []types.Product,
	cart []CartItem,
	customer types.CustomerInfo,
	shipping types.ShippingAddress,
	paymentMethod string,
) (*types.Order, error) {
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}

	now := l.now()

	byID := make(map[string]*types.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	items := make([]types.OrderItem, 0, len(cart))
	var total float64
	for _, line := range cart {
		item := types.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Size:      line.Size,
			Color:     line.Color,
		}
		if p, ok := byID[line.ProductID]; ok {
			item.UnitPrice = p.Price
			total += p.Price * float64(line.Quantity)
			p.Stock -= line.Quantity
			if p.Stock < 0 {
				// Oversell clamp: stock never goes negative.
				p.Stock = 0
			}
		}
		items = append(items, item)
	}

	order := &types.Order{
		ID:       NewOrderID(),
		Customer: customer,
		Items:    items,
		Total:    total,
		Status:   types.StatusPending,
		StatusHistory: []types.StatusChange{{
			Status:    types.StatusPending,
			Timestamp: now,
			Note:      "Order created",
		}},
		Updates:           []types.OrderUpdate{},
		OrderDate:         now,
		ShippingAddress:   shipping,
		PaymentMethod:     paymentMethod,
		TrackingCode:      NewTrackingCode(),
		EstimatedDelivery: now.Add(estimatedDeliveryWindow),
		LastUpdate:        now,
	}

	return order, nil
}

// NewOrderID generates a unique, lexicographically sortable order ID.
func NewOrderID() string {
	return "ORD-" + ulid.Make().String()
}

// NewTrackingCode generates an opaque, collision-resistant tracking code.
func NewTrackingCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("TRK-%s-%s", raw[:6], raw[6:12])
}

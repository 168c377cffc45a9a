package types

import (
	"encoding/json"
	"time"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Product is a catalog item in the local replica.
// Products are never deleted, only deactivated, so they stay mergeable.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Category      string    `json:"category"`
	Subcategory   string    `json:"subcategory,omitempty"`
	Price         float64   `json:"price"`
	OriginalPrice float64   `json:"original_price,omitempty"`
	OnSale        bool      `json:"on_sale,omitempty"`
	Images        []string  `json:"images,omitempty"`
	Sizes         []string  `json:"sizes,omitempty"`
	Colors        []string  `json:"colors,omitempty"`
	Stock         int       `json:"stock"`
	Active        bool      `json:"active"`
	AddedAt       time.Time `json:"added_at"`
}

// Category is one entry of the category taxonomy, pulled wholesale
// from the remote backend.
type Category struct {
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories,omitempty"`
	Image         string   `json:"image,omitempty"`
}

// CustomerInfo is the customer snapshot copied into an order at creation.
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// ShippingAddress is the delivery address snapshot on an order.
type ShippingAddress struct {
	Address string `json:"address"`
	City    string `json:"city"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// OrderItem is a line item: product reference plus quantity and the
// unit price observed at order time.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Size      string  `json:"size,omitempty"`
	Color     string  `json:"color,omitempty"`
	UnitPrice float64 `json:"unit_price"`
}

// StatusChange is one append-only entry of an order's status history.
type StatusChange struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note,omitempty"`
}

// UpdateTypeStatusChange is the Type for status-transition OrderUpdates.
const UpdateTypeStatusChange = "status_change"

// OrderUpdate is a change notification appended for real-time observers.
type OrderUpdate struct {
	Type      string      `json:"type"`
	OldStatus OrderStatus `json:"old_status,omitempty"`
	NewStatus OrderStatus `json:"new_status,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Message   string      `json:"message,omitempty"`
}

// Order is a customer order in the local replica.
//
// StatusHistory always holds at least one entry (creation appends the
// initial pending entry) and its last entry's status equals Status.
type Order struct {
	ID                string          `json:"id"`
	Customer          CustomerInfo    `json:"customer"`
	Items             []OrderItem     `json:"items"`
	Total             float64         `json:"total"`
	Status            OrderStatus     `json:"status"`
	StatusHistory     []StatusChange  `json:"status_history"`
	Updates           []OrderUpdate   `json:"updates"`
	OrderDate         time.Time       `json:"order_date"`
	ShippingAddress   ShippingAddress `json:"shipping_address"`
	PaymentMethod     string          `json:"payment_method"`
	TrackingCode      string          `json:"tracking_code"`
	EstimatedDelivery time.Time       `json:"estimated_delivery"`
	AdminRead         bool            `json:"admin_read"`
	LastUpdate        time.Time       `json:"last_update"`
}

// QueueKind classifies an outbox entry.
type QueueKind string

const (
	QueueKindOrder        QueueKind = "order"
	QueueKindStatusUpdate QueueKind = "status_update"
	QueueKindProduct      QueueKind = "product"
)

// QueueEntryStatus tracks whether an entry is still deliverable.
type QueueEntryStatus string

const (
	QueueStatusPending QueueEntryStatus = "pending"
	// QueueStatusFailed marks an entry parked after exhausting the
	// rejected-delivery attempt cap. Parked entries are skipped by drain
	// and surfaced for manual intervention.
	QueueStatusFailed QueueEntryStatus = "failed"
)

// QueueEntry is one durable outbox entry awaiting remote confirmation.
// Entries are appended in causal order; Seq is assigned by the store and
// drain replays entries in Seq order.
type QueueEntry struct {
	Seq        int64            `json:"seq"`
	Kind       QueueKind        `json:"kind"`
	Payload    json.RawMessage  `json:"payload"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
	Attempts   int              `json:"attempts"`
	Status     QueueEntryStatus `json:"status"`
}

// StatusUpdatePayload is the queue payload for a status_update entry.
type StatusUpdatePayload struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
	Note    string      `json:"note,omitempty"`
}

// OrderConfirmation records that a confirmation was issued for an order.
type OrderConfirmation struct {
	OrderID string    `json:"order_id"`
	Email   string    `json:"email"`
	SentAt  time.Time `json:"sent_at"`
}

// CustomerStats aggregates a customer's order activity.
type CustomerStats struct {
	TotalOrders  int     `json:"total_orders"`
	TotalSpent   float64 `json:"total_spent"`
	AverageOrder float64 `json:"average_order"`
}

// SyncStatus describes the coordinator's view of synchronization state.
type SyncStatus struct {
	Online        bool       `json:"online"`
	SyncInFlight  bool       `json:"sync_in_flight"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
	LastSyncError string     `json:"last_sync_error,omitempty"`
	QueuePending  int        `json:"queue_pending"`
	QueueFailed   int        `json:"queue_failed"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	ProductCount int64  `json:"product_count"`
	OrderCount   int64  `json:"order_count"`
	QueueDepth   int64  `json:"queue_depth"`
}

// MarshalJSON ensures nil slices in Order marshal as [] not null.
func (o Order) MarshalJSON() ([]byte, error) {
	if o.Items == nil {
		o.Items = []OrderItem{}
	}
	if o.StatusHistory == nil {
		o.StatusHistory = []StatusChange{}
	}
	if o.Updates == nil {
		o.Updates = []OrderUpdate{}
	}
	type Alias Order
	return json.Marshal(Alias(o))
}

// MarshalJSON ensures nil slices in Product marshal as [] not null.
func (p Product) MarshalJSON() ([]byte, error) {
	if p.Images == nil {
		p.Images = []string{}
	}
	type Alias Product
	return json.Marshal(Alias(p))
}

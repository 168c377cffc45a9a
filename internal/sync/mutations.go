package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lamiti/shopsync/internal/lifecycle"
	"github.com/lamiti/shopsync/internal/types"
	"github.com/oklog/ulid/v2"
)

// CreateOrder validates the cart, commits the new order and the stock
// decrement to the local replica, records the confirmation log, then
// pushes the order to the remote. Push failures never reach the caller:
// the order is durably enqueued instead, so no locally-committed
// mutation is ever lost to a transient remote failure.
func (c *Coordinator) CreateOrder(
	ctx context.Context,
	cart []lifecycle.CartItem,
	customer types.CustomerInfo,
	shipping types.ShippingAddress,
	paymentMethod string,
) (*types.Order, error) {
	c.replicaMu.Lock()

	products, err := c.store.Products(ctx)
	if err != nil {
		c.replicaMu.Unlock()
		return nil, err
	}

	order, err := c.lifecycle.CreateOrder(products, cart, customer, shipping, paymentMethod)
	if err != nil {
		c.replicaMu.Unlock()
		return nil, err
	}

	orders, err := c.store.Orders(ctx)
	if err != nil {
		c.replicaMu.Unlock()
		return nil, err
	}
	orders = append([]types.Order{*order}, orders...)

	if err := c.store.ReplaceOrders(ctx, orders); err != nil {
		c.replicaMu.Unlock()
		return nil, err
	}
	if err := c.store.ReplaceProducts(ctx, products); err != nil {
		c.replicaMu.Unlock()
		return nil, err
	}
	c.replicaMu.Unlock()

	c.recordConfirmation(ctx, order)
	c.pushOrder(ctx, *order)

	return order, nil
}

// UpdateOrderStatus transitions an order through its lifecycle, commits
// the result locally, and pushes the status change to the remote with
// queue fallback.
func (c *Coordinator) UpdateOrderStatus(ctx context.Context, orderID string, newStatus types.OrderStatus, note string) (*types.Order, error) {
	c.replicaMu.Lock()

	orders, err := c.store.Orders(ctx)
	if err != nil {
		c.replicaMu.Unlock()
		return nil, err
	}

	idx := -1
	for i := range orders {
		if orders[i].ID == orderID {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.replicaMu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	if err := c.lifecycle.Transition(&orders[idx], newStatus, note); err != nil {
		c.replicaMu.Unlock()
		return nil, err
	}

	if err := c.store.ReplaceOrders(ctx, orders); err != nil {
		c.replicaMu.Unlock()
		return nil, err
	}
	updated := orders[idx]
	c.replicaMu.Unlock()

	c.pushStatusUpdate(ctx, types.StatusUpdatePayload{
		OrderID: orderID,
		Status:  newStatus,
		Note:    note,
	})

	return &updated, nil
}

// AddProduct commits a new catalog product locally and pushes it.
func (c *Coordinator) AddProduct(ctx context.Context, product types.Product) (*types.Product, error) {
	if product.ID == "" {
		product.ID = "PRD-" + ulid.Make().String()
	}
	product.Active = true
	if product.AddedAt.IsZero() {
		product.AddedAt = time.Now().UTC()
	}

	c.replicaMu.Lock()
	products, err := c.store.Products(ctx)
	if err != nil {
		c.replicaMu.Unlock()
		return nil, err
	}
	products = append([]types.Product{product}, products...)
	if err := c.store.ReplaceProducts(ctx, products); err != nil {
		c.replicaMu.Unlock()
		return nil, err
	}
	c.replicaMu.Unlock()

	c.pushProduct(ctx, product)
	return &product, nil
}

// UpdateProduct replaces an existing product's fields and pushes it.
func (c *Coordinator) UpdateProduct(ctx context.Context, product types.Product) (*types.Product, error) {
	c.replicaMu.Lock()
	products, err := c.store.Products(ctx)
	if err != nil {
		c.replicaMu.Unlock()
		return nil, err
	}

	idx := -1
	for i := range products {
		if products[i].ID == product.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.replicaMu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, product.ID)
	}

	if product.AddedAt.IsZero() {
		product.AddedAt = products[idx].AddedAt
	}
	products[idx] = product

	if err := c.store.ReplaceProducts(ctx, products); err != nil {
		c.replicaMu.Unlock()
		return nil, err
	}
	c.replicaMu.Unlock()

	c.pushProduct(ctx, product)
	return &product, nil
}

// DeactivateProduct soft-deletes a product. The record stays in both
// replicas so later merges still match it by ID.
func (c *Coordinator) DeactivateProduct(ctx context.Context, productID string) (*types.Product, error) {
	c.replicaMu.Lock()
	products, err := c.store.Products(ctx)
	if err != nil {
		c.replicaMu.Unlock()
		return nil, err
	}

	idx := -1
	for i := range products {
		if products[i].ID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.replicaMu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	products[idx].Active = false
	updated := products[idx]

	if err := c.store.ReplaceProducts(ctx, products); err != nil {
		c.replicaMu.Unlock()
		return nil, err
	}
	c.replicaMu.Unlock()

	c.pushProduct(ctx, updated)
	return &updated, nil
}

// MarkOrderRead flags an order as seen by the admin dashboard.
// A read flag is device-local bookkeeping and is not pushed.
func (c *Coordinator) MarkOrderRead(ctx context.Context, orderID string) error {
	c.replicaMu.Lock()
	defer c.replicaMu.Unlock()

	orders, err := c.store.Orders(ctx)
	if err != nil {
		return err
	}
	for i := range orders {
		if orders[i].ID == orderID {
			orders[i].AdminRead = true
			return c.store.ReplaceOrders(ctx, orders)
		}
	}
	return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
}

// recordConfirmation writes the confirmation log and customer index for
// a freshly created order. Failures are logged, not propagated: the
// order itself is already committed.
func (c *Coordinator) recordConfirmation(ctx context.Context, order *types.Order) {
	if err := c.store.RecordOrderConfirmation(ctx, types.OrderConfirmation{
		OrderID: order.ID,
		Email:   order.Customer.Email,
		SentAt:  time.Now().UTC(),
	}); err != nil {
		slog.Warn("failed to record order confirmation",
			"component", "sync",
			"order_id", order.ID,
			"error", err,
		)
	}
	if err := c.store.RecordCustomerOrder(ctx, order.Customer.Email, order.ID, order.OrderDate); err != nil {
		slog.Warn("failed to index customer order",
			"component", "sync",
			"order_id", order.ID,
			"error", err,
		)
	}
	slog.Info("order confirmation recorded",
		"component", "sync",
		"order_id", order.ID,
		"email", order.Customer.Email,
	)
}

// pushOrder attempts an immediate remote create, falling back to the
// durable queue when offline or on any remote failure.
func (c *Coordinator) pushOrder(ctx context.Context, order types.Order) {
	if c.Online() {
		if err := c.backend.CreateOrder(ctx, order); err == nil {
			return
		} else {
			slog.Warn("immediate order push failed, queueing",
				"component", "sync",
				"order_id", order.ID,
				"error", err,
			)
		}
	}
	if err := c.queue.Enqueue(ctx, types.QueueKindOrder, order); err != nil {
		slog.Error("failed to enqueue order for sync",
			"component", "sync",
			"order_id", order.ID,
			"error", err,
		)
	}
}

func (c *Coordinator) pushStatusUpdate(ctx context.Context, upd types.StatusUpdatePayload) {
	if c.Online() {
		if err := c.backend.UpdateOrderStatus(ctx, upd.OrderID, upd.Status, upd.Note); err == nil {
			return
		} else {
			slog.Warn("immediate status push failed, queueing",
				"component", "sync",
				"order_id", upd.OrderID,
				"error", err,
			)
		}
	}
	if err := c.queue.Enqueue(ctx, types.QueueKindStatusUpdate, upd); err != nil {
		slog.Error("failed to enqueue status update for sync",
			"component", "sync",
			"order_id", upd.OrderID,
			"error", err,
		)
	}
}

func (c *Coordinator) pushProduct(ctx context.Context, product types.Product) {
	if c.Online() {
		if err := c.backend.UpsertProducts(ctx, []types.Product{product}); err == nil {
			return
		} else {
			slog.Warn("immediate product push failed, queueing",
				"component", "sync",
				"product_id", product.ID,
				"error", err,
			)
		}
	}
	if err := c.queue.Enqueue(ctx, types.QueueKindProduct, product); err != nil {
		slog.Error("failed to enqueue product for sync",
			"component", "sync",
			"product_id", product.ID,
			"error", err,
		)
	}
}

package sync

import (
	"context"
	"fmt"

	"github.com/lamiti/shopsync/internal/types"
)

// Products returns the replica's product collection, newest first.
func (c *Coordinator) Products(ctx context.Context) ([]types.Product, error) {
	return c.store.Products(ctx)
}

// Orders returns the replica's order collection, newest first.
func (c *Coordinator) Orders(ctx context.Context) ([]types.Order, error) {
	return c.store.Orders(ctx)
}

// Categories returns the replica's category taxonomy.
func (c *Coordinator) Categories(ctx context.Context) ([]types.Category, error) {
	return c.store.Categories(ctx)
}

// OrderByID returns a single order or ErrOrderNotFound.
func (c *Coordinator) OrderByID(ctx context.Context, orderID string) (*types.Order, error) {
	orders, err := c.store.Orders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].ID == orderID {
			return &orders[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
}

// OrderByTrackingCode resolves an order by its customer-facing tracking
// code, for the tracking page.
func (c *Coordinator) OrderByTrackingCode(ctx context.Context, code string) (*types.Order, error) {
	orders, err := c.store.Orders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].TrackingCode == code {
			return &orders[i], nil
		}
	}
	return nil, fmt.Errorf("%w: tracking code %s", ErrOrderNotFound, code)
}

// CustomerOrders returns a customer's orders, oldest first.
func (c *Coordinator) CustomerOrders(ctx context.Context, email string) ([]types.Order, error) {
	ids, err := c.store.CustomerOrderIDs(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []types.Order{}, nil
	}

	orders, err := c.store.Orders(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]types.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	result := make([]types.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			result = append(result, o)
		}
	}
	return result, nil
}

// CustomerStats aggregates a customer's order activity.
func (c *Coordinator) CustomerStats(ctx context.Context, email string) (*types.CustomerStats, error) {
	orders, err := c.CustomerOrders(ctx, email)
	if err != nil {
		return nil, err
	}

	stats := &types.CustomerStats{TotalOrders: len(orders)}
	for _, o := range orders {
		stats.TotalSpent += o.Total
	}
	if stats.TotalOrders > 0 {
		stats.AverageOrder = stats.TotalSpent / float64(stats.TotalOrders)
	}
	return stats, nil
}

// LowStockProducts returns active products at or below the threshold.
func (c *Coordinator) LowStockProducts(ctx context.Context, threshold int) ([]types.Product, error) {
	products, err := c.store.Products(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]types.Product, 0)
	for _, p := range products {
		if p.Active && p.Stock <= threshold {
			low = append(low, p)
		}
	}
	return low, nil
}

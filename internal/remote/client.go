// Package remote implements the HTTP client for the authoritative
// backend. Transport and auth details live here; every operation can
// fail with ErrRemoteUnavailable, ErrRemoteTimeout or ErrRemoteRejected,
// all of which are non-fatal to callers.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lamiti/shopsync/internal/types"
	"github.com/sethvargo/go-retry"
)

// Backend is the remote collaborator consumed by the sync coordinator.
type Backend interface {
	FetchProducts(ctx context.Context) ([]types.Product, error)
	FetchCategories(ctx context.Context) ([]types.Category, error)
	// FetchOrders is restricted to privileged callers on the remote side.
	FetchOrders(ctx context.Context) ([]types.Order, error)
	UpsertProducts(ctx context.Context, products []types.Product) error
	CreateOrder(ctx context.Context, order types.Order) error
	UpdateOrderStatus(ctx context.Context, orderID string, status types.OrderStatus, note string) error
}

// Client is the HTTP implementation of Backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// maxRetries bounds the in-call backoff for transient failures.
	// Anything still failing afterwards falls back to the sync queue.
	maxRetries uint64
	retryBase  time.Duration
}

// NewClient creates a Backend client for the given base URL.
// timeout bounds each individual HTTP attempt.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 2,
		retryBase:  250 * time.Millisecond,
	}
}

// statusUpdateRequest is the wire payload for UpdateOrderStatus.
type statusUpdateRequest struct {
	Status types.OrderStatus `json:"status"`
	Note   string            `json:"note,omitempty"`
}

// FetchProducts retrieves the authoritative product collection.
func (c *Client) FetchProducts(ctx context.Context) ([]types.Product, error) {
	var products []types.Product
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// FetchCategories retrieves the authoritative category taxonomy.
func (c *Client) FetchCategories(ctx context.Context) ([]types.Category, error) {
	var categories []types.Category
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// FetchOrders retrieves the authoritative order collection.
func (c *Client) FetchOrders(ctx context.Context) ([]types.Order, error) {
	var orders []types.Order
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpsertProducts pushes local product state to the remote.
func (c *Client) UpsertProducts(ctx context.Context, products []types.Product) error {
	return c.doJSON(ctx, http.MethodPut, "/api/v1/products", products, nil)
}

// CreateOrder pushes a locally-created order to the remote.
func (c *Client) CreateOrder(ctx context.Context, order types.Order) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/orders", order, nil)
}

// UpdateOrderStatus pushes a local status transition to the remote.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status types.OrderStatus, note string) error {
	path := "/api/v1/orders/" + orderID + "/status"
	return c.doJSON(ctx, http.MethodPut, path, statusUpdateRequest{Status: status, Note: note}, nil)
}

// doJSON performs one logical call with a short capped exponential
// backoff for transient failures. Rejections are never retried here.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.attempt(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrRemoteUnavailable) || errors.Is(err, ErrRemoteTimeout) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) attempt(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s %s: %v", ErrRemoteTimeout, method, path, err)
		}
		return fmt.Errorf("%w: %s %s: %v", ErrRemoteUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to decode
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s: status %d", ErrRemoteUnavailable, method, path, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s %s: status %d", ErrRemoteUnavailable, method, path, resp.StatusCode)
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrRemoteRejected, method, path, resp.StatusCode, detail)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRemoteUnavailable, err)
	}
	return nil
}

// isTimeout reports whether err is a deadline or client timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

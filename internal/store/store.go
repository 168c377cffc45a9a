package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lamiti/shopsync/internal/types"
)

// Sync metadata keys.
const (
	MetaLastSyncAt = "last_sync_at"
)

// Store defines the contract for the local replica.
//
// Entity collections are read and replaced as whole snapshots; Replace*
// operations are atomic. The sync queue is the durable outbox for
// operations awaiting remote confirmation.
type Store interface {
	Products(ctx context.Context) ([]types.Product, error)
	ReplaceProducts(ctx context.Context, products []types.Product) error
	Orders(ctx context.Context) ([]types.Order, error)
	ReplaceOrders(ctx context.Context, orders []types.Order) error
	Categories(ctx context.Context) ([]types.Category, error)
	ReplaceCategories(ctx context.Context, categories []types.Category) error

	AppendQueueEntry(ctx context.Context, kind types.QueueKind, payload json.RawMessage) (int64, error)
	PendingQueueEntries(ctx context.Context) ([]types.QueueEntry, error)
	FailedQueueEntries(ctx context.Context) ([]types.QueueEntry, error)
	DeleteQueueEntries(ctx context.Context, seqs []int64) error
	BumpQueueAttempts(ctx context.Context, seq int64) (int, error)
	MarkQueueEntryFailed(ctx context.Context, seq int64) error
	QueueCounts(ctx context.Context) (pending, failed int64, err error)

	RecordOrderConfirmation(ctx context.Context, c types.OrderConfirmation) error
	OrderConfirmation(ctx context.Context, orderID string) (*types.OrderConfirmation, error)
	RecordCustomerOrder(ctx context.Context, email, orderID string, at time.Time) error
	CustomerOrderIDs(ctx context.Context, email string) ([]string, error)

	GetSyncMeta(ctx context.Context, key string) (string, error)
	SetSyncMeta(ctx context.Context, key, value string) error

	Close() error
}

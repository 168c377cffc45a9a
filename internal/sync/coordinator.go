// Package sync orchestrates synchronization between the local replica
// and the remote backend: connectivity transitions, periodic sync ticks,
// pull-then-push ordering, and queue draining. The coordinator is the
// only component that talks to the remote collaborator, and the only one
// that writes local-originated data to it.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lamiti/shopsync/internal/lifecycle"
	"github.com/lamiti/shopsync/internal/queue"
	"github.com/lamiti/shopsync/internal/reconcile"
	"github.com/lamiti/shopsync/internal/remote"
	"github.com/lamiti/shopsync/internal/store"
	"github.com/lamiti/shopsync/internal/types"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
)

// Options configures a Coordinator.
type Options struct {
	// Interval between periodic sync passes while online.
	Interval time.Duration
	// InitialDelay bounds the wait before the first sync attempt after
	// startup, so a freshly opened client does not appear stale.
	InitialDelay time.Duration
	// Privileged enables pulling the order collection, which the remote
	// restricts to privileged callers (admin devices).
	Privileged bool
}

// Coordinator drives the offline ⇄ online state machine and serializes
// every read-modify-write on the local replica.
type Coordinator struct {
	store     store.Store
	backend   remote.Backend
	queue     *queue.Queue
	lifecycle *lifecycle.Lifecycle
	opts      Options

	// replicaMu serializes get-then-put sequences on the replica.
	// Both the periodic sync tick and user-triggered mutations take it;
	// without it two writers would race to a lost update.
	replicaMu sync.Mutex

	// syncMu coalesces sync passes: a tick that arrives while a pass is
	// still running is skipped, never overlapped.
	syncMu sync.Mutex

	online   atomic.Bool
	inFlight atomic.Bool

	statusMu    sync.Mutex
	lastSyncAt  *time.Time
	lastSyncErr string
}

// New creates a Coordinator. The coordinator starts offline; callers
// flip connectivity with SetOnline.
func New(s store.Store, backend remote.Backend, q *queue.Queue, lc *lifecycle.Lifecycle, opts Options) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 5 * time.Second
	}
	return &Coordinator{
		store:     s,
		backend:   backend,
		queue:     q,
		lifecycle: lc,
		opts:      opts,
	}
}

// Subscribe registers an observer for order status-change events.
func (c *Coordinator) Subscribe(fn func(lifecycle.StatusEvent)) (unsubscribe func()) {
	return c.lifecycle.Subscribe(fn)
}

// Online reports the current connectivity state.
func (c *Coordinator) Online() bool {
	return c.online.Load()
}

// SetOnline flips the connectivity state.
//
// offline→online triggers a full sync pass: pull, reconcile, then drain
// the queue. online→offline is a pure flip with no side effects;
// in-flight remote calls are allowed to fail naturally.
func (c *Coordinator) SetOnline(ctx context.Context, online bool) {
	was := c.online.Swap(online)
	if was == online {
		return
	}

	if online {
		slog.Info("connectivity restored, starting sync",
			"component", "sync",
		)
		c.SyncNow(ctx)
	} else {
		slog.Info("connectivity lost, using local replica",
			"component", "sync",
		)
	}
}

// Run starts the periodic sync loop. It blocks until ctx is cancelled.
//
// The first sync attempt is scheduled after a bounded delay rather than
// a full interval; thereafter the loop ticks at the configured interval
// and re-runs pull+push while online.
func (c *Coordinator) Run(ctx context.Context) {
	slog.Info("sync coordinator started",
		"component", "sync",
		"interval", c.opts.Interval.String(),
		"initial_delay", c.opts.InitialDelay.String(),
		"privileged", c.opts.Privileged,
	)

	first := time.NewTimer(c.opts.InitialDelay)
	defer first.Stop()

	select {
	case <-ctx.Done():
		slog.Info("sync coordinator stopped",
			"component", "sync",
			"reason", "context_cancelled",
		)
		return
	case <-first.C:
		if c.Online() {
			c.SyncNow(ctx)
		}
	}

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync coordinator stopped",
				"component", "sync",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			if c.Online() {
				c.SyncNow(ctx)
			}
		}
	}
}

// SyncNow runs one pull-then-push pass. A pass already in progress means
// this request is coalesced into it and SyncNow returns immediately.
func (c *Coordinator) SyncNow(ctx context.Context) {
	if !c.syncMu.TryLock() {
		slog.Debug("sync already in progress, tick coalesced",
			"component", "sync",
		)
		return
	}
	defer c.syncMu.Unlock()

	c.inFlight.Store(true)
	defer c.inFlight.Store(false)

	err := c.syncPass(ctx)

	now := time.Now().UTC()
	c.statusMu.Lock()
	c.lastSyncAt = &now
	if err != nil {
		c.lastSyncErr = err.Error()
	} else {
		c.lastSyncErr = ""
	}
	c.statusMu.Unlock()

	if err != nil {
		slog.Warn("sync pass completed with errors",
			"component", "sync",
			"error", err,
		)
		return
	}

	if metaErr := c.store.SetSyncMeta(ctx, store.MetaLastSyncAt, now.Format(time.RFC3339Nano)); metaErr != nil {
		slog.Warn("failed to persist last sync time",
			"component", "sync",
			"error", metaErr,
		)
	}
}

// syncPass pulls remote state, reconciles it into the local replica, and
// drains the outbox. Individual entity failures do not abort the pass.
func (c *Coordinator) syncPass(ctx context.Context) error {
	var errs []error

	if err := c.pullProducts(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pull products: %w", err))
	}
	if err := c.pullCategories(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pull categories: %w", err))
	}
	if c.opts.Privileged {
		if err := c.pullOrders(ctx); err != nil {
			errs = append(errs, fmt.Errorf("pull orders: %w", err))
		}
	}

	confirmed, err := c.queue.Drain(ctx, c.send)
	if err != nil {
		errs = append(errs, fmt.Errorf("drain queue: %w", err))
	} else if confirmed > 0 {
		slog.Info("pushed queued mutations",
			"component", "sync",
			"confirmed", confirmed,
		)
	}

	return errors.Join(errs...)
}

func (c *Coordinator) pullProducts(ctx context.Context) error {
	remoteProducts, err := c.backend.FetchProducts(ctx)
	if err != nil {
		return err
	}

	c.replicaMu.Lock()
	defer c.replicaMu.Unlock()

	local, err := c.store.Products(ctx)
	if err != nil {
		return err
	}
	merged := reconcile.MergeProducts(local, remoteProducts)
	return c.store.ReplaceProducts(ctx, merged)
}

func (c *Coordinator) pullCategories(ctx context.Context) error {
	remoteCategories, err := c.backend.FetchCategories(ctx)
	if err != nil {
		return err
	}

	c.replicaMu.Lock()
	defer c.replicaMu.Unlock()

	local, err := c.store.Categories(ctx)
	if err != nil {
		return err
	}
	merged := reconcile.MergeCategories(local, remoteCategories)
	return c.store.ReplaceCategories(ctx, merged)
}

func (c *Coordinator) pullOrders(ctx context.Context) error {
	remoteOrders, err := c.backend.FetchOrders(ctx)
	if err != nil {
		return err
	}

	c.replicaMu.Lock()
	defer c.replicaMu.Unlock()

	local, err := c.store.Orders(ctx)
	if err != nil {
		return err
	}
	merged := reconcile.MergeOrders(local, remoteOrders)
	return c.store.ReplaceOrders(ctx, merged)
}

// send delivers a single queue entry to the remote backend.
// A payload that cannot be decoded is reported as rejected so the
// attempt cap eventually parks it instead of retrying forever.
func (c *Coordinator) send(ctx context.Context, entry types.QueueEntry) error {
	switch entry.Kind {
	case types.QueueKindOrder:
		var order types.Order
		if err := json.Unmarshal(entry.Payload, &order); err != nil {
			return fmt.Errorf("%w: decode order payload: %v", remote.ErrRemoteRejected, err)
		}
		return c.backend.CreateOrder(ctx, order)

	case types.QueueKindStatusUpdate:
		var upd types.StatusUpdatePayload
		if err := json.Unmarshal(entry.Payload, &upd); err != nil {
			return fmt.Errorf("%w: decode status payload: %v", remote.ErrRemoteRejected, err)
		}
		return c.backend.UpdateOrderStatus(ctx, upd.OrderID, upd.Status, upd.Note)

	case types.QueueKindProduct:
		var product types.Product
		if err := json.Unmarshal(entry.Payload, &product); err != nil {
			return fmt.Errorf("%w: decode product payload: %v", remote.ErrRemoteRejected, err)
		}
		return c.backend.UpsertProducts(ctx, []types.Product{product})

	default:
		return fmt.Errorf("%w: unknown queue kind %q", remote.ErrRemoteRejected, entry.Kind)
	}
}

// Status reports the coordinator's synchronization state.
func (c *Coordinator) Status(ctx context.Context) (types.SyncStatus, error) {
	status := types.SyncStatus{
		Online:       c.Online(),
		SyncInFlight: c.inFlight.Load(),
	}

	c.statusMu.Lock()
	if c.lastSyncAt != nil {
		t := *c.lastSyncAt
		status.LastSyncAt = &t
	}
	status.LastSyncError = c.lastSyncErr
	c.statusMu.Unlock()

	// Fall back to the persisted timestamp from a previous process run.
	if status.LastSyncAt == nil {
		if v, err := c.store.GetSyncMeta(ctx, store.MetaLastSyncAt); err == nil {
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				status.LastSyncAt = &t
			}
		}
	}

	pending, failed, err := c.store.QueueCounts(ctx)
	if err != nil {
		return status, err
	}
	status.QueuePending = int(pending)
	status.QueueFailed = int(failed)
	return status, nil
}

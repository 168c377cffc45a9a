// Package queue implements the durable at-least-once outbox for local
// mutations awaiting confirmation from the remote backend.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lamiti/shopsync/internal/remote"
	"github.com/lamiti/shopsync/internal/types"
)

// Storage is the durable persistence the queue requires.
// Implemented by store.SQLiteStore.
type Storage interface {
	AppendQueueEntry(ctx context.Context, kind types.QueueKind, payload json.RawMessage) (int64, error)
	PendingQueueEntries(ctx context.Context) ([]types.QueueEntry, error)
	DeleteQueueEntries(ctx context.Context, seqs []int64) error
	BumpQueueAttempts(ctx context.Context, seq int64) (int, error)
	MarkQueueEntryFailed(ctx context.Context, seq int64) error
}

// Sender delivers a single entry to the remote backend.
type Sender func(ctx context.Context, entry types.QueueEntry) error

// Queue is the durable outbox. Entries are replayed in enqueue order;
// an entry is removed only after the sender confirms delivery.
type Queue struct {
	storage Storage

	// maxRejectedAttempts caps redelivery of entries the remote rejects
	// as invalid. Once exceeded the entry is parked for manual
	// intervention instead of retried forever.
	maxRejectedAttempts int
}

// New creates a Queue backed by the given storage.
func New(storage Storage, maxRejectedAttempts int) *Queue {
	if maxRejectedAttempts <= 0 {
		maxRejectedAttempts = 5
	}
	return &Queue{storage: storage, maxRejectedAttempts: maxRejectedAttempts}
}

// Enqueue durably appends an entry. The payload must already be encoded.
func (q *Queue) Enqueue(ctx context.Context, kind types.QueueKind, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode queue payload: %w", err)
	}
	seq, err := q.storage.AppendQueueEntry(ctx, kind, raw)
	if err != nil {
		return err
	}
	slog.Debug("queued mutation for sync",
		"component", "queue",
		"kind", string(kind),
		"seq", seq,
	)
	return nil
}

// Drain attempts delivery of every pending entry in enqueue order and
// returns the number confirmed.
//
// A failing entry is left in place and does not block later entries;
// entries for different entities are independent. After the pass the
// queue holds exactly the still-undelivered entries. A rejected entry has
// its attempt count bumped and is parked once the cap is reached.
func (q *Queue) Drain(ctx context.Context, send Sender) (int, error) {
	entries, err := q.storage.PendingQueueEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pending entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	confirmed := make([]int64, 0, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		err := send(ctx, entry)
		if err == nil {
			confirmed = append(confirmed, entry.Seq)
			continue
		}

		if errors.Is(err, remote.ErrRemoteRejected) {
			q.handleRejected(ctx, entry, err)
			continue
		}

		// Transient failure: leave the entry untouched for the next drain.
		slog.Warn("queue entry delivery failed, will retry",
			"component", "queue",
			"kind", string(entry.Kind),
			"seq", entry.Seq,
			"error", err,
		)
	}

	if err := q.storage.DeleteQueueEntries(ctx, confirmed); err != nil {
		return 0, fmt.Errorf("remove confirmed entries: %w", err)
	}

	if len(confirmed) > 0 {
		slog.Info("drained sync queue",
			"component", "queue",
			"confirmed", len(confirmed),
			"remaining", len(entries)-len(confirmed),
		)
	}
	return len(confirmed), nil
}

// handleRejected bumps the attempt count for an entry the remote refused
// and parks it once the cap is reached. The payload is presumably
// invalid, so unbounded retry would never succeed.
func (q *Queue) handleRejected(ctx context.Context, entry types.QueueEntry, cause error) {
	attempts, err := q.storage.BumpQueueAttempts(ctx, entry.Seq)
	if err != nil {
		slog.Error("failed to bump queue attempts",
			"component", "queue",
			"seq", entry.Seq,
			"error", err,
		)
		return
	}

	if attempts < q.maxRejectedAttempts {
		slog.Warn("queue entry rejected by remote",
			"component", "queue",
			"kind", string(entry.Kind),
			"seq", entry.Seq,
			"attempts", attempts,
			"error", cause,
		)
		return
	}

	if err := q.storage.MarkQueueEntryFailed(ctx, entry.Seq); err != nil {
		slog.Error("failed to park rejected queue entry",
			"component", "queue",
			"seq", entry.Seq,
			"error", err,
		)
		return
	}

	slog.Error("queue entry parked after repeated rejection",
		"component", "queue",
		"kind", string(entry.Kind),
		"seq", entry.Seq,
		"attempts", attempts,
	)
}

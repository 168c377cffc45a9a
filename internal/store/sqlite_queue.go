package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lamiti/shopsync/internal/types"
)

// AppendQueueEntry durably appends an outbox entry.
// Returns the assigned sequence number.
func (s *SQLiteStore) AppendQueueEntry(ctx context.Context, kind types.QueueKind, payload json.RawMessage) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_queue (kind, payload, enqueued_at, attempts, status)
		VALUES (?, ?, ?, 0, ?)
	`, string(kind), string(payload), time.Now().UTC().Format(time.RFC3339Nano), string(types.QueueStatusPending))
	if err != nil {
		return 0, unavailable("append queue entry", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get queue sequence: %w", err)
	}
	return seq, nil
}

// PendingQueueEntries returns deliverable entries in enqueue order.
func (s *SQLiteStore) PendingQueueEntries(ctx context.Context) ([]types.QueueEntry, error) {
	return s.queueEntriesByStatus(ctx, types.QueueStatusPending)
}

// FailedQueueEntries returns entries parked after exhausting the
// rejected-delivery attempt cap.
func (s *SQLiteStore) FailedQueueEntries(ctx context.Context) ([]types.QueueEntry, error) {
	return s.queueEntriesByStatus(ctx, types.QueueStatusFailed)
}

func (s *SQLiteStore) queueEntriesByStatus(ctx context.Context, status types.QueueEntryStatus) ([]types.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, payload, enqueued_at, attempts, status
		FROM sync_queue
		WHERE status = ?
		ORDER BY seq ASC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query sync queue: %w", err)
	}
	defer rows.Close()

	entries := make([]types.QueueEntry, 0)
	for rows.Next() {
		var e types.QueueEntry
		var payload, enqueuedAt string
		if err := rows.Scan(&e.Seq, &e.Kind, &payload, &enqueuedAt, &e.Attempts, &e.Status); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		var parseErr error
		if e.EnqueuedAt, parseErr = time.Parse(time.RFC3339Nano, enqueuedAt); parseErr != nil {
			slog.Warn("sync_queue: failed to parse enqueued_at", "value", enqueuedAt, "error", parseErr)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteQueueEntries removes confirmed entries by sequence number.
func (s *SQLiteStore) DeleteQueueEntries(ctx context.Context, seqs []int64) error {
	if len(seqs) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(seqs)), ",")
	args := make([]any, len(seqs))
	for i, seq := range seqs {
		args[i] = seq
	}

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM sync_queue WHERE seq IN ("+placeholders+")", args...)
	if err != nil {
		return unavailable("delete queue entries", err)
	}
	return nil
}

// BumpQueueAttempts increments an entry's attempt count and returns the
// new value.
func (s *SQLiteStore) BumpQueueAttempts(ctx context.Context, seq int64) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET attempts = attempts + 1 WHERE seq = ?
	`, seq)
	if err != nil {
		return 0, unavailable("bump queue attempts", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return 0, ErrNotFound
	}

	var attempts int
	if err := s.db.QueryRowContext(ctx,
		`SELECT attempts FROM sync_queue WHERE seq = ?`, seq).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("read queue attempts: %w", err)
	}
	return attempts, nil
}

// MarkQueueEntryFailed parks an entry so drain no longer retries it.
func (s *SQLiteStore) MarkQueueEntryFailed(ctx context.Context, seq int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = ? WHERE seq = ?
	`, string(types.QueueStatusFailed), seq)
	if err != nil {
		return unavailable("mark queue entry failed", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// QueueCounts returns the number of pending and failed entries.
func (s *SQLiteStore) QueueCounts(ctx context.Context) (pending, failed int64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN status = 'pending' THEN 1 END),
			COUNT(CASE WHEN status = 'failed' THEN 1 END)
		FROM sync_queue
	`).Scan(&pending, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("count queue entries: %w", err)
	}
	return pending, failed, nil
}

// Package reconcile merges batches of remote records into the local
// replica. Products merge with remote-wins field overwrite; orders merge
// history-preserving so the audit trail survives a status advanced by a
// different client. Malformed records are skipped without aborting the
// batch.
package reconcile

import (
	"log/slog"
	"sort"
	"time"

	"github.com/lamiti/shopsync/internal/types"
)

// remoteSyncNote annotates history entries appended for status changes
// first observed during a pull.
const remoteSyncNote = "Status updated from remote sync"

// MergeProducts merges a remote product batch into the local collection.
//
// Records match by ID. Unmatched remote records are inserted. Matched
// records are overwritten remote-wins: catalog edits originate admin-side
// and funnel through the coordinator before the next pull, so the remote
// copy is the sole writer of truth. The merged collection is sorted by
// AddedAt descending.
func MergeProducts(local, remote []types.Product) []types.Product {
	merged := make([]types.Product, len(local))
	copy(merged, local)

	index := make(map[string]int, len(merged))
	for i, p := range merged {
		index[p.ID] = i
	}

	for _, rp := range remote {
		if rp.ID == "" {
			slog.Warn("skipping malformed remote product", "reason", "empty id")
			continue
		}
		if i, ok := index[rp.ID]; ok {
			merged[i] = rp
		} else {
			index[rp.ID] = len(merged)
			merged = append(merged, rp)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].AddedAt.After(merged[j].AddedAt)
	})
	return merged
}

// MergeOrders merges a remote order batch into the local collection.
//
// For a matched order whose remote status differs from the local one, a
// new history entry recording the externally-observed change is appended
// to the existing local history before the remaining fields are
// overwritten from remote. Prior local history entries are never
// rewritten or removed. The merged collection is sorted by OrderDate
// descending.
func MergeOrders(local, remote []types.Order) []types.Order {
	merged := make([]types.Order, len(local))
	copy(merged, local)

	index := make(map[string]int, len(merged))
	for i, o := range merged {
		index[o.ID] = i
	}

	for _, ro := range remote {
		if ro.ID == "" {
			slog.Warn("skipping malformed remote order", "reason", "empty id")
			continue
		}
		i, ok := index[ro.ID]
		if !ok {
			index[ro.ID] = len(merged)
			merged = append(merged, ro)
			continue
		}

		merged[i] = mergeOrder(merged[i], ro)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].OrderDate.After(merged[j].OrderDate)
	})
	return merged
}

// mergeOrder applies the per-field merge policy for one matched order:
// statusHistory is append-preserving, every other field is remote-wins.
func mergeOrder(local, remote types.Order) types.Order {
	history := local.StatusHistory

	if remote.Status != local.Status {
		// Record the externally-observed change before any overwrite so
		// the audit trail keeps both sides of the divergence.
		history = append(history, types.StatusChange{
			Status:    remote.Status,
			Timestamp: time.Now().UTC(),
			Note:      remoteSyncNote,
		})
	}

	out := remote
	out.StatusHistory = history
	return out
}

// MergeCategories replaces the taxonomy wholesale with the remote copy
// when the remote sent anything; an empty remote batch keeps the local
// taxonomy so a partial pull cannot wipe it.
func MergeCategories(local, remote []types.Category) []types.Category {
	if len(remote) == 0 {
		return local
	}
	merged := make([]types.Category, 0, len(remote))
	for _, c := range remote {
		if c.Name == "" {
			slog.Warn("skipping malformed remote category", "reason", "empty name")
			continue
		}
		merged = append(merged, c)
	}
	if len(merged) == 0 {
		return local
	}
	return merged
}

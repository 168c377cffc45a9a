package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lamiti/shopsync/internal/config"
	"github.com/lamiti/shopsync/internal/store"
	"github.com/lamiti/shopsync/internal/types"
)

var (
	queueDBOverride string
	queueJSONOutput bool
	queueShowFailed bool
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the outbox queue",
	Long:  "List queued entries waiting to be pushed to the remote backend without running the server.",
	Args:  cobra.NoArgs,
	RunE:  runQueue,
}

func init() {
	queueCmd.Flags().StringVar(&queueDBOverride, "db", "",
		"Replica database path (overrides config and SHOPSYNC_DB_PATH)")
	queueCmd.Flags().BoolVar(&queueJSONOutput, "json", false,
		"Output in JSON format")
	queueCmd.Flags().BoolVar(&queueShowFailed, "failed", false,
		"Show parked entries instead of pending ones")
}

func runQueue(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	dbPath := queueDBOverride
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		dbPath = cfg.Database.Path
	}

	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	var entries []types.QueueEntry
	if queueShowFailed {
		entries, err = db.FailedQueueEntries(ctx)
	} else {
		entries, err = db.PendingQueueEntries(ctx)
	}
	if err != nil {
		return fmt.Errorf("load queue entries: %w", err)
	}

	if queueJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"entries": entries,
			"total":   len(entries),
		})
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "SEQ\tKIND\tENQUEUED\tATTEMPTS\tSTATUS")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
			e.Seq,
			e.Kind,
			e.EnqueuedAt.Format("2006-01-02 15:04:05"),
			e.Attempts,
			e.Status,
		)
	}
	w.Flush()

	return nil
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

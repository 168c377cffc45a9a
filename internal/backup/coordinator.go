package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Snapshotter produces a consistent copy of the replica database.
// Implemented by store.SQLiteStore via its DB handle.
type Snapshotter interface {
	DB() *sql.DB
	Path() string
}

// Coordinator periodically snapshots the replica and uploads it.
type Coordinator struct {
	snapshotter Snapshotter
	uploader    Uploader
	deviceID    string
	interval    time.Duration
}

// NewCoordinator creates a backup coordinator.
func NewCoordinator(s Snapshotter, u Uploader, deviceID string, interval time.Duration) *Coordinator {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Coordinator{
		snapshotter: s,
		uploader:    u,
		deviceID:    deviceID,
		interval:    interval,
	}
}

// Run starts the backup loop. It blocks until ctx is cancelled.
// The first backup waits a full interval; backups are maintenance work,
// not startup work.
func (c *Coordinator) Run(ctx context.Context) {
	if _, ok := c.uploader.(*NoopUploader); ok {
		slog.Info("backup coordinator disabled, no bucket configured",
			"component", "worker",
			"worker", "backup-coordinator",
		)
		return
	}

	slog.Info("backup coordinator started",
		"component", "worker",
		"worker", "backup-coordinator",
		"interval", c.interval.String(),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("backup coordinator stopped",
				"component", "worker",
				"worker", "backup-coordinator",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			if err := c.backupOnce(ctx); err != nil {
				slog.Error("replica backup failed",
					"component", "worker",
					"worker", "backup-coordinator",
					"error", err,
				)
			}
		}
	}
}

// backupOnce writes a consistent snapshot with VACUUM INTO and uploads
// it, removing the temporary file afterwards.
func (c *Coordinator) backupOnce(ctx context.Context) error {
	dir := filepath.Dir(c.snapshotter.Path())
	snapshotPath := filepath.Join(dir, fmt.Sprintf("replica-snapshot-%d.db", time.Now().UnixNano()))

	// VACUUM INTO requires the target not to exist.
	if _, err := c.snapshotter.DB().ExecContext(ctx, "VACUUM INTO ?", snapshotPath); err != nil {
		return fmt.Errorf("vacuum into snapshot: %w", err)
	}
	defer os.Remove(snapshotPath)

	if err := c.uploader.Upload(ctx, c.deviceID, snapshotPath); err != nil {
		return err
	}

	slog.Info("replica snapshot uploaded",
		"component", "worker",
		"worker", "backup-coordinator",
		"device_id", c.deviceID,
	)
	return nil
}

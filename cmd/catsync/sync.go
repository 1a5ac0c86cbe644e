package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joylabs/catsync/internal/store"
	"github.com/joylabs/catsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the local replica with the remote catalog",
	Long: `Manage catalog synchronization.

A full sync rebuilds the replica page by page and checkpoints its cursor
so an interrupted run resumes instead of starting over. An incremental
sync applies the change feed (updates and tombstones) since the last
stored cursor.`,
}

var syncFullCmd = &cobra.Command{
	Use:   "full",
	Short: "Run a full catalog sync",
	Long: `Fetch every supported catalog object page by page.

Resumes from the stored page cursor if a previous full sync was
interrupted. Starting from the beginning clears the local catalog first;
resuming never re-clears.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := openStore(cfg, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		syncer := newSyncer(cfg, st, nil)

		fmt.Printf("%s Starting full sync from %s...\n", ui.RenderAccent("🔄"), cfg.APIBaseURL)
		start := time.Now()

		if err := syncer.FullSync(cmd.Context()); err != nil {
			if errors.Is(err, store.ErrSyncInProgress) {
				return fmt.Errorf("another sync is already running")
			}
			return fmt.Errorf("full sync failed: %w", err)
		}

		status, err := st.SyncStatus(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("%s Full sync complete in %v\n", ui.RenderPass("✓"),
			time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Objects: %d\n", status.SyncTotal)
		fmt.Printf("   Replica: %s\n", st.Path())
		return nil
	},
}

var syncIncrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Apply catalog changes since the last sync",
	Long: `Fetch the change feed from the stored incremental cursor and apply
updates and deletions to the replica. Requires a completed full sync.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := openStore(cfg, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		syncer := newSyncer(cfg, st, nil)

		fmt.Printf("%s Applying catalog changes...\n", ui.RenderAccent("🔄"))
		start := time.Now()

		if err := syncer.IncrementalSync(cmd.Context()); err != nil {
			if errors.Is(err, store.ErrSyncInProgress) {
				return fmt.Errorf("another sync is already running")
			}
			return fmt.Errorf("incremental sync failed: %w", err)
		}

		fmt.Printf("%s Incremental sync complete in %v\n", ui.RenderPass("✓"),
			time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show replica sync status",
	Long: `Display the replica's sync state.

Shows last successful sync time, stored resume and incremental cursors,
progress of any in-flight run, and the last error if a run failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		info, err := os.Stat(cfg.DBPath)
		if os.IsNotExist(err) {
			fmt.Printf("\n%s Replica not initialized\n", ui.RenderWarn("⚠"))
			fmt.Printf("   Run 'catsync sync full' to create it\n\n")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to stat replica: %w", err)
		}

		st, err := openStore(cfg, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		status, err := st.SyncStatus(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("\n%s Replica Status\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Location: %s\n", cfg.DBPath)
		fmt.Printf("Size: %s\n", formatSize(info.Size()))

		switch {
		case status.IsSyncing:
			fmt.Printf("State: %s (%s, attempt %s)\n",
				ui.RenderWarn("syncing"), status.SyncType, status.AttemptID)
			if status.SyncTotal > 0 {
				fmt.Printf("Progress: %d/%d objects\n", status.SyncProgress, status.SyncTotal)
			}
		case status.SyncError != "":
			fmt.Printf("State: %s\n", ui.RenderFail("failed"))
			fmt.Printf("Error: %s\n", status.SyncError)
			fmt.Printf("Attempts: %d\n", status.SyncAttemptCount)
		case status.LastSyncTime.IsZero():
			fmt.Printf("State: %s\n", ui.RenderWarn("never synced"))
		default:
			fmt.Printf("State: %s\n", ui.RenderPass("synced"))
		}

		if !status.LastSyncTime.IsZero() {
			fmt.Printf("Last sync: %s\n", status.LastSyncTime.Format("2006-01-02 15:04:05"))
		}
		if status.LastPageCursor != "" {
			fmt.Printf("Resume cursor: %s\n", ui.RenderDim(status.LastPageCursor))
		}
		if status.LastIncrementalSyncCursor != "" {
			fmt.Printf("Change cursor: %s\n", ui.RenderDim(status.LastIncrementalSyncCursor))
		}
		fmt.Println()
		return nil
	},
}

// formatSize renders a byte count for display.
func formatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

func init() {
	syncCmd.AddCommand(syncFullCmd)
	syncCmd.AddCommand(syncIncrementalCmd)
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}

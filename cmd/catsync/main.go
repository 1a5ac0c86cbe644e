// Command catsync maintains a local offline replica of the JoyLabs
// catalog: paginated full and incremental sync into SQLite, tokenized
// search, team-data annotations, and a live WebSocket dashboard.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joylabs/catsync/internal/config"
	"github.com/joylabs/catsync/internal/events"
	"github.com/joylabs/catsync/internal/remote"
	"github.com/joylabs/catsync/internal/store"
	catsync "github.com/joylabs/catsync/internal/sync"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "catsync",
	Short: "Local catalog replica for offline-capable clients",
	Long: `catsync keeps a local SQLite replica of the remote catalog.

The replica is populated by paginated full syncs and kept current by
incremental change-feed syncs. All reads (search, team data, listings)
run against the local database and work offline.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "dir", config.DefaultDir,
		"directory holding the config file and replica database")
}

// loadConfig reads the config file from the --dir directory.
func loadConfig() (*config.Config, error) {
	return config.Load(configDir)
}

// openStore opens the replica database and ensures its schema, wiring
// the event bus in when one is provided.
func openStore(cfg *config.Config, bus *events.Bus) (*store.Store, error) {
	opts := []store.Option{}
	if bus != nil {
		opts = append(opts, store.WithEventSink(bus))
	}

	st, err := store.Open(cfg.DBPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open replica database: %w", err)
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return st, nil
}

// newSyncer builds a sync driver against the configured remote API.
func newSyncer(cfg *config.Config, st *store.Store, bus *events.Bus) *catsync.Syncer {
	client := remote.NewClient(cfg.APIBaseURL, cfg.AccessToken, nil)
	syncer := catsync.New(st, client, bus, nil)
	syncer.SetPageSize(cfg.PageSize)
	return syncer
}

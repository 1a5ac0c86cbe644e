// Package daemon runs catalog sync on a timer.
//
// The daemon:
//  1. Performs a catch-up sync at startup (full when the store has never
//     synced, incremental otherwise)
//  2. Runs an incremental sync on every interval tick
//  3. Watches the config file and hot-reloads the sync interval
//  4. Handles graceful shutdown
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joylabs/catsync/internal/store"
)

// SyncRunner is the sync surface the daemon drives, satisfied by
// *sync.Syncer.
type SyncRunner interface {
	FullSync(ctx context.Context) error
	IncrementalSync(ctx context.Context) error
	Status(ctx context.Context) (*store.SyncStatus, error)
}

// Config holds daemon configuration.
type Config struct {
	// SyncInterval is how often an incremental sync runs.
	SyncInterval time.Duration

	// ConfigPath, when set, is watched for changes; a rewrite triggers
	// ReloadInterval to pick up a new sync interval without a restart.
	ConfigPath string

	// ReloadInterval re-reads the configured interval after a config
	// file change. Nil disables hot reload even when ConfigPath is set.
	ReloadInterval func() (time.Duration, error)

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval: 5 * time.Minute,
		Logger:       log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon schedules sync runs against the local replica.
type Daemon struct {
	runner SyncRunner
	config *Config

	watcher *fsnotify.Watcher

	intervalMu sync.Mutex
	interval   time.Duration
	resetCh    chan time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon. Use Start to begin scheduling.
func New(runner SyncRunner, config *Config) (*Daemon, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		runner:   runner,
		config:   config,
		interval: config.SyncInterval,
		resetCh:  make(chan time.Duration, 1),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start runs the daemon until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Printf("Starting sync daemon (interval %v)", d.interval)

	if err := d.catchUp(ctx); err != nil {
		return fmt.Errorf("startup sync failed: %w", err)
	}

	if d.config.ConfigPath != "" && d.config.ReloadInterval != nil {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		// Watch the directory: editors replace the file, which would
		// drop a watch on the file itself.
		if err := watcher.Add(filepath.Dir(d.config.ConfigPath)); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch config directory: %w", err)
		}
		d.watcher = watcher

		d.wg.Add(1)
		go d.watchConfig()
	}

	d.wg.Add(1)
	go d.syncLoop()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping sync daemon")
	d.cancel()

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.config.Logger.Printf("Error closing config watcher: %v", err)
		}
	}

	d.wg.Wait()
	d.config.Logger.Println("Sync daemon stopped")
	return nil
}

// catchUp brings a stale or pristine store current at startup.
func (d *Daemon) catchUp(ctx context.Context) error {
	status, err := d.runner.Status(ctx)
	if err != nil {
		return err
	}

	if status.LastSyncTime.IsZero() {
		d.config.Logger.Println("Store has never synced, running full sync")
		return d.runSync(ctx, d.runner.FullSync)
	}

	d.config.Logger.Printf("Last sync %v, running incremental catch-up",
		status.LastSyncTime.Format(time.RFC3339))
	return d.runSync(ctx, d.runner.IncrementalSync)
}

// syncLoop runs incremental sync on every interval tick.
func (d *Daemon) syncLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.currentInterval())
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case newInterval := <-d.resetCh:
			ticker.Reset(newInterval)
			d.config.Logger.Printf("Sync interval changed to %v", newInterval)

		case <-ticker.C:
			if err := d.runSync(d.ctx, d.runner.IncrementalSync); err != nil {
				d.config.Logger.Printf("Scheduled sync failed: %v", err)
			}
		}
	}
}

// runSync invokes one sync run, treating an already-running sync as a
// skipped tick rather than a failure.
func (d *Daemon) runSync(ctx context.Context, run func(context.Context) error) error {
	err := run(ctx)
	if errors.Is(err, store.ErrSyncInProgress) {
		d.config.Logger.Println("Sync already in progress, skipping")
		return nil
	}
	return err
}

// watchConfig reloads the sync interval when the config file changes.
func (d *Daemon) watchConfig() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(d.config.ConfigPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			interval, err := d.config.ReloadInterval()
			if err != nil {
				d.config.Logger.Printf("Config reload failed: %v", err)
				continue
			}
			if interval <= 0 || interval == d.currentInterval() {
				continue
			}

			d.setInterval(interval)
			select {
			case d.resetCh <- interval:
			default:
			}

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Config watcher error: %v", err)
		}
	}
}

func (d *Daemon) currentInterval() time.Duration {
	d.intervalMu.Lock()
	defer d.intervalMu.Unlock()
	return d.interval
}

func (d *Daemon) setInterval(v time.Duration) {
	d.intervalMu.Lock()
	d.interval = v
	d.intervalMu.Unlock()
}

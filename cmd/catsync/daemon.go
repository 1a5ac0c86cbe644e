package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/joylabs/catsync/internal/config"
	"github.com/joylabs/catsync/internal/daemon"
	"github.com/joylabs/catsync/internal/dashboard"
	"github.com/joylabs/catsync/internal/events"
	"github.com/joylabs/catsync/internal/ui"
)

var daemonWithDashboard bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync daemon (foreground)",
	Long: `Run the background sync scheduler in foreground mode.

The daemon:
  1. Brings the replica current at startup (full sync if never synced)
  2. Runs an incremental sync on every configured interval
  3. Hot-reloads the interval when the config file changes
  4. Optionally serves the WebSocket dashboard alongside

With log_file set in the config, daemon output goes to a rotating log
file instead of stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var logOut io.Writer = os.Stderr
		if cfg.LogFile != "" {
			logOut = &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10, // MB
				MaxBackups: 3,
				MaxAge:     28, // days
			}
		}
		logger := log.New(logOut, "[daemon] ", log.LstdFlags)

		bus := events.NewBus(logger)

		st, err := openStore(cfg, bus)
		if err != nil {
			return err
		}
		defer st.Close()

		syncer := newSyncer(cfg, st, bus)

		var server *dashboard.Server
		var handler *dashboard.Handler
		if daemonWithDashboard {
			server = dashboard.NewServer(&dashboard.Config{
				Port:   cfg.DashboardPort,
				Logger: log.New(logOut, "[dashboard] ", log.LstdFlags),
			})
			if err := server.Start(); err != nil {
				return fmt.Errorf("failed to start dashboard: %w", err)
			}
			handler = dashboard.NewHandler(server, logger)
			handler.Attach(bus)
		}

		d, err := daemon.New(syncer, &daemon.Config{
			SyncInterval: cfg.SyncInterval,
			ConfigPath:   config.FilePath(configDir),
			ReloadInterval: func() (time.Duration, error) {
				reloaded, err := config.Load(configDir)
				if err != nil {
					return 0, err
				}
				return reloaded.SyncInterval, nil
			},
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create daemon: %w", err)
		}

		fmt.Printf("%s Starting sync daemon...\n", ui.RenderAccent("🚀"))
		fmt.Printf("   Replica: %s\n", cfg.DBPath)
		fmt.Printf("   Interval: %v\n", cfg.SyncInterval)
		if daemonWithDashboard {
			fmt.Printf("   Dashboard: ws://localhost:%d/ws\n", cfg.DashboardPort)
		}
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		runErr := d.Start(ctx)

		if handler != nil {
			handler.Detach()
		}
		if server != nil {
			if err := server.Stop(); err != nil {
				logger.Printf("Dashboard shutdown error: %v", err)
			}
		}

		if runErr != nil {
			return fmt.Errorf("daemon stopped with error: %w", runErr)
		}
		return nil
	},
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonWithDashboard, "dashboard", false,
		"serve the WebSocket dashboard alongside the daemon")
	rootCmd.AddCommand(daemonCmd)
}

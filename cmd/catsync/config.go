package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joylabs/catsync/internal/config"
	"github.com/joylabs/catsync/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect catsync configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Print the effective configuration after merging the config file,
CATSYNC_* environment variables, and defaults. The access token is
redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		rendered, err := cfg.Render()
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}

		fmt.Printf("%s %s\n\n", ui.RenderAccent("⚙"), config.FilePath(configDir))
		fmt.Print(rendered)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

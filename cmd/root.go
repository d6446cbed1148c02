package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wom-group/openings-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "openings-cli",
	Short: "Recently-opened food venue discovery",
	Long:  "Finds recently opened restaurants and cafes by combining OpenStreetMap geo-tags, Google Places text search, and the national business registry into one deduplicated, confidence-scored list.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

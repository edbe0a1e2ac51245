package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/segunak/places-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "places-cli",
	Short: "Place data enrichment pipeline",
	Long:  "Pulls place details, reviews, and photos from Google Places or Outscraper, caches snapshots in a GitHub repo, and reconciles fields into the Airtable base.",
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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joanies-kitchen/recipes-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "recipes-cli",
	Short: "Recipe ingestion and deduplication pipeline",
	Long:  "Pulls raw recipes from CSV dumps, scraped JSON, and the partner API, normalizes and deduplicates them, enriches with tags and quality scores, and commits to the recipe store.",
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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/monterey-cards/repricer/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "repricer",
	Short: "Comp-based price suggestions for collectible-card listings",
	Long:  "Extracts card signatures from listing titles, retrieves comparable listings from two marketplace search backends, filters them strictly, and derives bounded price suggestions.",
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

package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the active-comp cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired comp-cache entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initOfflineEnv(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "cache: init")
		}
		defer env.Close()

		n, err := env.Cache.Purge(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "cache: purge")
		}
		zap.L().Info("cache purged", zap.Int64("expired_rows", n))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

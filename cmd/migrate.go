package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the snapshot tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.Close() //nolint:errcheck

		zap.L().Info("migrate: store is up to date", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

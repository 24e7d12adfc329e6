package main

import (
	"context"
	"fmt"
	"os"

	"civicsync-issues/config"
	"civicsync-issues/models"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "civicsync",
		Short: "CivicSync issue tracking API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(indexesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func indexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes used by the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Storage != config.StorageMongo {
				return fmt.Errorf("indexes require STORAGE=%s", config.StorageMongo)
			}
			logger := config.NewLogger(os.Stderr, cfg.LogLevel)

			ctx := cmd.Context()
			client, db, err := config.ConnectDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())

			if err := models.EnsureIndexes(ctx, db); err != nil {
				return err
			}
			logger.Info("indexes created", "database", cfg.MongoDatabase)
			return nil
		},
	}
}

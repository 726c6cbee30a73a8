package main

import (
	"fmt"

	"github.com/shinyyama/directchat/internal/config"
	"github.com/shinyyama/directchat/internal/db"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func openDB() (*gorm.DB, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}
	return conn, cfg, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the chat tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, cfg, err := openDB()
			if err != nil {
				return err
			}
			if err := db.Migrate(conn); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", cfg.DBDriver)
			return nil
		},
	}
}

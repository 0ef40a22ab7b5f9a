package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabriqs/wedding-pix/store"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, flush, err := setup()
			if err != nil {
				return err
			}
			defer flush()

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := store.Migrate(db, sqlDriver(cfg)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", sqlDriver(cfg))
			return nil
		},
	}
}

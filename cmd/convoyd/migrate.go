package main

import (
	"github.com/spf13/cobra"

	"github.com/ahmadsadek12/convoyd/internal/config"
	"github.com/ahmadsadek12/convoyd/internal/dbx"
	"github.com/ahmadsadek12/convoyd/internal/logging"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			db, err := dbx.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Apply(cmd.Context()); err != nil {
				return err
			}

			logging.Logger().Info("migrations applied", "count", len(dbx.Migrations))
			return nil
		},
	}
}

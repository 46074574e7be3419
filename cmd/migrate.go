package cmd

import (
	"study-pipeline/config"
	"study-pipeline/repository"
	server2 "study-pipeline/server"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func migrate(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := server2.SetupLogger(cfg)

			db, err := config.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			repo, err := repository.NewRepo(db)
			if err != nil {
				return err
			}
			if err := repo.AutoMigrate(ctx); err != nil {
				return err
			}

			zerolog.Ctx(ctx).Info().Msg("schema migrated")
			return nil
		},
	}
}

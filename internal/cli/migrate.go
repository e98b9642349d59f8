package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/iliyamo/turnos-booking/internal/config"
	"github.com/iliyamo/turnos-booking/internal/database"
)

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DBDriver != "mysql" {
				return errors.New("migrate requires DB_DRIVER=mysql")
			}
			db, err := database.Open(dbSettings(cfg))
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		},
	}
}

package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/turnos-booking/internal/config"
	"github.com/iliyamo/turnos-booking/internal/sweeper"
)

func NewPurgeCmd() *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Run one retention sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("retention") {
				cfg.RetentionWindow = retention
			}
			a, err := newApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			sw := &sweeper.Sweeper{Target: a.booking, Retention: cfg.RetentionWindow, HoldTTL: cfg.HoldTTL}
			purged, expired := sw.RunOnce(cmd.Context())
			cmd.Printf("purged %d reservations, cancelled %d abandoned holds\n", purged, expired)
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 24*time.Hour, "delete reservations whose slot is older than this (overrides RETENTION_WINDOW)")
	return cmd
}

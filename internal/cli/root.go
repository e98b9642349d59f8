// Package cli implements the turnos command line: the HTTP server and the
// maintenance commands sharing its configuration.
package cli

import (
	"github.com/spf13/cobra"
)

func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "turnos",
		Short:         "Appointment booking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewPurgeCmd())
	cmd.AddCommand(NewMigrateCmd())
	return cmd
}

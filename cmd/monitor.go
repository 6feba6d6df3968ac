package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/baack/wget2/historydb"
	"github.com/baack/wget2/monitor"
)

func (a *app) newMonitorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch the active download run",
		Long: `Show the live stats of a wget2 get running in another terminal.
Press q or Ctrl+C to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := historydb.OpenShared(a.cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open history database: %w", err)
			}
			defer db.Close()

			return monitor.New(db).Run(cmd.Context())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export PATH",
		Short: "Write the active run's stats to a file as key=value lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := historydb.OpenShared(a.cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open history database: %w", err)
			}
			defer db.Close()

			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			runID, err := monitor.Export(db, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				if errors.Is(err, monitor.ErrNoActiveRun) {
					os.Remove(args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported snapshot of run %s to %s\n", shortID(runID), args[0])
			return nil
		},
	})
	return cmd
}

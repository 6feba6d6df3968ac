package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baack/wget2/log"
)

func (a *app) newLogsCommand() *cobra.Command {
	var (
		tail    int
		pattern string
		pager   bool
	)

	cmd := &cobra.Command{
		Use:   "logs [name]",
		Short: "Show the logs of the last run",
		Long: `Without a name, list the log files. Names: results (00), success (01),
failure (02), debug (07).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				log.ListLogs(a.cfg, w)
				summary := log.GetLogSummary(a.cfg)
				fmt.Fprintf(w, "Last run: %d downloaded, %d failed\n", summary["success"], summary["failed"])
				return nil
			}

			name := args[0]
			switch {
			case pattern != "":
				return log.GrepLog(a.cfg, name, pattern, w)
			case tail > 0:
				return log.TailLog(a.cfg, name, tail, w)
			default:
				return log.ViewLog(a.cfg, name, w, pager)
			}
		},
	}

	cmd.Flags().IntVar(&tail, "tail", 0, "show only the last N lines")
	cmd.Flags().StringVar(&pattern, "grep", "", "show only lines containing this text")
	cmd.Flags().BoolVar(&pager, "pager", false, "open the log in $PAGER")
	return cmd
}

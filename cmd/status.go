package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/baack/wget2/historydb"
	"github.com/baack/wget2/service"
)

func (a *app) newStatusCommand() *cobra.Command {
	var opts service.StatusOptions

	cmd := &cobra.Command{
		Use:   "status [URL...]",
		Short: "Show download history",
		Long: `Without arguments, show database totals and the most recent runs.
With URLs, show when each was last downloaded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := service.NewQueryService(a.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			opts.URLs = args
			result, err := svc.GetStatus(opts)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "list the downloads of this run")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", service.DefaultStatusRuns, "number of recent runs to show")
	return cmd
}

func printStatus(w io.Writer, r *service.StatusResult) {
	fmt.Fprintln(w, "=== Download History ===")
	fmt.Fprintf(w, "Database:      %s\n", r.Stats.Path)
	fmt.Fprintf(w, "Size:          %s\n", humanize.IBytes(uint64(max(r.Stats.Size, 0))))
	fmt.Fprintf(w, "Runs:          %d\n", r.Stats.Runs)
	fmt.Fprintf(w, "Downloads:     %d\n", r.Stats.Downloads)
	fmt.Fprintf(w, "Unique URLs:   %d\n", r.Stats.URLs)

	if r.Active != nil {
		fmt.Fprintf(w, "\nActive run %s, started %s ago (see `wget2 monitor`)\n",
			shortID(r.Active.ID), time.Since(r.Active.StartTime).Round(time.Second))
	}

	if len(r.URLs) > 0 {
		fmt.Fprintln(w, "\n=== URL Status ===")
		for _, u := range r.URLs {
			if u.Latest == nil {
				fmt.Fprintf(w, "\n%s: never downloaded\n", u.URL)
				continue
			}
			printRecord(w, u.URL, u.Latest)
		}
		return
	}

	if len(r.Runs) > 0 {
		fmt.Fprintln(w, "\n=== Recent Runs ===")
		for _, run := range r.Runs {
			state := "done"
			switch {
			case run.Active():
				state = "running"
			case run.Aborted:
				state = "aborted"
			}
			fmt.Fprintf(w, "%s  %s  %-7s  %d/%d ok, %d failed, %d skipped, %s\n",
				shortID(run.ID), run.StartTime.Format("2006-01-02 15:04:05"), state,
				run.Stats.Success, run.Stats.Total, run.Stats.Failed, run.Stats.Skipped,
				humanize.IBytes(uint64(max(run.Stats.Bytes, 0))))
		}
	}

	if len(r.Downloads) > 0 {
		fmt.Fprintln(w, "\n=== Run Downloads ===")
		for i := range r.Downloads {
			d := &r.Downloads[i]
			printRecord(w, d.URL, d)
		}
	}
}

func printRecord(w io.Writer, url string, rec *historydb.DownloadRecord) {
	fmt.Fprintf(w, "\n%s:\n", url)
	fmt.Fprintf(w, "  Status:      %s\n", rec.Status)
	fmt.Fprintf(w, "  UUID:        %s\n", shortID(rec.UUID))
	if rec.File != "" {
		fmt.Fprintf(w, "  File:        %s\n", rec.File)
	}
	fmt.Fprintf(w, "  Size:        %s\n", humanize.IBytes(uint64(max(rec.Bytes, 0))))
	fmt.Fprintf(w, "  Started:     %s\n", rec.StartTime.Format("2006-01-02 15:04:05"))
	if d := rec.Duration(); d > 0 {
		fmt.Fprintf(w, "  Duration:    %s\n", d.Round(time.Millisecond))
	}
	if rec.Error != "" {
		fmt.Fprintf(w, "  Error:       %s\n", rec.Error)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

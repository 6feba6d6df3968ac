package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/baack/wget2/download"
	"github.com/baack/wget2/service"
	"github.com/baack/wget2/stats"
)

func (a *app) newGetCommand() *cobra.Command {
	var (
		inputFile string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "get [URL...]",
		Short: "Download URLs",
		Long: `Download the given URLs with a pool of workers.

While downloading, one progress line per active worker is drawn at the
bottom of the terminal. Log messages scroll above it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := args
			if inputFile != "" {
				more, err := readURLs(inputFile, cmd.InOrStdin())
				if err != nil {
					return err
				}
				urls = append(urls, more...)
			}
			if len(urls) == 0 {
				return &ExitError{Code: ExitGeneric, Err: errors.New("missing URL")}
			}
			if dryRun {
				return a.runPlan(cmd, urls)
			}
			return a.runGet(cmd.Context(), cmd, urls)
		},
	}

	cmd.Flags().StringVarP(&inputFile, "input-file", "i", "", "read URLs from file, one per line (- for stdin)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show which URLs were downloaded before and exit")
	return cmd
}

func (a *app) runGet(ctx context.Context, cmd *cobra.Command, urls []string) error {
	svc, err := service.NewService(a.cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	svc.SetOutput(cmd.OutOrStdout())

	result, err := svc.Fetch(ctx, service.FetchOptions{URLs: urls})
	if result != nil {
		printSummary(cmd.OutOrStdout(), result)
	}
	if err != nil {
		if result != nil && result.Aborted {
			return &ExitError{Code: ExitGeneric, Err: errors.New("interrupted")}
		}
		return err
	}

	if code := exitCode(result.Stats); code != ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}

func (a *app) runPlan(cmd *cobra.Command, urls []string) error {
	svc, err := service.NewQueryService(a.cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	plan, err := svc.GetFetchPlan(urls)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d URLs, %d never downloaded\n", plan.Total, len(plan.New))
	for _, u := range plan.New {
		fmt.Fprintf(w, "  new    %s\n", u)
	}
	for _, k := range plan.Known {
		fmt.Fprintf(w, "  known  %s (%s, %s ago)\n", k.URL,
			humanize.IBytes(uint64(max(k.Latest.Bytes, 0))),
			time.Since(k.Latest.EndTime).Round(time.Second))
	}
	return nil
}

// printSummary writes the closing lines wget prints after a run.
func printSummary(w io.Writer, r *service.FetchResult) {
	s := r.Stats
	if s == nil {
		return
	}

	rate := "n/a"
	if secs := s.Duration.Seconds(); secs > 0 {
		rate = stats.FormatRate(float64(s.Bytes) / secs)
	}
	fmt.Fprintf(w, "Downloaded: %d files, %s in %s (%s)\n",
		s.Success, humanize.IBytes(uint64(max(s.Bytes, 0))), s.Duration.Round(time.Millisecond), rate)
	if s.Failed > 0 || s.Skipped > 0 {
		fmt.Fprintf(w, "Failed: %d  Skipped: %d  Total: %d\n", s.Failed, s.Skipped, s.Total)
	}
}

// exitCode maps the run outcome to wget's exit status: 8 when a server
// answered with an error, 4 for other failures.
func exitCode(s *download.FetchStats) int {
	if s == nil || s.Failed == 0 {
		return ExitOK
	}
	for _, r := range s.Results {
		var httpErr *download.HTTPError
		if errors.As(r.Err, &httpErr) {
			return ExitServer
		}
	}
	return ExitNetwork
}

// readURLs reads one URL per line, skipping blanks and # comments.
func readURLs(name string, stdin io.Reader) ([]string, error) {
	r := stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("reading input file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

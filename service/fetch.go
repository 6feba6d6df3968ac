package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/baack/wget2/bar"
	"github.com/baack/wget2/config"
	"github.com/baack/wget2/download"
	"github.com/baack/wget2/historydb"
	"github.com/baack/wget2/log"
	"github.com/baack/wget2/render"
	"github.com/baack/wget2/stats"
)

// Fetch downloads opts.URLs as one history run.
//
// The run proceeds as follows:
//  1. A run record is started in the history database
//  2. The progress UI is chosen from Config.Progress and started; when the
//     bar is up, console log output is routed through it
//  3. The stats collector drives the worker limit (slow start, load and
//     swap throttling) and persists live snapshots for `wget2 monitor`
//  4. download.DoFetch runs the worker pool
//  5. Log sinks are restored before the bar is stopped, then the run is
//     finished and a summary is written to the results log
//
// Individual download failures do not make Fetch fail; they are counted in
// FetchResult.Stats. When ctx is cancelled the run is recorded as aborted
// and ctx.Err() is returned together with the partial result.
func (s *Service) Fetch(ctx context.Context, opts FetchOptions) (*FetchResult, error) {
	if len(opts.URLs) == 0 {
		return nil, fmt.Errorf("no URLs specified")
	}
	if s.logger == nil {
		return nil, fmt.Errorf("fetch requires a service with log files (NewService)")
	}
	startTime := time.Now()

	workers := min(s.cfg.MaxWorkers, len(opts.URLs))
	runID := historydb.NewID()
	if err := s.db.StartRun(runID, startTime, workers); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	runLog := log.Tee(s.console, s.logger)
	runLog.Debug("Run %s: %d URLs, %d workers", runID, len(opts.URLs), workers)

	ui, display, err := s.newUI(workers)
	if err != nil {
		s.abortRun(runID, len(opts.URLs))
		return nil, err
	}

	restore := func() {}
	if display != nil {
		restore = s.console.Redirect(display)
	}

	throttler := stats.NewWorkerThrottler(workers, s.cfg.ThrottleDisabled).WithSlowStart(s.cfg.SlowStart)
	collector := stats.NewCollector(ctx, workers, throttler)
	collector.AddConsumer(stats.NewDBWriter(s.db, runID, s.logger))
	collector.AddConsumer(ui)

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = s.cfg.OutputDir
	}

	jobs := make([]download.Job, len(opts.URLs))
	for i, u := range opts.URLs {
		jobs[i] = download.Job{URL: u}
	}

	fs, fetchErr := download.DoFetch(ctx, jobs, download.Options{
		Workers:        workers,
		InitialWorkers: throttler.Initial(),
		OutputDir:      outputDir,
		UserAgent:      s.cfg.UserAgent,
		Timeout:        s.cfg.Timeout,
		LimitRate:      s.cfg.LimitRate,
		NoClobber:      s.cfg.NoClobber,
		UI:             ui,
		Logger:         runLog,
		Results:        s.logger,
		Collector:      collector,
		History:        s.db,
		RunID:          runID,
	})

	collector.Close()
	restore()
	ui.Stop()
	if display != nil {
		if err := display.Err(); err != nil {
			s.logger.Warn("Progress bar output error: %v", err)
		}
	}

	aborted := errors.Is(fetchErr, context.Canceled) || errors.Is(fetchErr, context.DeadlineExceeded)
	if fetchErr != nil && !aborted {
		s.abortRun(runID, len(opts.URLs))
		return nil, fmt.Errorf("fetch failed: %w", fetchErr)
	}

	runStats := historydb.RunStats{
		Total:   fs.Total,
		Success: fs.Success,
		Failed:  fs.Failed,
		Skipped: fs.Skipped,
		Bytes:   fs.Bytes,
	}
	if err := s.db.FinishRun(runID, runStats, time.Now(), aborted); err != nil {
		s.logger.Warn("Failed to finish run %s: %v", runID, err)
	}

	s.logger.WriteSummary(log.Summary{
		Total:    fs.Total,
		Success:  fs.Success,
		Failed:   fs.Failed,
		Bytes:    fs.Bytes,
		Duration: fs.Duration,
	})

	result := &FetchResult{
		RunID:    runID,
		Stats:    fs,
		Duration: time.Since(startTime),
		Aborted:  aborted,
	}
	if aborted {
		return result, fetchErr
	}
	return result, nil
}

// newUI picks the progress UI. In auto mode a bar that cannot start
// (output is not a terminal) falls back to plain lines. The returned
// Display is nil unless the bar is drawing.
func (s *Service) newUI(workers int) (download.ProgressUI, *bar.Display, error) {
	plain := download.NewStdoutUI(s.out)
	if s.cfg.Progress == config.ProgressNone {
		return plain, nil, plain.Start()
	}

	factory, err := render.ByName(s.cfg.ProgressEngine)
	if err != nil {
		return nil, nil, err
	}

	display := bar.New(bar.Options{
		Output:   s.out,
		Workers:  workers,
		Interval: s.cfg.ProgressInterval,
		Engine:   factory,
		Force:    s.cfg.Progress == config.ProgressBar,
	})
	ui := download.NewBarUI(display)
	if err := ui.Start(); err != nil {
		if s.cfg.Progress == config.ProgressBar {
			return nil, nil, fmt.Errorf("failed to start progress bar: %w", err)
		}
		s.logger.Debug("Progress bar disabled: %v", err)
		return plain, nil, plain.Start()
	}
	return ui, display, nil
}

// abortRun closes a run that never got to download anything.
func (s *Service) abortRun(runID string, total int) {
	if err := s.db.FinishRun(runID, historydb.RunStats{Total: total}, time.Now(), true); err != nil {
		s.logger.Warn("Failed to finish run %s: %v", runID, err)
	}
}

// FetchPlan lists which URLs have been downloaded before.
type FetchPlan struct {
	Total int
	New   []string // Never downloaded successfully
	Known []URLStatus
}

// GetFetchPlan reports what Fetch would do without downloading anything.
func (s *Service) GetFetchPlan(urls []string) (*FetchPlan, error) {
	plan := &FetchPlan{Total: len(urls)}
	for _, u := range urls {
		rec, err := s.db.LatestFor(u)
		if err != nil {
			return nil, fmt.Errorf("failed to look up %s: %w", u, err)
		}
		if rec == nil {
			plan.New = append(plan.New, u)
			continue
		}
		plan.Known = append(plan.Known, URLStatus{URL: u, Latest: rec})
	}
	return plan, nil
}

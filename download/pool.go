// Package download runs a pool of HTTP download workers and reports their
// progress to a ProgressUI.
package download

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/baack/wget2/historydb"
	"github.com/baack/wget2/log"
	"github.com/baack/wget2/stats"
)

// ResultLogger receives per-URL outcomes. *log.Logger implements it.
type ResultLogger interface {
	Success(url, file string, bytes int64)
	Failed(url, reason string)
}

// HistoryStore persists per-URL outcomes. *historydb.DB implements it.
type HistoryStore interface {
	SaveRecord(rec *historydb.DownloadRecord) error
	PutRunDownload(runID string, rec *historydb.DownloadRecord) error
}

// Options configures DoFetch.
type Options struct {
	// Workers is the pool size and the upper bound of the worker limit.
	Workers int

	// InitialWorkers is the starting worker limit. Default: Workers
	InitialWorkers int

	OutputDir string
	UserAgent string
	Timeout   time.Duration

	// LimitRate caps the combined transfer rate in bytes/s when > 0.
	LimitRate int64

	NoClobber bool

	// Client overrides the HTTP client built from Timeout.
	Client *http.Client

	// UI receives progress. Default: StdoutUI on os.Stdout
	UI ProgressUI

	// Logger receives console messages. Failures are logged at Error.
	Logger log.LibraryLogger

	Results   ResultLogger
	Collector *stats.Collector
	History   HistoryStore
	RunID     string
}

// FetchStats tracks fetch statistics
type FetchStats struct {
	Total    int
	Success  int
	Failed   int
	Skipped  int
	Bytes    int64
	Duration time.Duration
	Results  []Result
}

// Pool bounds the number of concurrently downloading workers. The limit
// can change while downloads run.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	max    int
	limit  int
	active int
	closed bool
	ui     ProgressUI

	// onActive observes every change of active, with mu held.
	onActive func(active int)
}

func newPool(max, initial int, ui ProgressUI) *Pool {
	if initial < 1 || initial > max {
		initial = max
	}
	p := &Pool{max: max, limit: initial, ui: ui}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// SetWorkerLimit changes the number of workers allowed to download at
// once, clamped to 1..pool size. Workers above a lowered limit finish
// their current download first. Every change is passed to the UI: before
// waiting workers are woken when the limit grows, after the new limit is
// in place when it shrinks.
func (p *Pool) SetWorkerLimit(n int) {
	if n < 1 {
		n = 1
	}

	p.mu.Lock()
	if n > p.max {
		n = p.max
	}
	if p.closed || n == p.limit {
		p.mu.Unlock()
		return
	}
	grow := n > p.limit
	p.mu.Unlock()

	if grow {
		p.ui.OnPoolResize(n)
	}

	p.mu.Lock()
	changed := !p.closed && n != p.limit
	if changed {
		p.limit = n
		p.cond.Broadcast()
	}
	p.mu.Unlock()

	if changed && !grow {
		p.ui.OnPoolResize(n)
	}
}

// Limit returns the current worker limit.
func (p *Pool) Limit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limit
}

// Active returns the number of workers currently downloading.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// acquire blocks until the worker may download. It returns false when ctx
// is done or the pool is closed.
func (p *Pool) acquire(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.active >= p.limit && !p.closed && ctx.Err() == nil {
		p.cond.Wait()
	}
	if p.closed || ctx.Err() != nil {
		return false
	}
	p.active++
	p.notifyLocked()
	return true
}

func (p *Pool) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active--
	p.notifyLocked()
	p.cond.Broadcast()
}

func (p *Pool) notifyLocked() {
	if p.onActive != nil {
		p.onActive(p.active)
	}
}

func (p *Pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
}

func (p *Pool) wake() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cond.Broadcast()
}

// fetchContext holds the state of one DoFetch call.
type fetchContext struct {
	opts    Options
	logger  log.LibraryLogger
	fetcher *fetcher
	pool    *Pool
	queue   chan Job
	stats   FetchStats
	statsMu sync.Mutex
	wg      sync.WaitGroup
}

// DoFetch downloads jobs with a pool of opts.Workers workers. Worker i
// registers its progress slot with hint i. When opts.Collector is set,
// its DynMaxWorkers drives the pool's worker limit.
//
// A failed download never stops the other workers. DoFetch returns
// ctx.Err() when it was cancelled, together with the stats so far.
func DoFetch(ctx context.Context, jobs []Job, opts Options) (*FetchStats, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.UI == nil {
		opts.UI = NewStdoutUI(nil)
	}

	fc := &fetchContext{
		opts:    opts,
		logger:  opts.Logger,
		fetcher: newFetcher(&opts),
		pool:    newPool(opts.Workers, opts.InitialWorkers, opts.UI),
		queue:   make(chan Job),
	}
	if fc.logger == nil {
		fc.logger = log.NoOpLogger{}
	}
	fc.stats.Total = len(jobs)

	startTime := time.Now()
	stopWake := context.AfterFunc(ctx, fc.pool.wake)
	defer stopWake()

	if c := opts.Collector; c != nil {
		fc.pool.onActive = c.UpdateWorkerCount
		c.UpdateQueuedCount(len(jobs))
		c.AddConsumer(stats.ConsumerFunc(func(info stats.TopInfo) {
			fc.pool.SetWorkerLimit(info.DynMaxWorkers)
		}))
	}

	fc.logger.Debug("Starting %d workers for %d URLs (limit %d)", opts.Workers, len(jobs), fc.pool.Limit())

	for i := 0; i < opts.Workers; i++ {
		fc.wg.Add(1)
		go fc.workerLoop(ctx, i)
	}

	go func() {
		defer close(fc.queue)
		for _, job := range jobs {
			select {
			case fc.queue <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	fc.wg.Wait()
	fc.pool.close()

	fc.statsMu.Lock()
	defer fc.statsMu.Unlock()
	fc.stats.Duration = time.Since(startTime)
	result := fc.stats
	if err := ctx.Err(); err != nil {
		return &result, err
	}
	return &result, nil
}

// workerLoop is the main loop for a download worker
func (fc *fetchContext) workerLoop(ctx context.Context, id int) {
	defer fc.wg.Done()

	for {
		if !fc.pool.acquire(ctx) {
			return
		}

		var job Job
		var ok bool
		select {
		case job, ok = <-fc.queue:
		case <-ctx.Done():
		}
		if !ok {
			fc.pool.release()
			return
		}

		slot := fc.opts.UI.RegisterWorker(id)
		res := fc.fetcher.fetch(ctx, id, slot, job)
		slot.Deregister()

		fc.pool.release()
		fc.record(res)
	}
}

// record accounts for one finished job.
func (fc *fetchContext) record(res Result) {
	fc.statsMu.Lock()
	switch res.Status {
	case stats.DownloadSuccess:
		fc.stats.Success++
	case stats.DownloadSkipped:
		fc.stats.Skipped++
	default:
		fc.stats.Failed++
	}
	fc.stats.Bytes += res.Bytes
	fc.stats.Results = append(fc.stats.Results, res)
	fc.statsMu.Unlock()

	if fc.opts.Collector != nil {
		fc.opts.Collector.RecordCompletion(res.Status)
	}

	url := res.Job.URL
	switch res.Status {
	case stats.DownloadSuccess:
		fc.opts.UI.LogEvent(res.WorkerID, fmt.Sprintf("Saved '%s' [%s]", res.File, humanize.IBytes(uint64(res.Bytes))))
		if fc.opts.Results != nil {
			fc.opts.Results.Success(url, res.File, res.Bytes)
		}
	case stats.DownloadSkipped:
		fc.logger.Info("File '%s' already there; not retrieving.", res.File)
	default:
		reason := "unknown error"
		if res.Err != nil {
			reason = res.Err.Error()
		}
		fc.logger.Error("Failed to download %s: %s", url, reason)
		if fc.opts.Results != nil {
			fc.opts.Results.Failed(url, reason)
		}
	}

	fc.saveHistory(res)
}

func (fc *fetchContext) saveHistory(res Result) {
	if fc.opts.History == nil {
		return
	}

	rec := &historydb.DownloadRecord{
		UUID:       historydb.NewID(),
		RunID:      fc.opts.RunID,
		URL:        res.Job.URL,
		File:       res.File,
		Status:     res.Status.String(),
		HTTPStatus: res.HTTPStatus,
		Bytes:      res.Bytes,
		StartTime:  res.StartTime,
		EndTime:    res.EndTime,
		WorkerID:   res.WorkerID,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	if err := fc.opts.History.SaveRecord(rec); err != nil {
		fc.logger.Warn("Failed to save history for %s: %v", res.Job.URL, err)
	}
	if fc.opts.RunID == "" {
		return
	}
	if err := fc.opts.History.PutRunDownload(fc.opts.RunID, rec); err != nil {
		fc.logger.Warn("Failed to save run history for %s: %v", res.Job.URL, err)
	}
}

// Package monitor implements the full-screen `wget2 monitor` viewer. It
// polls the history database for the active run and shows the live stats
// snapshot the fetching process writes about once per second.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/baack/wget2/historydb"
	"github.com/baack/wget2/stats"
)

// DefaultInterval is how often the database is polled.
const DefaultInterval = time.Second

// Source is the read side of the history database. *historydb.DB
// implements it.
type Source interface {
	ActiveRun() (string, *historydb.RunRecord, error)
	ListRunDownloads(runID string) ([]historydb.DownloadRecord, error)
}

// Monitor is a tview application showing the active run.
type Monitor struct {
	src      Source
	interval time.Duration

	app          *tview.Application
	screen       tcell.Screen // Optional injected screen (for testing)
	afterDraw    func(tcell.Screen)
	headerText   *tview.TextView
	progressText *tview.TextView
	eventsText   *tview.TextView
	layout       *tview.Flex

	mu            sync.Mutex
	runID         string
	seen          map[string]bool
	eventLines    []string
	maxEventLines int
}

// New creates a monitor reading from src.
func New(src Source) *Monitor {
	return &Monitor{
		src:           src,
		interval:      DefaultInterval,
		seen:          make(map[string]bool),
		maxEventLines: 100,
	}
}

// SetScreen injects a custom tcell.Screen for testing purposes.
// Must be called before Run.
func (m *Monitor) SetScreen(screen tcell.Screen) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screen = screen
}

// SetInterval changes the poll interval. Must be called before Run.
func (m *Monitor) SetInterval(d time.Duration) {
	if d > 0 {
		m.interval = d
	}
}

// Run shows the monitor until 'q' or Ctrl+C is pressed or ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	m.build()

	pollCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.pollLoop(pollCtx)
	}()

	stop := context.AfterFunc(ctx, m.app.Stop)
	defer stop()

	err := m.app.SetRoot(m.layout, true).Run()

	cancel()
	wg.Wait()
	return err
}

func (m *Monitor) build() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.app = tview.NewApplication()
	if m.screen != nil {
		m.app.SetScreen(m.screen)
	}
	if m.afterDraw != nil {
		m.app.SetAfterDrawFunc(m.afterDraw)
	}

	m.headerText = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft).
		SetWordWrap(true)
	m.headerText.SetBorder(true).SetTitle(" System Stats ").SetTitleAlign(tview.AlignLeft)
	m.headerText.SetText("[yellow]Looking for an active run...[white]")

	m.progressText = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	m.progressText.SetBorder(true).SetTitle(" Progress ").SetTitleAlign(tview.AlignLeft)

	m.eventsText = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	m.eventsText.SetBorder(true).SetTitle(" Downloads ").SetTitleAlign(tview.AlignLeft)
	m.eventsText.SetText("No downloads yet...")

	m.layout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(m.headerText, 5, 0, false).
		AddItem(m.progressText, 5, 0, false).
		AddItem(m.eventsText, 0, 1, true)

	m.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			m.app.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 3, 'q', 'Q': // 3 is Ctrl+C delivered as ETX
				m.app.Stop()
				return nil
			}
		}
		return event
	})
}

func (m *Monitor) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		v := m.poll()
		if ctx.Err() != nil {
			return
		}
		// QueueUpdateDraw returns once the event loop ran the update,
		// which never happens after the application stopped.
		drawn := make(chan struct{})
		go func() {
			defer close(drawn)
			m.app.QueueUpdateDraw(func() { m.apply(v) })
		}()
		select {
		case <-ctx.Done():
			return
		case <-drawn:
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) apply(v view) {
	m.headerText.SetText(v.header)
	m.headerText.SetBorderColor(v.border)
	m.progressText.SetText(v.progress)
	if v.events != "" {
		m.eventsText.SetText(v.events)
		m.eventsText.ScrollToEnd()
	}
}

// view is the text of one refresh.
type view struct {
	header   string
	progress string
	events   string
	border   tcell.Color
}

// poll reads the database once and formats the result.
func (m *Monitor) poll() view {
	runID, rec, err := m.src.ActiveRun()
	if err != nil {
		return view{
			header: fmt.Sprintf("[red]Error reading active run:[white] %s", tview.Escape(err.Error())),
			border: tcell.ColorRed,
		}
	}
	if rec == nil {
		m.mu.Lock()
		m.runID = ""
		m.mu.Unlock()
		return view{
			header: "[yellow]No active run.[white] Waiting for `wget2 get`...",
			border: tcell.ColorWhite,
		}
	}

	info := Snapshot(rec)
	v := view{
		header:   FormatHeader(runID, info),
		progress: FormatProgress(info),
		border:   tcell.ColorWhite,
	}
	if info.DynMaxWorkers < info.MaxWorkers {
		v.border = tcell.ColorYellow
	}

	downloads, err := m.src.ListRunDownloads(runID)
	if err != nil {
		return v
	}
	v.events = m.addEvents(runID, downloads)
	return v
}

// addEvents appends downloads not shown before and returns the event log.
func (m *Monitor) addEvents(runID string, downloads []historydb.DownloadRecord) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if runID != m.runID {
		m.runID = runID
		m.seen = make(map[string]bool)
		m.eventLines = nil
	}

	added := false
	for _, d := range downloads {
		if m.seen[d.UUID] {
			continue
		}
		m.seen[d.UUID] = true
		m.eventLines = append(m.eventLines, FormatEvent(d))
		added = true
	}
	if len(m.eventLines) > m.maxEventLines {
		m.eventLines = m.eventLines[len(m.eventLines)-m.maxEventLines:]
	}
	if !added {
		return ""
	}
	return strings.Join(m.eventLines, "\n")
}

// Snapshot decodes the live stats of a run. Runs without a snapshot yet
// get one derived from the run record.
func Snapshot(rec *historydb.RunRecord) stats.TopInfo {
	var info stats.TopInfo
	if rec.LiveSnapshot != "" && json.Unmarshal([]byte(rec.LiveSnapshot), &info) == nil {
		return info
	}

	s := rec.Stats
	return stats.TopInfo{
		MaxWorkers:    rec.Workers,
		DynMaxWorkers: rec.Workers,
		StartTime:     rec.StartTime,
		Elapsed:       time.Since(rec.StartTime),
		Queued:        s.Total,
		Done:          s.Success,
		Failed:        s.Failed,
		Skipped:       s.Skipped,
		Remaining:     max(s.Total-(s.Success+s.Failed+s.Skipped), 0),
		Bytes:         s.Bytes,
	}
}

// FormatHeader renders the worker and system lines.
func FormatHeader(runID string, info stats.TopInfo) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}

	line1 := fmt.Sprintf("[yellow]Run:[white] %s  [yellow]Workers:[white] %2d/%2d  [yellow]Load:[white] %4.2f  [yellow]Swap:[white] %2d%%  [yellow][DynMax: %d][white]",
		short, info.ActiveWorkers, info.MaxWorkers, info.Load, info.SwapPct, info.DynMaxWorkers)
	line2 := fmt.Sprintf("[yellow]Elapsed:[white] %s  [yellow]Rate:[white] %s  [yellow]Impulse:[white] %s",
		stats.FormatDuration(info.Elapsed), stats.FormatRate(info.BytesPerSec), humanize.IBytes(uint64(max(info.Impulse, 0))))

	text := line1 + "\n" + line2
	if reason := stats.ThrottleReason(info); reason != "" {
		text += fmt.Sprintf("\n[yellow]Workers throttled: %s[white]", reason)
	}
	return text
}

// FormatProgress renders the download totals.
func FormatProgress(info stats.TopInfo) string {
	return fmt.Sprintf(
		"[green]Done:[white] %d  [red]Failed:[white] %d  [yellow]Skipped:[white] %d\n"+
			"Queued: %d  Remaining: %d  Received: %s",
		info.Done, info.Failed, info.Skipped,
		info.Queued, info.Remaining, humanize.IBytes(uint64(max(info.Bytes, 0))),
	)
}

// FormatEvent renders one finished download.
func FormatEvent(d historydb.DownloadRecord) string {
	ts := d.EndTime.Format("15:04:05")
	name := tview.Escape(filepath.Base(d.File))
	switch d.Status {
	case historydb.StatusSuccess:
		return fmt.Sprintf("[%s] [cyan][Worker %d][white] [green]saved[white] %s (%s)",
			ts, d.WorkerID, name, humanize.IBytes(uint64(max(d.Bytes, 0))))
	case historydb.StatusSkipped:
		return fmt.Sprintf("[%s] [cyan][Worker %d][white] [yellow]skipped[white] %s", ts, d.WorkerID, name)
	default:
		return fmt.Sprintf("[%s] [cyan][Worker %d][white] [red]failed[white] %s: %s",
			ts, d.WorkerID, tview.Escape(d.URL), tview.Escape(d.Error))
	}
}

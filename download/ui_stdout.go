package download

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/baack/wget2/stats"
)

// StdoutUI implements ProgressUI with plain lines, for when the bar is
// disabled or the output is not a terminal.
type StdoutUI struct {
	mu        sync.Mutex
	w         io.Writer
	interval  time.Duration
	lastPrint time.Time // Last time stats were printed
}

// NewStdoutUI creates a line based UI writing to w (os.Stdout when nil).
func NewStdoutUI(w io.Writer) *StdoutUI {
	if w == nil {
		w = os.Stdout
	}
	return &StdoutUI{w: w, interval: 5 * time.Second}
}

func (ui *StdoutUI) Start() error { return nil }

func (ui *StdoutUI) Stop() {}

func (ui *StdoutUI) RegisterWorker(hint int) Slot {
	return &lineSlot{ui: ui, worker: hint}
}

func (ui *StdoutUI) OnPoolResize(workers int) {
	ui.printf("Worker limit now %d\n", workers)
}

func (ui *StdoutUI) LogEvent(workerID int, message string) {
	ui.printf("[worker %d] %s\n", workerID, message)
}

// OnStatsUpdate prints a condensed status line every few seconds.
func (ui *StdoutUI) OnStatsUpdate(info stats.TopInfo) {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	now := time.Now()
	if now.Sub(ui.lastPrint) < ui.interval {
		return
	}
	ui.lastPrint = now

	line := fmt.Sprintf("[%s] Load %.2f Swap %d%% Rate %s Done %d Failed %d Remaining %d",
		stats.FormatDuration(info.Elapsed), info.Load, info.SwapPct,
		stats.FormatRate(info.BytesPerSec), info.Done, info.Failed, info.Remaining)
	if info.DynMaxWorkers < info.MaxWorkers {
		line += fmt.Sprintf(" [THROTTLED: %s]", stats.ThrottleReason(info))
	}
	fmt.Fprintln(ui.w, line)
}

func (ui *StdoutUI) printf(format string, args ...any) {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	fmt.Fprintf(ui.w, format, args...)
}

// lineSlot announces the start of a download and any status text.
type lineSlot struct {
	ui     *StdoutUI
	worker int
}

func (s *lineSlot) Write(p []byte) (int, error) { return len(p), nil }

func (s *lineSlot) Pos() int { return -1 }

func (s *lineSlot) Begin(label string, size int64) {
	if size < 0 {
		s.ui.printf("[worker %d] Saving '%s'\n", s.worker, label)
		return
	}
	s.ui.printf("[worker %d] Saving '%s' (%s)\n", s.worker, label, humanize.IBytes(uint64(size)))
}

func (s *lineSlot) Print(text string) {
	s.ui.printf("[worker %d] %s\n", s.worker, text)
}

func (s *lineSlot) Deregister() {}

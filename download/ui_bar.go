package download

import (
	"fmt"
	"sync"

	"github.com/baack/wget2/bar"
	"github.com/baack/wget2/stats"
)

// BarUI implements ProgressUI on top of a bar.Display. Events are written
// through the display so they scroll above the bar region.
type BarUI struct {
	d *bar.Display

	mu        sync.Mutex
	throttled bool
}

// NewBarUI wraps d. The display is started by Start.
func NewBarUI(d *bar.Display) *BarUI {
	return &BarUI{d: d}
}

// Display returns the wrapped display.
func (ui *BarUI) Display() *bar.Display {
	return ui.d
}

func (ui *BarUI) Start() error {
	return ui.d.Start()
}

func (ui *BarUI) Stop() {
	ui.d.Stop()
}

func (ui *BarUI) RegisterWorker(hint int) Slot {
	return ui.d.RegisterWorker(hint)
}

func (ui *BarUI) OnPoolResize(workers int) {
	ui.d.Resize(workers)
}

func (ui *BarUI) LogEvent(workerID int, message string) {
	fmt.Fprintln(ui.d, message)
}

// OnStatsUpdate announces when throttling starts and ends.
func (ui *BarUI) OnStatsUpdate(info stats.TopInfo) {
	throttled := info.DynMaxWorkers < info.MaxWorkers && !info.Ramping

	ui.mu.Lock()
	changed := throttled != ui.throttled
	ui.throttled = throttled
	ui.mu.Unlock()

	if !changed {
		return
	}
	if throttled {
		fmt.Fprintf(ui.d, "Throttled to %d of %d workers: %s\n",
			info.DynMaxWorkers, info.MaxWorkers, stats.ThrottleReason(info))
	} else {
		fmt.Fprintf(ui.d, "Throttling lifted, %d workers\n", info.DynMaxWorkers)
	}
}

package bar

import (
	"context"
	"os"
	"time"
)

// run is the redraw loop. Each iteration repaints under the gate and then
// sleeps without it, so other writers are never blocked by the idle period.
// Cancellation is observed before every repaint; the loop exits without a
// final redraw.
func (d *Display) run(ctx context.Context, interval time.Duration, resize <-chan os.Signal) {
	defer d.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		d.Repaint()

		select {
		case <-ctx.Done():
			return
		case <-resize:
			d.mu.Lock()
			d.refreshWidthLocked()
			d.mu.Unlock()
		case <-ticker.C:
		}
	}
}

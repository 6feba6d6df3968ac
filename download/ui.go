package download

import (
	"io"

	"github.com/baack/wget2/stats"
)

// Slot receives the progress of one download. *bar.Worker implements it.
type Slot interface {
	io.Writer

	// Pos returns the display line of the slot, or -1 when it has none.
	Pos() int

	// Begin sets the label and expected size. A negative size is unknown.
	Begin(label string, size int64)

	// Print shows a status text in place of the progress.
	Print(text string)

	// Deregister releases the slot.
	Deregister()
}

// ProgressUI is the interface for displaying download progress.
// Implementations are the multi-line progress bar and plain stdout lines.
type ProgressUI interface {
	// Start initializes the UI (e.g., reserve the bar lines)
	Start() error

	// Stop cleanly shuts down the UI
	Stop()

	// RegisterWorker returns the progress slot for one download of the
	// worker with the given ordinal.
	RegisterWorker(hint int) Slot

	// OnPoolResize is called whenever the active worker limit changes.
	OnPoolResize(workers int)

	// LogEvent reports a finished download (e.g., "Saved 'a.iso' [4.0 MiB]")
	LogEvent(workerID int, message string)

	// OnStatsUpdate receives the 1 Hz stats snapshot.
	stats.StatsConsumer
}

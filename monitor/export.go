package monitor

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNoActiveRun is returned by Export when nothing is downloading.
var ErrNoActiveRun = errors.New("no active run")

// Export writes the active run's snapshot as key=value lines, one metric
// per line, for scripts that poll a status file. It returns the run ID.
func Export(src Source, w io.Writer) (string, error) {
	runID, rec, err := src.ActiveRun()
	if err != nil {
		return "", fmt.Errorf("failed to read active run: %w", err)
	}
	if rec == nil {
		return "", ErrNoActiveRun
	}

	info := Snapshot(rec)
	_, err = fmt.Fprintf(w, `Run=%s
Load=%.2f
Swap=%d
Workers=%d/%d
DynMax=%d
Rate=%.0f
Impulse=%.0f
Elapsed=%d
Queued=%d
Done=%d
Failed=%d
Skipped=%d
Remaining=%d
Bytes=%d
`,
		runID,
		info.Load,
		info.SwapPct,
		info.ActiveWorkers, info.MaxWorkers,
		info.DynMaxWorkers,
		info.BytesPerSec,
		info.Impulse,
		int(info.Elapsed/time.Second),
		info.Queued,
		info.Done,
		info.Failed,
		info.Skipped,
		info.Remaining,
		info.Bytes,
	)
	return runID, err
}

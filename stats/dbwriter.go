package stats

import (
	"encoding/json"

	"github.com/baack/wget2/log"
)

// SnapshotStore is the history DB operation needed by DBWriter.
type SnapshotStore interface {
	UpdateRunSnapshot(runID string, snapshot string) error
}

// DBWriter implements StatsConsumer to persist live stats for the monitor
// command. It writes the run's live snapshot as JSON on every tick.
//
// Database write failures are logged but never interrupt downloads.
type DBWriter struct {
	db     SnapshotStore
	runID  string
	logger log.LibraryLogger
}

// NewDBWriter creates a stats consumer for the given run. logger may be nil.
func NewDBWriter(db SnapshotStore, runID string, logger log.LibraryLogger) *DBWriter {
	if logger == nil {
		logger = log.NoOpLogger{}
	}
	return &DBWriter{
		db:     db,
		runID:  runID,
		logger: logger,
	}
}

// OnStatsUpdate persists the current stats snapshot.
func (w *DBWriter) OnStatsUpdate(info TopInfo) {
	data, err := json.Marshal(info)
	if err != nil {
		w.logger.Warn("Failed to marshal stats snapshot: %v", err)
		return
	}

	if err := w.db.UpdateRunSnapshot(w.runID, string(data)); err != nil {
		w.logger.Debug("Failed to update snapshot for run %s: %v", w.runID, err)
	}
}

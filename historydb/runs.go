package historydb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

// RunStats aggregates per-run download outcomes.
type RunStats struct {
	Total   int   `json:"total"`
	Success int   `json:"success"`
	Failed  int   `json:"failed"`
	Skipped int   `json:"skipped"`
	Bytes   int64 `json:"bytes"`
}

// RunRecord captures metadata for one fetch invocation.
type RunRecord struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Aborted   bool      `json:"aborted"`
	Workers   int       `json:"workers"`
	Stats     RunStats  `json:"stats"`

	// LiveSnapshot is the latest JSON encoded stats snapshot, written
	// about once per second while the run is active.
	LiveSnapshot string `json:"live_snapshot,omitempty"`
}

// Active reports whether the run has not finished.
func (r *RunRecord) Active() bool {
	return r.EndTime.IsZero()
}

// RunInfo pairs a run record with its ID.
type RunInfo struct {
	ID string
	RunRecord
}

// StartRun writes a new run entry.
func (db *DB) StartRun(runID string, startTime time.Time, workers int) error {
	if runID == "" {
		return &ValidationError{Field: "runID", Err: ErrEmptyUUID}
	}

	rec := RunRecord{StartTime: startTime, Workers: workers}
	return db.saveRunRecord(runID, &rec)
}

// FinishRun updates an existing run with stats, end time, and abortion flag.
func (db *DB) FinishRun(runID string, stats RunStats, endTime time.Time, aborted bool) error {
	if runID == "" {
		return &ValidationError{Field: "runID", Err: ErrEmptyUUID}
	}

	return db.updateRunRecord(runID, func(rec *RunRecord) {
		rec.EndTime = endTime
		rec.Aborted = aborted
		rec.Stats = stats
	})
}

// UpdateRunSnapshot stores the live stats snapshot of an active run.
func (db *DB) UpdateRunSnapshot(runID string, snapshot string) error {
	if runID == "" {
		return &ValidationError{Field: "runID", Err: ErrEmptyUUID}
	}

	return db.updateRunRecord(runID, func(rec *RunRecord) {
		rec.LiveSnapshot = snapshot
	})
}

// GetRun fetches a run record by its ID.
func (db *DB) GetRun(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, &ValidationError{Field: "runID", Err: ErrEmptyUUID}
	}

	var rec RunRecord
	err := db.view(func(tx *bolt.Tx) error {
		runs, err := bucket(tx, BucketRuns)
		if err != nil {
			return err
		}

		data := runs.Get([]byte(runID))
		if data == nil {
			return &RecordError{Op: "get run", UUID: runID, Err: ErrRecordNotFound}
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ActiveRun returns the most recently started run that has no end time.
// It returns an empty ID and nil record when no run is active.
func (db *DB) ActiveRun() (string, *RunRecord, error) {
	runs, err := db.ListRuns(0)
	if err != nil {
		return "", nil, err
	}
	for i := range runs {
		if runs[i].Active() {
			rec := runs[i].RunRecord
			return runs[i].ID, &rec, nil
		}
	}
	return "", nil, nil
}

// ListRuns returns runs newest first. A limit of zero returns all runs.
func (db *DB) ListRuns(limit int) ([]RunInfo, error) {
	var runs []RunInfo

	err := db.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketRuns)
		if err != nil {
			return err
		}

		return b.ForEach(func(k, v []byte) error {
			var r RunRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return &RecordError{Op: "unmarshal run", UUID: string(k), Err: ErrCorruptedData}
			}
			runs = append(runs, RunInfo{ID: string(k), RunRecord: r})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// PutRunDownload writes or updates a download record for the given run.
func (db *DB) PutRunDownload(runID string, rec *DownloadRecord) error {
	if runID == "" {
		return &ValidationError{Field: "runID", Err: ErrEmptyUUID}
	}
	if rec == nil {
		return fmt.Errorf("download record is nil")
	}
	if rec.UUID == "" {
		return &ValidationError{Field: "record.UUID", Err: ErrEmptyUUID}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return &RecordError{Op: "marshal run download", UUID: runID, Err: err}
	}

	return db.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketRunDownloads)
		if err != nil {
			return err
		}
		return b.Put(runDownloadKey(runID, rec.UUID), data)
	})
}

// ListRunDownloads returns the download records of a run ordered by start time.
func (db *DB) ListRunDownloads(runID string) ([]DownloadRecord, error) {
	if runID == "" {
		return nil, &ValidationError{Field: "runID", Err: ErrEmptyUUID}
	}

	prefix := runDownloadPrefix(runID)
	var records []DownloadRecord

	err := db.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketRunDownloads)
		if err != nil {
			return err
		}

		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec DownloadRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartTime.Before(records[j].StartTime)
	})
	return records, nil
}

func runDownloadKey(runID, uuid string) []byte {
	return append(runDownloadPrefix(runID), []byte(uuid)...)
}

func runDownloadPrefix(runID string) []byte {
	return []byte(runID + "\x00")
}

func (db *DB) saveRunRecord(runID string, rec *RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &RecordError{Op: "marshal run", UUID: runID, Err: err}
	}

	return db.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketRuns)
		if err != nil {
			return err
		}
		return b.Put([]byte(runID), data)
	})
}

func (db *DB) updateRunRecord(runID string, mutate func(*RunRecord)) error {
	return db.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketRuns)
		if err != nil {
			return err
		}

		data := b.Get([]byte(runID))
		if data == nil {
			return &RecordError{Op: "update run", UUID: runID, Err: ErrRecordNotFound}
		}

		var rec RunRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return &RecordError{Op: "unmarshal run", UUID: runID, Err: err}
		}

		mutate(&rec)

		updated, err := json.Marshal(&rec)
		if err != nil {
			return &RecordError{Op: "marshal run", UUID: runID, Err: err}
		}
		return b.Put([]byte(runID), updated)
	})
}

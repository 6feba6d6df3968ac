package stats

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/baack/wget2/log"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{59 * time.Second, "00:00:59"},
		{61 * time.Minute, "01:01:00"},
		{25*time.Hour + 30*time.Second, "25:00:30"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, "0 B/s"},
		{0.5, "0 B/s"},
		{512, "512 B/s"},
		{1536, "1.5 KiB/s"},
		{3 << 20, "3.0 MiB/s"},
	}
	for _, tt := range tests {
		if got := FormatRate(tt.rate); got != tt.want {
			t.Errorf("FormatRate(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestThrottleReason(t *testing.T) {
	tests := []struct {
		name string
		info TopInfo
		want string
	}{
		{"not throttled", TopInfo{MaxWorkers: 8, DynMaxWorkers: 8, Load: 2.0}, ""},
		{"high load", TopInfo{MaxWorkers: 8, DynMaxWorkers: 6, Load: 20.0}, "high load"},
		{"high swap", TopInfo{MaxWorkers: 8, DynMaxWorkers: 6, Load: 2.0, SwapPct: 15}, "high swap"},
		{"load before swap", TopInfo{MaxWorkers: 8, DynMaxWorkers: 4, Load: 25.0, SwapPct: 20}, "high load"},
		{"slow start", TopInfo{MaxWorkers: 8, DynMaxWorkers: 3, Ramping: true}, "slow start"},
		{"unknown", TopInfo{MaxWorkers: 8, DynMaxWorkers: 6, Load: 4.0, SwapPct: 5}, "system resources"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ThrottleReason(tt.info); got != tt.want {
				t.Errorf("ThrottleReason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDownloadStatusString(t *testing.T) {
	tests := map[DownloadStatus]string{
		DownloadSuccess:     "success",
		DownloadFailed:      "failed",
		DownloadSkipped:     "skipped",
		DownloadStatus(999): "unknown",
	}
	for status, want := range tests {
		if got := status.String(); got != want {
			t.Errorf("DownloadStatus(%d).String() = %q, want %q", int(status), got, want)
		}
	}
}

type mockSnapshotStore struct {
	snapshots map[string]string
	err       error
}

func (m *mockSnapshotStore) UpdateRunSnapshot(runID, snapshot string) error {
	if m.err != nil {
		return m.err
	}
	m.snapshots[runID] = snapshot
	return nil
}

func TestDBWriter_OnStatsUpdate(t *testing.T) {
	store := &mockSnapshotStore{snapshots: map[string]string{}}
	w := NewDBWriter(store, "run-1", nil)

	w.OnStatsUpdate(TopInfo{ActiveWorkers: 3, MaxWorkers: 4, Bytes: 12345, Queued: 10, Done: 2})

	raw, ok := store.snapshots["run-1"]
	if !ok {
		t.Fatal("snapshot not stored")
	}
	var got TopInfo
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("stored snapshot is not JSON: %v", err)
	}
	if got.ActiveWorkers != 3 || got.Bytes != 12345 || got.Done != 2 {
		t.Errorf("stored snapshot = %+v", got)
	}
}

func TestDBWriter_ErrorIsLogged(t *testing.T) {
	store := &mockSnapshotStore{err: errors.New("database closed")}
	logger := log.NewMemoryLogger()
	w := NewDBWriter(store, "run-2", logger)

	w.OnStatsUpdate(TopInfo{})

	msgs := logger.Messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Message, "database closed") {
		t.Errorf("logged messages = %v", msgs)
	}
}

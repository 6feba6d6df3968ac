package historydb

import (
	"fmt"
	"testing"
	"time"
)

func TestRunLifecycle(t *testing.T) {
	db := setupTestDB(t)
	runID := NewID()
	start := time.Now().Add(-time.Minute).Truncate(time.Second)

	if err := db.StartRun(runID, start, 4); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	id, active, err := db.ActiveRun()
	if err != nil {
		t.Fatalf("ActiveRun failed: %v", err)
	}
	if id != runID || active == nil || !active.Active() || active.Workers != 4 {
		t.Fatalf("ActiveRun = %q %+v", id, active)
	}

	if err := db.UpdateRunSnapshot(runID, `{"Bytes":10}`); err != nil {
		t.Fatalf("UpdateRunSnapshot failed: %v", err)
	}

	end := start.Add(30 * time.Second)
	stats := RunStats{Total: 3, Success: 2, Failed: 1, Bytes: 4096}
	if err := db.FinishRun(runID, stats, end, false); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	rec, err := db.GetRun(runID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if rec.Active() || !rec.EndTime.Equal(end) || rec.Stats != stats || rec.Aborted {
		t.Errorf("finished run = %+v", rec)
	}
	if rec.LiveSnapshot != `{"Bytes":10}` {
		t.Errorf("LiveSnapshot = %q, want last snapshot kept", rec.LiveSnapshot)
	}

	id, active, err = db.ActiveRun()
	if err != nil || id != "" || active != nil {
		t.Errorf("ActiveRun after finish = %q %v %v", id, active, err)
	}
}

func TestRunValidation(t *testing.T) {
	db := setupTestDB(t)

	if err := db.StartRun("", time.Now(), 1); !IsValidationError(err) {
		t.Errorf("StartRun(\"\") = %v", err)
	}
	if err := db.FinishRun("", RunStats{}, time.Now(), false); !IsValidationError(err) {
		t.Errorf("FinishRun(\"\") = %v", err)
	}
	if err := db.UpdateRunSnapshot("", "{}"); !IsValidationError(err) {
		t.Errorf("UpdateRunSnapshot(\"\") = %v", err)
	}
	if _, err := db.GetRun(""); !IsValidationError(err) {
		t.Errorf("GetRun(\"\") = %v", err)
	}
	if _, err := db.ListRunDownloads(""); !IsValidationError(err) {
		t.Errorf("ListRunDownloads(\"\") = %v", err)
	}
	if err := db.PutRunDownload("", &DownloadRecord{UUID: "x"}); !IsValidationError(err) {
		t.Errorf("PutRunDownload(\"\") = %v", err)
	}
	if err := db.PutRunDownload("run", nil); err == nil {
		t.Error("PutRunDownload(nil) succeeded")
	}
}

func TestUnknownRun(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.GetRun("nope"); !IsRecordNotFound(err) {
		t.Errorf("GetRun = %v, want not found", err)
	}
	if err := db.FinishRun("nope", RunStats{}, time.Now(), true); !IsRecordNotFound(err) {
		t.Errorf("FinishRun = %v, want not found", err)
	}
	if err := db.UpdateRunSnapshot("nope", "{}"); !IsRecordNotFound(err) {
		t.Errorf("UpdateRunSnapshot = %v, want not found", err)
	}
}

func TestActiveRunPicksNewest(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	if err := db.StartRun("old", now.Add(-time.Hour), 1); err != nil {
		t.Fatal(err)
	}
	if err := db.StartRun("new", now, 1); err != nil {
		t.Fatal(err)
	}
	if err := db.StartRun("done", now.Add(time.Minute), 1); err != nil {
		t.Fatal(err)
	}
	if err := db.FinishRun("done", RunStats{}, now.Add(2*time.Minute), false); err != nil {
		t.Fatal(err)
	}

	id, _, err := db.ActiveRun()
	if err != nil {
		t.Fatal(err)
	}
	if id != "new" {
		t.Errorf("ActiveRun = %q, want new", id)
	}
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	base := time.Now()

	for i := 0; i < 5; i++ {
		if err := db.StartRun(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute), 1); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := db.ListRuns(3)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	want := []string{"run-4", "run-3", "run-2"}
	if len(runs) != len(want) {
		t.Fatalf("ListRuns returned %d runs, want %d", len(runs), len(want))
	}
	for i, id := range want {
		if runs[i].ID != id {
			t.Errorf("runs[%d] = %s, want %s", i, runs[i].ID, id)
		}
	}

	all, err := db.ListRuns(0)
	if err != nil || len(all) != 5 {
		t.Errorf("ListRuns(0) = %d runs, %v", len(all), err)
	}
}

func TestRunDownloads(t *testing.T) {
	db := setupTestDB(t)
	base := time.Now()

	other := createTestRecord("https://example.com/other", StatusSuccess)
	if err := db.PutRunDownload("run-b", other); err != nil {
		t.Fatal(err)
	}

	var want []string
	for i := 0; i < 4; i++ {
		rec := createTestRecord(fmt.Sprintf("https://example.com/%d", i), StatusSuccess)
		rec.StartTime = base.Add(time.Duration(i) * time.Second)
		want = append(want, rec.URL)
		if err := db.PutRunDownload("run-a", rec); err != nil {
			t.Fatalf("PutRunDownload failed: %v", err)
		}
	}

	got, err := db.ListRunDownloads("run-a")
	if err != nil {
		t.Fatalf("ListRunDownloads failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("ListRunDownloads returned %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].URL != want[i] {
			t.Errorf("record %d URL = %s, want %s", i, got[i].URL, want[i])
		}
	}

	t.Run("update replaces", func(t *testing.T) {
		got[0].Status = StatusFailed
		if err := db.PutRunDownload("run-a", &got[0]); err != nil {
			t.Fatal(err)
		}
		again, err := db.ListRunDownloads("run-a")
		if err != nil {
			t.Fatal(err)
		}
		if len(again) != 4 || again[0].Status != StatusFailed {
			t.Errorf("after update: %d records, first status %s", len(again), again[0].Status)
		}
	})

	t.Run("unknown run is empty", func(t *testing.T) {
		recs, err := db.ListRunDownloads("run-z")
		if err != nil || len(recs) != 0 {
			t.Errorf("ListRunDownloads(run-z) = %v, %v", recs, err)
		}
	})
}

package historydb

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "history.db")
	db, err := OpenDB(path)
	if err != nil {
		t.Fatalf("OpenDB(%s) failed: %v", path, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestRecord(url, status string) *DownloadRecord {
	start := time.Now().Add(-time.Second)
	return &DownloadRecord{
		UUID:      NewID(),
		URL:       url,
		File:      filepath.Base(url),
		Status:    status,
		Bytes:     1024,
		StartTime: start,
		EndTime:   start.Add(time.Second),
		WorkerID:  1,
	}
}

func TestOpenDB(t *testing.T) {
	t.Run("creates parent directory and buckets", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
		db, err := OpenDB(path)
		if err != nil {
			t.Fatalf("OpenDB failed: %v", err)
		}
		defer db.Close()

		if db.Path() != path {
			t.Errorf("Path() = %q, want %q", db.Path(), path)
		}
		st, err := db.Stats()
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if st.Runs != 0 || st.Downloads != 0 || st.URLs != 0 {
			t.Errorf("new database stats = %+v, want empty", st)
		}
	})

	t.Run("reopen keeps data", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.db")
		db, err := OpenDB(path)
		if err != nil {
			t.Fatalf("OpenDB failed: %v", err)
		}
		rec := createTestRecord("https://example.com/a.txt", StatusSuccess)
		if err := db.SaveRecord(rec); err != nil {
			t.Fatalf("SaveRecord failed: %v", err)
		}
		db.Close()

		db, err = OpenDB(path)
		if err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
		defer db.Close()
		if _, err := db.GetRecord(rec.UUID); err != nil {
			t.Errorf("GetRecord after reopen: %v", err)
		}
	})
}

func TestClose(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
	if _, err := db.GetRecord("x"); !errors.Is(err, ErrDatabaseNotOpen) {
		t.Errorf("GetRecord after Close = %v, want ErrDatabaseNotOpen", err)
	}
}

func TestSaveRecord(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		db := setupTestDB(t)
		rec := createTestRecord("https://example.com/file.iso", StatusSuccess)
		rec.HTTPStatus = 200

		if err := db.SaveRecord(rec); err != nil {
			t.Fatalf("SaveRecord failed: %v", err)
		}
		got, err := db.GetRecord(rec.UUID)
		if err != nil {
			t.Fatalf("GetRecord failed: %v", err)
		}
		if got.URL != rec.URL || got.Status != rec.Status || got.Bytes != rec.Bytes || got.HTTPStatus != 200 {
			t.Errorf("GetRecord = %+v, want %+v", got, rec)
		}
		if got.Duration() != time.Second {
			t.Errorf("Duration() = %v, want 1s", got.Duration())
		}
	})

	t.Run("empty UUID", func(t *testing.T) {
		db := setupTestDB(t)
		rec := createTestRecord("https://example.com/x", StatusSuccess)
		rec.UUID = ""
		err := db.SaveRecord(rec)
		if !IsValidationError(err) || !errors.Is(err, ErrEmptyUUID) {
			t.Errorf("SaveRecord = %v, want ErrEmptyUUID validation error", err)
		}
	})

	t.Run("empty URL", func(t *testing.T) {
		db := setupTestDB(t)
		rec := createTestRecord("", StatusSuccess)
		if err := db.SaveRecord(rec); !errors.Is(err, ErrEmptyURL) {
			t.Errorf("SaveRecord = %v, want ErrEmptyURL", err)
		}
	})

	t.Run("nil record", func(t *testing.T) {
		db := setupTestDB(t)
		if err := db.SaveRecord(nil); !IsValidationError(err) {
			t.Errorf("SaveRecord(nil) = %v, want validation error", err)
		}
	})
}

func TestGetRecordNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetRecord("missing")
	if !IsRecordNotFound(err) {
		t.Errorf("GetRecord = %v, want ErrRecordNotFound", err)
	}
	var re *RecordError
	if !errors.As(err, &re) || re.UUID != "missing" {
		t.Errorf("error %v is not a RecordError for 'missing'", err)
	}
}

func TestLatestFor(t *testing.T) {
	t.Run("never fetched", func(t *testing.T) {
		db := setupTestDB(t)
		rec, err := db.LatestFor("https://example.com/none")
		if err != nil || rec != nil {
			t.Errorf("LatestFor = %v, %v; want nil, nil", rec, err)
		}
	})

	t.Run("latest success wins and failures do not replace it", func(t *testing.T) {
		db := setupTestDB(t)
		url := "https://example.com/data.bin"

		first := createTestRecord(url, StatusSuccess)
		second := createTestRecord(url, StatusSuccess)
		second.Bytes = 2048
		failed := createTestRecord(url, StatusFailed)

		for _, r := range []*DownloadRecord{first, second, failed} {
			if err := db.SaveRecord(r); err != nil {
				t.Fatalf("SaveRecord failed: %v", err)
			}
		}

		got, err := db.LatestFor(url)
		if err != nil {
			t.Fatalf("LatestFor failed: %v", err)
		}
		if got == nil || got.UUID != second.UUID {
			t.Errorf("LatestFor = %+v, want record %s", got, second.UUID)
		}
	})

	t.Run("empty URL", func(t *testing.T) {
		db := setupTestDB(t)
		if _, err := db.LatestFor(""); !IsValidationError(err) {
			t.Errorf("LatestFor(\"\") = %v, want validation error", err)
		}
	})
}

func TestStats(t *testing.T) {
	db := setupTestDB(t)

	if err := db.StartRun("run-1", time.Now(), 2); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	for _, r := range []*DownloadRecord{
		createTestRecord("https://example.com/a", StatusSuccess),
		createTestRecord("https://example.com/b", StatusSuccess),
		createTestRecord("https://example.com/c", StatusFailed),
	} {
		if err := db.SaveRecord(r); err != nil {
			t.Fatalf("SaveRecord failed: %v", err)
		}
	}

	st, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.Runs != 1 || st.Downloads != 3 || st.URLs != 2 {
		t.Errorf("Stats = %+v, want 1 run, 3 downloads, 2 URLs", st)
	}
	if st.Size <= 0 {
		t.Errorf("Size = %d, want > 0", st.Size)
	}
}

func TestOpenShared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	writer, err := OpenShared(path)
	if err != nil {
		t.Fatalf("OpenShared failed: %v", err)
	}
	defer writer.Close()

	reader, err := OpenShared(path)
	if err != nil {
		t.Fatalf("second OpenShared failed: %v", err)
	}
	defer reader.Close()

	if err := writer.StartRun("run-shared", time.Now(), 4); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := writer.UpdateRunSnapshot("run-shared", `{"Done":1}`); err != nil {
		t.Fatalf("UpdateRunSnapshot failed: %v", err)
	}

	id, rec, err := reader.ActiveRun()
	if err != nil {
		t.Fatalf("ActiveRun failed: %v", err)
	}
	if id != "run-shared" || rec.LiveSnapshot != `{"Done":1}` {
		t.Errorf("ActiveRun = %q %+v", id, rec)
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&DatabaseError{Op: "open", Err: ErrBucketNotFound}, "database open: database bucket not found"},
		{&DatabaseError{Op: "get bucket", Bucket: "runs", Err: ErrBucketNotFound}, "database get bucket [bucket: runs]: database bucket not found"},
		{&RecordError{Op: "get", UUID: "u1", Err: ErrRecordNotFound}, "record get [uuid: u1]: record not found"},
		{&ValidationError{Field: "runID", Err: ErrEmptyUUID}, "validation failed [runID]: UUID cannot be empty"},
		{&ValidationError{Field: "url", Value: "x", Err: ErrEmptyURL}, "validation failed [url=x]: URL cannot be empty"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}

	if !IsDatabaseError(&RecordError{Err: &DatabaseError{Op: "x", Err: ErrBucketNotFound}}) {
		t.Error("IsDatabaseError did not see through RecordError")
	}
}

func TestBackup(t *testing.T) {
	db := setupTestDB(t)
	rec := createTestRecord("https://example.com/a.iso", StatusSuccess)
	if err := db.SaveRecord(rec); err != nil {
		t.Fatalf("SaveRecord failed: %v", err)
	}

	backupPath := filepath.Join(t.TempDir(), "history.db.backup")
	if err := db.Backup(backupPath); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}

	copyDB, err := OpenDB(backupPath)
	if err != nil {
		t.Fatalf("OpenDB(backup) failed: %v", err)
	}
	defer copyDB.Close()

	got, err := copyDB.LatestFor(rec.URL)
	if err != nil {
		t.Fatalf("LatestFor on backup failed: %v", err)
	}
	if got == nil || got.UUID != rec.UUID {
		t.Errorf("backup LatestFor = %+v, want UUID %s", got, rec.UUID)
	}
}

// Package historydb records download runs and per-URL download outcomes
// in a bbolt database.
package historydb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Bucket names for bbolt database
const (
	BucketRuns         = "runs"
	BucketRunDownloads = "run_downloads"
	BucketDownloads    = "downloads"
	BucketURLIndex     = "url_index"
)

// LockTimeout bounds how long an open waits for another process holding
// the database file.
const LockTimeout = 2 * time.Second

// Download status values.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// DB wraps a bbolt database for download history.
//
// A DB opened with OpenDB holds the file lock until Close. A DB opened with
// OpenShared reopens the file for every transaction, so a long running
// fetch and a monitor in another process can both use it.
type DB struct {
	mu     sync.Mutex
	db     *bolt.DB
	path   string
	shared bool
	closed bool
}

// DownloadRecord is the outcome of one URL.
type DownloadRecord struct {
	UUID       string    `json:"uuid"`
	RunID      string    `json:"run_id,omitempty"`
	URL        string    `json:"url"`
	File       string    `json:"file,omitempty"`
	Status     string    `json:"status"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Bytes      int64     `json:"bytes"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	WorkerID   int       `json:"worker_id"`
	Error      string    `json:"error,omitempty"`
}

// NewID returns a fresh run ID or download record UUID.
func NewID() string {
	return uuid.NewString()
}

// Duration returns how long the download took, or zero if unfinished.
func (r *DownloadRecord) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// OpenDB opens or creates the database at path and initializes its buckets.
// The parent directory is created if missing. The file is opened with 0600
// permissions.
//
// Example:
//
//	db, err := OpenDB("/home/user/.cache/wget2/history.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
func OpenDB(path string) (*DB, error) {
	bdb, err := openBolt(path)
	if err != nil {
		return nil, err
	}
	if err := initBuckets(bdb); err != nil {
		bdb.Close()
		return nil, err
	}
	return &DB{db: bdb, path: path}, nil
}

// OpenShared initializes the database at path and returns a handle that
// only holds the file lock for the duration of each operation.
func OpenShared(path string) (*DB, error) {
	bdb, err := openBolt(path)
	if err != nil {
		return nil, err
	}
	err = initBuckets(bdb)
	if cerr := bdb.Close(); err == nil && cerr != nil {
		err = &DatabaseError{Op: "close", Err: cerr}
	}
	if err != nil {
		return nil, err
	}
	return &DB{path: path, shared: true}, nil
}

func openBolt(path string) (*bolt.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &DatabaseError{Op: "create directory", Err: err}
		}
	}
	bdb, err := bolt.Open(path, 0600, &bolt.Options{Timeout: LockTimeout})
	if err != nil {
		return nil, &DatabaseError{Op: "open", Err: err}
	}
	return bdb, nil
}

func initBuckets(bdb *bolt.DB) error {
	return bdb.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{BucketRuns, BucketRunDownloads, BucketDownloads, BucketURLIndex} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return &DatabaseError{Op: "create bucket", Bucket: name, Err: err}
			}
		}
		return nil
	})
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database. It is safe to call Close multiple times.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true
	if db.db == nil {
		return nil
	}
	return db.db.Close()
}

func (db *DB) with(fn func(*bolt.DB) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrDatabaseNotOpen
	}
	if !db.shared {
		return fn(db.db)
	}

	bdb, err := openBolt(db.path)
	if err != nil {
		return err
	}
	defer bdb.Close()
	return fn(bdb)
}

func (db *DB) view(fn func(*bolt.Tx) error) error {
	return db.with(func(bdb *bolt.DB) error { return bdb.View(fn) })
}

func (db *DB) update(fn func(*bolt.Tx) error) error {
	return db.with(func(bdb *bolt.DB) error { return bdb.Update(fn) })
}

func bucket(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, &DatabaseError{Op: "get bucket", Bucket: name, Err: ErrBucketNotFound}
	}
	return b, nil
}

// SaveRecord stores a DownloadRecord keyed by its UUID. A successful record
// also becomes the latest record for its URL.
func (db *DB) SaveRecord(rec *DownloadRecord) error {
	if rec == nil || rec.UUID == "" {
		return &ValidationError{Field: "record.UUID", Err: ErrEmptyUUID}
	}
	if rec.URL == "" {
		return &ValidationError{Field: "record.URL", Err: ErrEmptyURL}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return &RecordError{Op: "marshal", UUID: rec.UUID, Err: err}
	}

	err = db.update(func(tx *bolt.Tx) error {
		downloads, err := bucket(tx, BucketDownloads)
		if err != nil {
			return err
		}
		if err := downloads.Put([]byte(rec.UUID), data); err != nil {
			return err
		}
		if rec.Status != StatusSuccess {
			return nil
		}
		index, err := bucket(tx, BucketURLIndex)
		if err != nil {
			return err
		}
		return index.Put([]byte(rec.URL), []byte(rec.UUID))
	})
	if err != nil {
		return &RecordError{Op: "save", UUID: rec.UUID, Err: err}
	}
	return nil
}

// GetRecord retrieves a DownloadRecord by UUID.
func (db *DB) GetRecord(uuid string) (*DownloadRecord, error) {
	if uuid == "" {
		return nil, &ValidationError{Field: "uuid", Err: ErrEmptyUUID}
	}

	var rec DownloadRecord
	err := db.view(func(tx *bolt.Tx) error {
		downloads, err := bucket(tx, BucketDownloads)
		if err != nil {
			return err
		}
		data := downloads.Get([]byte(uuid))
		if data == nil {
			return &RecordError{Op: "get", UUID: uuid, Err: ErrRecordNotFound}
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LatestFor returns the most recent successful download of url, or nil
// with no error if the URL was never fetched successfully.
func (db *DB) LatestFor(url string) (*DownloadRecord, error) {
	if url == "" {
		return nil, &ValidationError{Field: "url", Err: ErrEmptyURL}
	}

	var rec *DownloadRecord
	err := db.view(func(tx *bolt.Tx) error {
		index, err := bucket(tx, BucketURLIndex)
		if err != nil {
			return err
		}
		uuid := index.Get([]byte(url))
		if uuid == nil {
			return nil
		}

		downloads, err := bucket(tx, BucketDownloads)
		if err != nil {
			return err
		}
		data := downloads.Get(uuid)
		if data == nil {
			return &RecordError{Op: "latest", UUID: string(uuid), Err: ErrRecordNotFound}
		}

		var r DownloadRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return &RecordError{Op: "unmarshal", UUID: string(uuid), Err: ErrCorruptedData}
		}
		rec = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DBStats summarizes the database contents.
type DBStats struct {
	Path      string
	Size      int64
	Runs      int
	Downloads int
	URLs      int
}

// Stats counts the stored runs, downloads and indexed URLs.
func (db *DB) Stats() (DBStats, error) {
	st := DBStats{Path: db.path}
	err := db.view(func(tx *bolt.Tx) error {
		st.Size = tx.Size()
		for name, n := range map[string]*int{
			BucketRuns:      &st.Runs,
			BucketDownloads: &st.Downloads,
			BucketURLIndex:  &st.URLs,
		} {
			b, err := bucket(tx, name)
			if err != nil {
				return err
			}
			*n = b.Stats().KeyN
		}
		return nil
	})
	return st, err
}

// Backup writes a consistent copy of the database to path.
func (db *DB) Backup(path string) error {
	return db.view(func(tx *bolt.Tx) error {
		if err := tx.CopyFile(path, 0600); err != nil {
			return &DatabaseError{Op: "backup", Err: err}
		}
		return nil
	})
}

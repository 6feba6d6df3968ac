// Package migration imports download history kept only in the plain text
// success list into the history database.
//
// Each line of the success list has the form:
//
//	url file
//
// Lines starting with '#' and empty lines are skipped.
//
// Example usage:
//
//	if migration.DetectMigrationNeeded(cfg, db) {
//	    res, err := migration.ImportSuccessList(cfg, db, logger)
//	    ...
//	}
package migration

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/baack/wget2/config"
	"github.com/baack/wget2/historydb"
	"github.com/baack/wget2/log"
)

// Entry is one line of the success list.
type Entry struct {
	URL  string
	File string
}

// Result counts what an import did.
type Result struct {
	Path     string
	Read     int
	Imported int
	Known    int
	Invalid  int
}

// SuccessListPath returns the success list of cfg.
func SuccessListPath(cfg *config.Config) string {
	return filepath.Join(cfg.LogsPath, log.SuccessLog)
}

// ImportSuccessList records every URL of the success list that the
// database does not know yet as a successful download. Files that still
// exist contribute their size and modification time.
//
// A missing success list is not an error. Invalid lines are logged as
// warnings and counted.
func ImportSuccessList(cfg *config.Config, db *historydb.DB, logger log.LibraryLogger) (Result, error) {
	if logger == nil {
		logger = log.NoOpLogger{}
	}
	res := Result{Path: SuccessListPath(cfg)}

	entries, invalid, err := readSuccessList(res.Path, logger)
	if os.IsNotExist(err) {
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("failed to read success list: %w", err)
	}
	res.Read = len(entries)
	res.Invalid = invalid

	for _, e := range entries {
		latest, err := db.LatestFor(e.URL)
		if err != nil {
			logger.Warn("Skipping %s: %v", e.URL, err)
			res.Invalid++
			continue
		}
		if latest != nil {
			res.Known++
			continue
		}

		rec := &historydb.DownloadRecord{
			UUID:   historydb.NewID(),
			URL:    e.URL,
			File:   e.File,
			Status: historydb.StatusSuccess,
		}
		if fi, err := os.Stat(e.File); err == nil {
			rec.Bytes = fi.Size()
			rec.StartTime = fi.ModTime()
			rec.EndTime = fi.ModTime()
		}
		if err := db.SaveRecord(rec); err != nil {
			logger.Warn("Failed to import %s: %v", e.URL, err)
			res.Invalid++
			continue
		}
		res.Imported++
	}

	logger.Info("Imported %d/%d downloads from %s", res.Imported, res.Read, res.Path)
	return res, nil
}

// readSuccessList parses the success list, returning its entries and the
// number of lines it could not parse.
func readSuccessList(path string, logger log.LibraryLogger) ([]Entry, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	var entries []Entry
	invalid := 0
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		url, name, ok := strings.Cut(line, " ")
		name = strings.TrimSpace(name)
		if !ok || url == "" || name == "" {
			logger.Warn("Skipping invalid line: %s", line)
			invalid++
			continue
		}
		entries = append(entries, Entry{URL: url, File: name})
	}

	if err := scanner.Err(); err != nil {
		return nil, invalid, err
	}
	return entries, invalid, nil
}

// DetectMigrationNeeded reports whether a non-empty success list exists
// while the database holds no downloads.
func DetectMigrationNeeded(cfg *config.Config, db *historydb.DB) bool {
	fi, err := os.Stat(SuccessListPath(cfg))
	if err != nil || fi.Size() == 0 {
		return false
	}
	st, err := db.Stats()
	return err == nil && st.Downloads == 0
}

package service

import (
	"fmt"
	"os"

	"github.com/baack/wget2/historydb"
	"github.com/baack/wget2/migration"
)

// DatabaseResult contains the results of a database operation.
type DatabaseResult struct {
	DatabaseRemoved bool     // Whether the database was removed
	FilesRemoved    []string // List of files that were removed
}

// ResetDatabase removes the history database and its backup.
//
// This is a destructive operation that deletes all download history. The
// caller is responsible for confirming it with the user. The service keeps
// working afterwards: a fresh, empty database is created in place.
func (s *Service) ResetDatabase() (*DatabaseResult, error) {
	result := &DatabaseResult{
		FilesRemoved: make([]string, 0),
	}

	dbPath := s.cfg.Database.Path

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return nil, fmt.Errorf("failed to close database before reset: %w", err)
		}
		s.db = nil
	}

	if _, err := os.Stat(dbPath); err == nil {
		if err := os.Remove(dbPath); err != nil {
			return nil, fmt.Errorf("failed to remove database: %w", err)
		}
		result.DatabaseRemoved = true
		result.FilesRemoved = append(result.FilesRemoved, dbPath)
		s.fileLog().Info("History database removed: %s", dbPath)
	}

	backupFile := backupPath(dbPath)
	if _, err := os.Stat(backupFile); err == nil {
		if err := os.Remove(backupFile); err == nil {
			result.FilesRemoved = append(result.FilesRemoved, backupFile)
			s.fileLog().Info("History backup removed: %s", backupFile)
		}
	}

	db, err := historydb.OpenShared(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to recreate database: %w", err)
	}
	s.db = db

	return result, nil
}

// DatabaseExists checks if the history database file exists.
func (s *Service) DatabaseExists() bool {
	_, err := os.Stat(s.cfg.Database.Path)
	return err == nil
}

// GetDatabasePath returns the path to the history database.
func (s *Service) GetDatabasePath() string {
	return s.cfg.Database.Path
}

// BackupDatabase writes a consistent copy of the history database next to
// it and returns the copy's path.
func (s *Service) BackupDatabase() (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not initialized")
	}

	dst := backupPath(s.cfg.Database.Path)
	if err := s.db.Backup(dst); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	s.fileLog().Info("Database backed up to: %s", dst)
	return dst, nil
}

func backupPath(dbPath string) string {
	return dbPath + ".backup"
}

// ImportHistory records the downloads of the success list that the
// database does not know yet.
func (s *Service) ImportHistory() (migration.Result, error) {
	if s.db == nil {
		return migration.Result{}, fmt.Errorf("database not initialized")
	}
	return migration.ImportSuccessList(s.cfg, s.db, s.fileLog())
}

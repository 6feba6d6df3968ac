package service

import (
	"errors"
	"fmt"
	"os"

	"github.com/baack/wget2/config"
	"github.com/baack/wget2/migration"
)

// Initialize sets up the wget2 environment for the first time.
//
// The initialization process includes:
//  1. Creating the base, logs and output directories
//  2. Verifying the history database opened by NewService
//  3. Importing the success list of earlier runs into an empty database
//  4. Writing the current configuration to wget2.ini when opts.ConfigDir
//     is set
//
// An existing wget2.ini is kept unless opts.Force is set; this is reported
// as a warning, not an error.
func (s *Service) Initialize(opts InitOptions) (*InitResult, error) {
	result := &InitResult{
		DirsCreated: make([]string, 0),
		Warnings:    make([]string, 0),
	}

	dirs := []struct {
		label string
		path  string
	}{
		{"Base", s.cfg.BaseDir},
		{"Logs", s.cfg.LogsPath},
		{"Output", s.cfg.OutputDir},
	}
	for _, d := range dirs {
		if d.path == "" {
			continue
		}
		if err := os.MkdirAll(d.path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory (%s): %w", d.label, d.path, err)
		}
		result.DirsCreated = append(result.DirsCreated, d.path)
		s.fileLog().Info("Created %s: %s", d.label, d.path)
	}

	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if _, err := s.db.Stats(); err != nil {
		return nil, fmt.Errorf("history database unusable: %w", err)
	}
	s.fileLog().Info("Database initialized: %s", s.cfg.Database.Path)

	if migration.DetectMigrationNeeded(s.cfg, s.db) {
		res, err := migration.ImportSuccessList(s.cfg, s.db, s.fileLog())
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("history import failed: %v", err))
		}
		result.Imported = res.Imported
	}

	if opts.ConfigDir == "" {
		return result, nil
	}

	path, err := config.SaveConfig(opts.ConfigDir, s.cfg, opts.Force)
	switch {
	case errors.Is(err, config.ErrConfigExists):
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s already exists; use --force to overwrite", path))
	case err != nil:
		return nil, err
	default:
		result.ConfigWritten = path
		s.fileLog().Info("Wrote configuration: %s", path)
	}

	return result, nil
}

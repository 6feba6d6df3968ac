package service

import (
	"fmt"

	"github.com/baack/wget2/historydb"
)

// DefaultStatusRuns is the number of recent runs GetStatus lists.
const DefaultStatusRuns = 10

// GetStatus retrieves download history from the database.
//
// Database totals, the recent runs and the active run (if any) are always
// returned. When opts.URLs is set, the last successful download of each URL
// is looked up; when opts.RunID is set, that run's downloads are listed.
//
// The caller is responsible for formatting the result.
func (s *Service) GetStatus(opts StatusOptions) (*StatusResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	result := &StatusResult{}

	st, err := s.db.Stats()
	if err != nil {
		return nil, fmt.Errorf("failed to get database stats: %w", err)
	}
	result.Stats = st

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultStatusRuns
	}
	runs, err := s.db.ListRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	result.Runs = runs

	if id, rec, err := s.db.ActiveRun(); err != nil {
		return nil, fmt.Errorf("failed to find active run: %w", err)
	} else if rec != nil {
		result.Active = &historydb.RunInfo{ID: id, RunRecord: *rec}
	}

	for _, u := range opts.URLs {
		status, err := s.GetURLStatus(u)
		if err != nil {
			return nil, err
		}
		result.URLs = append(result.URLs, *status)
	}

	if opts.RunID != "" {
		downloads, err := s.db.ListRunDownloads(opts.RunID)
		if err != nil {
			return nil, fmt.Errorf("failed to list downloads of run %s: %w", opts.RunID, err)
		}
		result.Downloads = downloads
	}

	return result, nil
}

// GetURLStatus returns the history of a single URL.
func (s *Service) GetURLStatus(url string) (*URLStatus, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rec, err := s.db.LatestFor(url)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", url, err)
	}
	return &URLStatus{URL: url, Latest: rec}, nil
}

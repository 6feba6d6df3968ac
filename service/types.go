package service

import (
	"time"

	"github.com/baack/wget2/download"
	"github.com/baack/wget2/historydb"
)

// FetchOptions contains options for the Fetch service.
type FetchOptions struct {
	URLs      []string // URLs to retrieve, in queue order
	OutputDir string   // Overrides Config.OutputDir when set
}

// FetchResult contains the results of a fetch run.
type FetchResult struct {
	RunID    string               // History run ID
	Stats    *download.FetchStats // Per-URL outcomes and totals
	Duration time.Duration        // Total run duration
	Aborted  bool                 // The run was cancelled
}

// InitOptions contains options for the Initialize service.
type InitOptions struct {
	ConfigDir string // Where wget2.ini is written; empty skips the config file
	Force     bool   // Overwrite an existing wget2.ini
}

// InitResult contains the results of an initialization operation.
type InitResult struct {
	DirsCreated   []string // Directories created
	ConfigWritten string   // Path of the config file written, if any
	Imported      int      // Downloads imported from the success list
	Warnings      []string // Non-fatal warnings
}

// StatusOptions contains options for the GetStatus service.
type StatusOptions struct {
	URLs  []string // URLs to look up (empty = run overview)
	RunID string   // Run whose downloads are listed
	Limit int      // Number of recent runs listed. Default: 10
}

// StatusResult contains the results of a status query.
type StatusResult struct {
	Stats     historydb.DBStats          // Database totals
	URLs      []URLStatus                // One entry per requested URL
	Runs      []historydb.RunInfo        // Recent runs, newest first
	Active    *historydb.RunInfo         // Run in progress, if any
	Downloads []historydb.DownloadRecord // Downloads of StatusOptions.RunID
}

// URLStatus is the history of a single URL.
type URLStatus struct {
	URL    string                    // URL as given
	Latest *historydb.DownloadRecord // Last successful download (nil if never)
}

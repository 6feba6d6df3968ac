// Package stats provides real-time download statistics collection and
// worker throttling for wget2. It tracks worker counts, system load, swap
// usage, throughput and download totals.
//
// The stats system uses a 1 Hz sampling loop to collect metrics and notify
// registered consumers (the worker pool, the history DB writer, the plain
// stdout UI).
package stats

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// TopInfo contains real-time download statistics.
// This is the unified payload shared across all stats consumers and is
// persisted as JSON for the monitor command.
type TopInfo struct {
	// Worker Metrics
	ActiveWorkers int  // Currently downloading
	MaxWorkers    int  // Configured max
	DynMaxWorkers int  // Dynamic max (slow start, load and swap)
	Ramping       bool // Slow start has not reached MaxWorkers yet

	// System Metrics
	Load    float64 // 1-min load average
	SwapPct int     // Swap usage percentage (0-100)

	// Throughput
	BytesPerSec float64 // Average over the 60s sliding window
	Impulse     float64 // Bytes received in the last 1s bucket

	// Timing
	Elapsed   time.Duration
	StartTime time.Time

	// Totals
	Queued    int   // Total URLs to fetch
	Done      int   // Saved successfully
	Failed    int   // Failed downloads
	Skipped   int   // Already there with no-clobber set
	Remaining int   // Queued - (Done + Failed + Skipped)
	Bytes     int64 // Total bytes received
}

// DownloadStatus is the outcome of one URL.
type DownloadStatus int

const (
	DownloadSuccess DownloadStatus = iota
	DownloadFailed
	DownloadSkipped
)

func (s DownloadStatus) String() string {
	switch s {
	case DownloadSuccess:
		return "success"
	case DownloadFailed:
		return "failed"
	case DownloadSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// StatsConsumer receives a fresh TopInfo snapshot on every tick.
type StatsConsumer interface {
	OnStatsUpdate(info TopInfo)
}

// ConsumerFunc adapts a function to StatsConsumer.
type ConsumerFunc func(info TopInfo)

func (f ConsumerFunc) OnStatsUpdate(info TopInfo) { f(info) }

// FormatDuration formats a duration as HH:MM:SS for display
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// FormatRate formats a byte rate for display, e.g. "1.5 MiB/s".
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec < 1 {
		return "0 B/s"
	}
	return humanize.IBytes(uint64(bytesPerSec)) + "/s"
}

// ThrottleReason returns a human-readable reason for worker throttling
// based on current metrics. Returns empty string if not throttled.
func ThrottleReason(info TopInfo) string {
	if info.DynMaxWorkers >= info.MaxWorkers {
		return ""
	}

	// Same thresholds as WorkerThrottler, approximated without ncpus.
	if info.Load > float64(info.MaxWorkers)*2.0 {
		return "high load"
	}
	if info.SwapPct > 10 {
		return "high swap"
	}
	if info.Ramping {
		return "slow start"
	}
	return "system resources"
}

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/baack/wget2/config"
)

// Log file names under Config.LogsPath.
const (
	ResultsLog = "00_last_results.log"
	SuccessLog = "01_success_list.log"
	FailureLog = "02_failure_list.log"
	DebugLog   = "07_debug.log"
)

// Compile-time interface checks
var (
	_ LibraryLogger = (*Logger)(nil)
	_ LibraryLogger = (*ContextLogger)(nil)
)

// Logger manages the per-run log files
type Logger struct {
	cfg         *config.Config
	resultsFile *os.File
	successFile *os.File
	failureFile *os.File
	debugFile   *os.File
	mu          sync.Mutex
}

// LogContext provides metadata for contextual logging
type LogContext struct {
	RunID    string // Run UUID (full or short)
	URL      string
	WorkerID int // Worker ID (0-based)
}

// ContextLogger wraps Logger with context metadata for enriched log entries
type ContextLogger struct {
	logger *Logger
	ctx    LogContext
}

// NewLogger creates the logs directory and truncates the log files.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogsPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	l := &Logger{cfg: cfg}

	files := []struct {
		dst  **os.File
		name string
	}{
		{&l.resultsFile, ResultsLog},
		{&l.successFile, SuccessLog},
		{&l.failureFile, FailureLog},
		{&l.debugFile, DebugLog},
	}
	for _, f := range files {
		fh, err := os.Create(filepath.Join(cfg.LogsPath, f.name))
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to create %s: %w", f.name, err)
		}
		*f.dst = fh
	}

	l.writeHeaders()

	return l, nil
}

// Close closes all log files
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, f := range []*os.File{l.resultsFile, l.successFile, l.failureFile, l.debugFile} {
		if f != nil {
			f.Close()
		}
	}
}

// writeHeaders writes initial headers to log files. Header lines start
// with '#' so GetLogSummary skips them.
func (l *Logger) writeHeaders() {
	timestamp := time.Now().Format(time.RFC3339)

	fmt.Fprintf(l.resultsFile, "# wget2 download log - %s\n", timestamp)
	fmt.Fprintf(l.resultsFile, "# %s\n\n", strings.Repeat("=", 68))

	fmt.Fprintf(l.successFile, "# Downloaded - %s\n\n", timestamp)
	fmt.Fprintf(l.failureFile, "# Failed downloads - %s\n\n", timestamp)
	fmt.Fprintf(l.debugFile, "# Debug log - %s\n\n", timestamp)
}

func stamp() string {
	return time.Now().Format("15:04:05")
}

// Success logs a completed download
func (l *Logger) Success(url, file string, bytes int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writeSuccessLocked("", url, file, bytes)
}

func (l *Logger) writeSuccessLocked(prefix, url, file string, bytes int64) {
	fmt.Fprintf(l.resultsFile, "[%s] %sSAVED: %s -> %s (%s)\n",
		stamp(), prefix, url, file, humanize.IBytes(uint64(max(bytes, 0))))
	fmt.Fprintf(l.successFile, "%s %s\n", url, file)

	l.resultsFile.Sync()
	l.successFile.Sync()
}

// Failed logs a failed download
func (l *Logger) Failed(url, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writeFailedLocked("", url, reason)
}

func (l *Logger) writeFailedLocked(prefix, url, reason string) {
	fmt.Fprintf(l.resultsFile, "[%s] %sFAILED: %s (%s)\n", stamp(), prefix, url, reason)
	fmt.Fprintf(l.failureFile, "%s (%s)\n", url, reason)

	l.resultsFile.Sync()
	l.failureFile.Sync()
}

// Debug logs debug information
func (l *Logger) Debug(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writeLocked(false, true, "", "DEBUG", format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writeLocked(true, true, "", "ERROR", format, args...)
}

// Warn logs a warning message (non-fatal issues)
func (l *Logger) Warn(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writeLocked(true, true, "", "WARN", format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writeLocked(true, false, "", "INFO", format, args...)
}

func (l *Logger) writeLocked(results, debug bool, prefix, level, format string, args ...any) {
	line := fmt.Sprintf("[%s] %s%s: %s\n", stamp(), prefix, level, fmt.Sprintf(format, args...))
	if results {
		l.resultsFile.WriteString(line)
		l.resultsFile.Sync()
	}
	if debug {
		l.debugFile.WriteString(line)
		l.debugFile.Sync()
	}
}

// Summary holds the totals written by WriteSummary.
type Summary struct {
	Total    int
	Success  int
	Failed   int
	Bytes    int64
	Duration time.Duration
}

// WriteSummary writes a summary to the results log
func (l *Logger) WriteSummary(s Summary) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rate := "n/a"
	if secs := s.Duration.Seconds(); secs > 0 {
		rate = humanize.IBytes(uint64(float64(max(s.Bytes, 0))/secs)) + "/s"
	}

	fmt.Fprintf(l.resultsFile, "\n# %s\n", strings.Repeat("=", 68))
	fmt.Fprintf(l.resultsFile, "# DOWNLOAD SUMMARY\n")
	fmt.Fprintf(l.resultsFile, "# %s\n", strings.Repeat("=", 68))
	fmt.Fprintf(l.resultsFile, "# Total URLs:        %d\n", s.Total)
	fmt.Fprintf(l.resultsFile, "# Downloaded:        %d\n", s.Success)
	fmt.Fprintf(l.resultsFile, "# Failed:            %d\n", s.Failed)
	fmt.Fprintf(l.resultsFile, "# Bytes:             %s\n", humanize.IBytes(uint64(max(s.Bytes, 0))))
	fmt.Fprintf(l.resultsFile, "# Duration:          %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(l.resultsFile, "# Average rate:      %s\n", rate)
	fmt.Fprintf(l.resultsFile, "# %s\n", strings.Repeat("=", 68))

	l.resultsFile.Sync()
}

// WithContext creates a ContextLogger with metadata for enriched logging.
// The RunID will be truncated to 8 characters for readability.
//
// Example:
//
//	ctxLogger := logger.WithContext(log.LogContext{
//	    RunID:    runUUID,
//	    URL:      "https://example.com/file.zip",
//	    WorkerID: 2,
//	})
//	ctxLogger.Info("Saving to file.zip")
//	// Output: [15:04:05] [a1b2c3d4] [W2] https://example.com/file.zip: INFO: Saving to file.zip
func (l *Logger) WithContext(ctx LogContext) *ContextLogger {
	return &ContextLogger{
		logger: l,
		ctx:    ctx,
	}
}

// formatPrefix creates a log prefix with context metadata
func (cl *ContextLogger) formatPrefix() string {
	shortID := cl.ctx.RunID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	return fmt.Sprintf("[%s] [W%d] %s: ", shortID, cl.ctx.WorkerID, cl.ctx.URL)
}

// Success logs the context URL as downloaded to file
func (cl *ContextLogger) Success(file string, bytes int64) {
	cl.logger.mu.Lock()
	defer cl.logger.mu.Unlock()

	cl.logger.writeSuccessLocked(cl.formatPrefix(), cl.ctx.URL, file, bytes)
}

// Failed logs the context URL as failed
func (cl *ContextLogger) Failed(reason string) {
	cl.logger.mu.Lock()
	defer cl.logger.mu.Unlock()

	cl.logger.writeFailedLocked(cl.formatPrefix(), cl.ctx.URL, reason)
}

func (cl *ContextLogger) Info(format string, args ...any) {
	cl.logger.mu.Lock()
	defer cl.logger.mu.Unlock()
	cl.logger.writeLocked(true, false, cl.formatPrefix(), "INFO", format, args...)
}

func (cl *ContextLogger) Error(format string, args ...any) {
	cl.logger.mu.Lock()
	defer cl.logger.mu.Unlock()
	cl.logger.writeLocked(true, true, cl.formatPrefix(), "ERROR", format, args...)
}

func (cl *ContextLogger) Debug(format string, args ...any) {
	cl.logger.mu.Lock()
	defer cl.logger.mu.Unlock()
	cl.logger.writeLocked(false, true, cl.formatPrefix(), "DEBUG", format, args...)
}

func (cl *ContextLogger) Warn(format string, args ...any) {
	cl.logger.mu.Lock()
	defer cl.logger.mu.Unlock()
	cl.logger.writeLocked(true, true, cl.formatPrefix(), "WARN", format, args...)
}

package log

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/baack/wget2/config"
)

// logAliases maps short names accepted by the logs command to file names.
var logAliases = map[string]string{
	"00":      ResultsLog,
	"results": ResultsLog,
	"01":      SuccessLog,
	"success": SuccessLog,
	"02":      FailureLog,
	"failure": FailureLog,
	"07":      DebugLog,
	"debug":   DebugLog,
}

// ResolveLogName turns an alias like "results" or "02" into a file name.
// Unknown names are returned unchanged.
func ResolveLogName(name string) string {
	if f, ok := logAliases[strings.ToLower(name)]; ok {
		return f
	}
	return name
}

// ListLogs lists all available log files
func ListLogs(cfg *config.Config, w io.Writer) {
	fmt.Fprintln(w, "Available log files:")
	fmt.Fprintln(w)
	for _, row := range [][2]string{
		{"00 or results", ResultsLog},
		{"01 or success", SuccessLog},
		{"02 or failure", FailureLog},
		{"07 or debug", DebugLog},
	} {
		status := ""
		if fi, err := os.Stat(filepath.Join(cfg.LogsPath, row[1])); err == nil {
			status = fmt.Sprintf(" (%d bytes)", fi.Size())
		}
		fmt.Fprintf(w, "  %-14s - %s%s\n", row[0], row[1], status)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Logs directory: %s\n", cfg.LogsPath)
}

// ViewLog copies a log file to w, or hands it to $PAGER when pager is set
// and one is available.
func ViewLog(cfg *config.Config, logName string, w io.Writer, pager bool) error {
	logPath := filepath.Join(cfg.LogsPath, ResolveLogName(logName))

	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer file.Close()

	if pager {
		if p := pagerPath(); p != "" {
			return viewWithPager(p, logPath)
		}
	}
	_, err = io.Copy(w, file)
	return err
}

// pagerPath returns the configured pager, or "" if none is installed.
func pagerPath() string {
	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = "less"
	}
	p, err := exec.LookPath(pager)
	if err != nil {
		return ""
	}
	return p
}

func viewWithPager(pager, path string) error {
	cmd := exec.Command(pager, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// TailLog writes the last n lines of a log file to w
func TailLog(cfg *config.Config, logName string, n int, w io.Writer) error {
	file, err := os.Open(filepath.Join(cfg.LogsPath, ResolveLogName(logName)))
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer file.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if n <= 0 {
			continue
		}
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	for _, line := range ring {
		fmt.Fprintln(w, line)
	}
	return nil
}

// GrepLog writes lines containing pattern, prefixed with their line number
func GrepLog(cfg *config.Config, logName, pattern string, w io.Writer) error {
	file, err := os.Open(filepath.Join(cfg.LogsPath, ResolveLogName(logName)))
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if line := scanner.Text(); strings.Contains(line, pattern) {
			fmt.Fprintf(w, "%d: %s\n", lineNum, line)
		}
	}
	return scanner.Err()
}

// GetLogSummary returns the number of successful and failed downloads
// recorded in the list logs.
func GetLogSummary(cfg *config.Config) map[string]int {
	summary := make(map[string]int)

	if lines, err := countLines(filepath.Join(cfg.LogsPath, SuccessLog)); err == nil {
		summary["success"] = lines
	}
	if lines, err := countLines(filepath.Join(cfg.LogsPath, FailureLog)); err == nil {
		summary["failed"] = lines
	}

	return summary
}

// countLines counts non-empty lines that are not '#' comments
func countLines(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			count++
		}
	}

	return count, scanner.Err()
}

package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/baack/wget2/config"
)

func newTestLogger(t *testing.T) (*Logger, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		LogsPath: filepath.Join(t.TempDir(), "logs"),
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(logger.Close)
	return logger, cfg
}

func readLog(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(cfg.LogsPath, name))
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return string(content)
}

func TestNewLogger(t *testing.T) {
	_, cfg := newTestLogger(t)

	for _, filename := range []string{ResultsLog, SuccessLog, FailureLog, DebugLog} {
		if _, err := os.Stat(filepath.Join(cfg.LogsPath, filename)); os.IsNotExist(err) {
			t.Errorf("Log file %s was not created", filename)
		}
	}
}

func TestNewLogger_CreateDirError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewLogger(&config.Config{LogsPath: filepath.Join(blocker, "logs")})
	if err == nil {
		t.Error("NewLogger succeeded below a regular file")
	}
}

func TestLogger_Success(t *testing.T) {
	logger, cfg := newTestLogger(t)

	logger.Success("https://example.com/a.zip", "a.zip", 2048)

	if got := readLog(t, cfg, SuccessLog); !strings.Contains(got, "https://example.com/a.zip a.zip") {
		t.Errorf("Success log = %q", got)
	}
	results := readLog(t, cfg, ResultsLog)
	if !strings.Contains(results, "SAVED: https://example.com/a.zip -> a.zip (2.0 KiB)") {
		t.Errorf("Results log = %q", results)
	}
}

func TestLogger_Failed(t *testing.T) {
	logger, cfg := newTestLogger(t)

	logger.Failed("https://example.com/missing", "HTTP ERROR 404")

	if got := readLog(t, cfg, FailureLog); !strings.Contains(got, "https://example.com/missing (HTTP ERROR 404)") {
		t.Errorf("Failure log = %q", got)
	}
	if got := readLog(t, cfg, ResultsLog); !strings.Contains(got, "FAILED") {
		t.Error("Results log does not contain FAILED")
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name      string
		log       func(l *Logger)
		marker    string
		inResults bool
		inDebug   bool
	}{
		{"info", func(l *Logger) { l.Info("hello %d", 1) }, "INFO: hello 1", true, false},
		{"debug", func(l *Logger) { l.Debug("trace %s", "x") }, "DEBUG: trace x", false, true},
		{"warn", func(l *Logger) { l.Warn("slow") }, "WARN: slow", true, true},
		{"error", func(l *Logger) { l.Error("broken") }, "ERROR: broken", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, cfg := newTestLogger(t)
			tt.log(logger)

			if got := strings.Contains(readLog(t, cfg, ResultsLog), tt.marker); got != tt.inResults {
				t.Errorf("results log contains %q = %v, want %v", tt.marker, got, tt.inResults)
			}
			if got := strings.Contains(readLog(t, cfg, DebugLog), tt.marker); got != tt.inDebug {
				t.Errorf("debug log contains %q = %v, want %v", tt.marker, got, tt.inDebug)
			}
		})
	}
}

func TestLogger_WriteSummary(t *testing.T) {
	logger, cfg := newTestLogger(t)

	logger.WriteSummary(Summary{
		Total:    5,
		Success:  4,
		Failed:   1,
		Bytes:    4 << 20,
		Duration: 2 * time.Second,
	})

	content := readLog(t, cfg, ResultsLog)
	for _, want := range []string{
		"DOWNLOAD SUMMARY",
		"Total URLs:        5",
		"Downloaded:        4",
		"Failed:            1",
		"Bytes:             4.0 MiB",
		"Duration:          2s",
		"Average rate:      2.0 MiB/s",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}

func TestLogger_SummaryLinesAreComments(t *testing.T) {
	logger, cfg := newTestLogger(t)
	logger.Success("u", "f", 1)
	logger.WriteSummary(Summary{Total: 1, Success: 1})
	logger.Close()

	summary := GetLogSummary(cfg)
	if summary["success"] != 1 {
		t.Errorf("success count = %d, want 1", summary["success"])
	}
	if summary["failed"] != 0 {
		t.Errorf("failed count = %d, want 0", summary["failed"])
	}
}

func TestLogger_WithContext(t *testing.T) {
	logger, cfg := newTestLogger(t)

	ctx := logger.WithContext(LogContext{
		RunID:    "a1b2c3d4-e5f6-7890",
		URL:      "https://example.com/b.iso",
		WorkerID: 2,
	})
	ctx.Info("connecting")
	ctx.Success("b.iso", 10)
	ctx.Failed("timeout")

	results := readLog(t, cfg, ResultsLog)
	for _, want := range []string{
		"[a1b2c3d4] [W2] https://example.com/b.iso: INFO: connecting",
		"[a1b2c3d4] [W2] https://example.com/b.iso: SAVED: https://example.com/b.iso -> b.iso",
		"FAILED: https://example.com/b.iso (timeout)",
	} {
		if !strings.Contains(results, want) {
			t.Errorf("results log missing %q\n%s", want, results)
		}
	}
	if strings.Contains(results, "e5f6") {
		t.Error("run ID was not shortened")
	}
	if got := readLog(t, cfg, SuccessLog); !strings.Contains(got, "https://example.com/b.iso b.iso") {
		t.Errorf("Success log = %q", got)
	}
}

func TestLogger_ImplementsLibraryLogger(t *testing.T) {
	logger, _ := newTestLogger(t)

	var lib LibraryLogger = logger
	lib.Info("via interface")

	var ctxLib LibraryLogger = logger.WithContext(LogContext{RunID: "r"})
	ctxLib.Warn("via interface")
}

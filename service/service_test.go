package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/baack/wget2/config"
)

// newTestConfig returns a configuration rooted in a temporary directory.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	tmpDir := t.TempDir()

	cfg := &config.Config{
		BaseDir:          tmpDir,
		OutputDir:        filepath.Join(tmpDir, "out"),
		LogsPath:         filepath.Join(tmpDir, "logs"),
		MaxWorkers:       2,
		Progress:         config.ProgressNone,
		ProgressEngine:   "classic",
		ProgressInterval: 10 * time.Millisecond,
		UserAgent:        "wget2-test",
		Timeout:          5 * time.Second,
		ThrottleDisabled: true,
	}
	cfg.Database.Path = filepath.Join(tmpDir, "history.db")
	return cfg
}

// newTestService creates a service closed at the end of the test.
func newTestService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService() failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestNewService(t *testing.T) {
	cfg := newTestConfig(t)
	svc := newTestService(t, cfg)

	if svc.Config() != cfg {
		t.Error("Config() returned wrong config")
	}
	if svc.Logger() == nil {
		t.Error("Logger() returned nil")
	}
	if svc.Console() == nil {
		t.Error("Console() returned nil")
	}
	if svc.Database() == nil {
		t.Error("Database() returned nil")
	}
	if _, err := os.Stat(cfg.Database.Path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestNewService_InvalidLogPath(t *testing.T) {
	cfg := newTestConfig(t)

	blocker := filepath.Join(cfg.BaseDir, "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	cfg.LogsPath = filepath.Join(blocker, "logs")

	svc, err := NewService(cfg)
	if err == nil {
		svc.Close()
		t.Fatal("Expected error for invalid log path, got nil")
	}
}

func TestNewService_InvalidDatabasePath(t *testing.T) {
	cfg := newTestConfig(t)

	blocker := filepath.Join(cfg.BaseDir, "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	cfg.Database.Path = filepath.Join(blocker, "history.db")

	svc, err := NewService(cfg)
	if err == nil {
		svc.Close()
		t.Fatal("Expected error for invalid database path, got nil")
	}
}

func TestService_Close(t *testing.T) {
	svc, err := NewService(newTestConfig(t))
	if err != nil {
		t.Fatalf("NewService() failed: %v", err)
	}

	if err := svc.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("Second Close() returned error: %v", err)
	}
}

func TestNewQueryServiceKeepsLogs(t *testing.T) {
	cfg := newTestConfig(t)

	svc := newTestService(t, cfg)
	svc.Logger().Failed("https://example.com/x", "boom")
	svc.Close()

	query, err := NewQueryService(cfg)
	if err != nil {
		t.Fatalf("NewQueryService() failed: %v", err)
	}
	defer query.Close()

	if query.Logger() != nil {
		t.Error("query service has a file logger")
	}
	data, err := os.ReadFile(filepath.Join(cfg.LogsPath, "02_failure_list.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "https://example.com/x") {
		t.Error("failure log truncated by NewQueryService")
	}
	if _, err := query.GetStatus(StatusOptions{}); err != nil {
		t.Errorf("GetStatus on query service failed: %v", err)
	}
}
